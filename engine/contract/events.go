package contract

// Event is one JSON-framed outbound message on the advisor channel.
// Lifecycle ordering per provider is dispatched -> running -> completed;
// no ordering holds between different providers.
type Event struct {
	Type     string       `json:"type"`
	Provider ProviderName `json:"provider,omitempty"`
	ClientID string       `json:"client_id,omitempty"`
	TaskID   string       `json:"task_id,omitempty"`
	Payload  any          `json:"payload,omitempty"`
}

const (
	EventPong               = "pong"
	EventThinking           = "thinking"
	EventProviderDispatched = "provider_dispatched"
	EventProviderRunning    = "provider_running"
	EventProviderCompleted  = "provider_completed"
	EventResponse           = "response"
	EventCompositeReady     = "composite_ready"
	EventKnowledgeAdded     = "knowledge_added"
	EventKnowledgeRemoved   = "knowledge_removed"
	EventError              = "error"
)

func ThinkingEvent(step string) Event {
	return Event{Type: EventThinking, Payload: map[string]string{"step": step}}
}

func ErrorEvent(message string) Event {
	return Event{Type: EventError, Payload: map[string]string{"message": message}}
}

func ProviderDispatchedEvent(name ProviderName, clientID, taskID, description string) Event {
	return Event{
		Type:     EventProviderDispatched,
		Provider: name,
		ClientID: clientID,
		TaskID:   taskID,
		Payload:  map[string]string{"description": description},
	}
}

func ProviderRunningEvent(name ProviderName, clientID, taskID string) Event {
	return Event{
		Type:     EventProviderRunning,
		Provider: name,
		ClientID: clientID,
		TaskID:   taskID,
		Payload:  map[string]string{"status": string(TaskRunning)},
	}
}

func ProviderCompletedEvent(name ProviderName, clientID, taskID string, payload any) Event {
	return Event{
		Type:     EventProviderCompleted,
		Provider: name,
		ClientID: clientID,
		TaskID:   taskID,
		Payload:  payload,
	}
}

type ResponsePayload struct {
	Content   string           `json:"content"`
	Composite *CompositeResult `json:"composite"`
}

func ResponseEvent(clientID, taskID, content string, composite *CompositeResult) Event {
	return Event{
		Type:     EventResponse,
		ClientID: clientID,
		TaskID:   taskID,
		Payload:  ResponsePayload{Content: content, Composite: composite},
	}
}

func CompositeReadyEvent(clientID, taskID string, composite CompositeResult) Event {
	return Event{
		Type:     EventCompositeReady,
		ClientID: clientID,
		TaskID:   taskID,
		Payload:  composite,
	}
}

func KnowledgeAddedEvent(clientID string, entries []KnowledgeEntry) Event {
	return Event{
		Type:     EventKnowledgeAdded,
		ClientID: clientID,
		Payload:  map[string]any{"entries": entries},
	}
}

func KnowledgeRemovedEvent(clientID string, entryIDs []string) Event {
	return Event{
		Type:     EventKnowledgeRemoved,
		ClientID: clientID,
		Payload:  map[string]any{"entry_ids": entryIDs},
	}
}
