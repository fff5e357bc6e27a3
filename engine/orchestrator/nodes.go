package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

func (e *Engine) validateRequest(in GraphInput) (*graphState, error) {
	if strings.TrimSpace(in.Envelope.ClientID) == "" {
		return nil, fmt.Errorf("%w: client id is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(in.Envelope.Text) == "" {
		return nil, fmt.Errorf("%w: request text is required", contractx.ErrValidation)
	}
	sink := in.Sink
	if sink == nil {
		sink = contractx.SinkFunc(func(contractx.Event) {})
	}
	return &graphState{
		Envelope: in.Envelope,
		Sink:     sink,
		TaskID:   newTaskID(in.Envelope),
	}, nil
}

// assembleContext loads the bundle first so an unknown client mutates
// nothing, then records the advisor's turn.
func (e *Engine) assembleContext(ctx context.Context, in *graphState) (*graphState, error) {
	bundle, err := e.assembler.Load(ctx, in.Envelope.ClientID)
	if err != nil {
		return nil, err
	}
	in.Bundle = bundle

	if err := e.appendChat(ctx, in.Envelope.ClientID, "advisor", in.Envelope.Text); err != nil {
		log.Error().Err(err).Str("client_id", in.Envelope.ClientID).Msg("record advisor turn")
	}
	return in, nil
}

func (e *Engine) classify(ctx context.Context, in *graphState) (*graphState, error) {
	in.Sink.Emit(contractx.ThinkingEvent("Analyzing your question..."))
	in.Plan = e.classifier.Classify(ctx, in.Envelope.Text, in.Bundle)
	return in, nil
}

func (e *Engine) knowledgeRemovePath(ctx context.Context, in *graphState) (GraphOutput, error) {
	clientName := in.Bundle.Client.Name
	in.Sink.Emit(contractx.ThinkingEvent(
		fmt.Sprintf("Finding entries to remove from %s's knowledge base...", clientName)))

	removedIDs, err := e.mutator.ApplyRemove(ctx, in.Envelope.ClientID, in.Plan.Keywords)
	if err != nil {
		log.Error().Err(err).Str("client_id", in.Envelope.ClientID).Msg("apply knowledge removal")
	}

	var summary string
	if len(removedIDs) > 0 {
		contents := entryContents(in.Bundle.Knowledge, removedIDs)
		summary = fmt.Sprintf("Done — removed %d %s from %s's knowledge base:\n\n%s",
			len(removedIDs), pluralEntry(len(removedIDs)), clientName, bulletList(contents))
	} else {
		summary = fmt.Sprintf("I couldn't find any matching entries in %s's knowledge base to remove.", clientName)
	}

	e.recordSystemTurn(ctx, in.Envelope.ClientID, summary)
	in.Sink.Emit(contractx.ResponseEvent(in.Envelope.ClientID, in.TaskID, summary, nil))
	if len(removedIDs) > 0 {
		in.Sink.Emit(contractx.KnowledgeRemovedEvent(in.Envelope.ClientID, removedIDs))
	}
	return GraphOutput{Content: summary}, nil
}

func (e *Engine) knowledgeAddPath(ctx context.Context, in *graphState) (GraphOutput, error) {
	clientName := in.Bundle.Client.Name
	in.Sink.Emit(contractx.ThinkingEvent(
		fmt.Sprintf("Updating %s's knowledge base...", clientName)))

	created, err := e.mutator.ApplyAdd(ctx, in.Envelope.ClientID, in.Plan.Entries)
	if err != nil {
		log.Error().Err(err).Str("client_id", in.Envelope.ClientID).Msg("apply knowledge addition")
	}

	contents := make([]string, 0, len(created))
	for _, entry := range created {
		contents = append(contents, entry.Content)
	}
	summary := fmt.Sprintf("Done — added %d %s to %s's knowledge base:\n\n%s",
		len(created), pluralEntry(len(created)), clientName, bulletList(contents))

	e.recordSystemTurn(ctx, in.Envelope.ClientID, summary)
	in.Sink.Emit(contractx.ResponseEvent(in.Envelope.ClientID, in.TaskID, summary, nil))
	in.Sink.Emit(contractx.KnowledgeAddedEvent(in.Envelope.ClientID, created))
	return GraphOutput{Content: summary}, nil
}

func (e *Engine) directAnswerPath(ctx context.Context, in *graphState) (GraphOutput, error) {
	in.Sink.Emit(contractx.ThinkingEvent(
		fmt.Sprintf("Answering from %s's data...", in.Bundle.Client.Name)))

	answer, err := e.synthesizer.Answer(ctx, contractx.AnswerRequest{
		Bundle: in.Bundle,
		Text:   in.Envelope.Text,
	})
	if err != nil {
		log.Warn().Err(err).Msg("direct answer synthesis failed")
		answer = "I couldn't process that request. Please try rephrasing your question."
	}

	e.recordSystemTurn(ctx, in.Envelope.ClientID, answer)
	in.Sink.Emit(contractx.ResponseEvent(in.Envelope.ClientID, in.TaskID, answer, nil))
	return GraphOutput{Content: answer}, nil
}

func (e *Engine) dispatchPath(ctx context.Context, in *graphState) (GraphOutput, error) {
	plural := "providers"
	if len(in.Plan.Providers) == 1 {
		plural = "provider"
	}
	in.Sink.Emit(contractx.ThinkingEvent(
		fmt.Sprintf("Dispatching %d %s...", len(in.Plan.Providers), plural)))

	results := e.scheduler.Dispatch(ctx, in.Plan.Providers, in.Bundle, in.Envelope.Text, in.Sink)

	in.Sink.Emit(contractx.ThinkingEvent("Synthesizing results..."))
	composite, narrative := e.aggregator.Aggregate(ctx, results, in.Bundle, in.Envelope.Text)

	e.recordSystemTurn(ctx, in.Envelope.ClientID, narrative)
	e.recordCycleTask(ctx, in, composite)

	in.Sink.Emit(contractx.ResponseEvent(in.Envelope.ClientID, in.TaskID, narrative, &composite))
	in.Sink.Emit(contractx.CompositeReadyEvent(in.Envelope.ClientID, in.TaskID, composite))
	return GraphOutput{Content: narrative, Composite: &composite}, nil
}

// recordCycleTask persists the dispatch cycle itself as one completed task
// row holding the composite, alongside the per-provider rows.
func (e *Engine) recordCycleTask(ctx context.Context, in *graphState, composite contractx.CompositeResult) {
	input, _ := json.Marshal(map[string]string{"query": in.Envelope.Text})
	output, err := json.Marshal(composite)
	if err != nil {
		log.Error().Err(err).Msg("serialize composite")
	}

	now := e.now().UTC()
	task := contractx.ProviderTask{
		ID:             in.TaskID,
		ClientID:       in.Envelope.ClientID,
		Provider:       "orchestrator",
		Status:         contractx.TaskCompleted,
		InputSnapshot:  input,
		OutputSnapshot: output,
		CreatedAt:      now,
		CompletedAt:    now,
	}
	if err := e.store.CreateTask(ctx, task); err != nil {
		log.Error().Err(err).Str("task_id", in.TaskID).Msg("persist cycle task")
	}
}

func (e *Engine) recordSystemTurn(ctx context.Context, clientID, content string) {
	if err := e.appendChat(ctx, clientID, "system", content); err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("record system turn")
	}
}

func (e *Engine) appendChat(ctx context.Context, clientID, role, content string) error {
	return e.store.AppendMessage(ctx, contractx.ChatMessage{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Role:      role,
		Content:   content,
		CreatedAt: e.now().UTC(),
	})
}

func entryContents(entries []contractx.KnowledgeEntry, ids []string) []string {
	byID := make(map[string]string, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry.Content
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if content, ok := byID[id]; ok {
			out = append(out, content)
		}
	}
	return out
}

func bulletList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

func pluralEntry(n int) string {
	if n == 1 {
		return "entry"
	}
	return "entries"
}
