package contract

import "context"

// Provider is one independent specialist capability: a function from the
// shared context bundle and the raw request text to a typed partial result.
// Provider internals are opaque to the engine.
type Provider interface {
	Name() ProviderName
	Description(bundle ContextBundle) string
	Run(ctx context.Context, bundle ContextBundle, text string) (Result, error)
}

// ProviderRegistry is the fixed set of known providers in stable order.
type ProviderRegistry interface {
	Providers() []Provider
	Lookup(name ProviderName) (Provider, bool)
	Names() []ProviderName
}

// RouteRequest carries the raw text plus condensed context handed to the
// reasoning router when no fast-path pattern matches.
type RouteRequest struct {
	Text       string           `json:"text"`
	Client     ClientProfile    `json:"client"`
	Knowledge  []KnowledgeEntry `json:"knowledge,omitempty"`
	RecentChat []ChatMessage    `json:"recent_chat,omitempty"`
}

// Router maps a request to an ActionPlan via an external reasoning call.
// Callers own the fallback: any error resolves to Dispatch(all known).
type Router interface {
	Route(ctx context.Context, req RouteRequest) (ActionPlan, error)
}

// EntryMatcher resolves removal keyword phrases against existing knowledge
// entries, returning the ids to delete. Implementations must only return ids
// present in the supplied entries.
type EntryMatcher interface {
	Match(ctx context.Context, entries []KnowledgeEntry, keywords []string) ([]string, error)
}

// SummarizeRequest holds the populated slot findings the synthesizer turns
// into a short advisor-facing narrative.
type SummarizeRequest struct {
	Client ClientProfile
	Text   string
	Parts  []string
}

// AnswerRequest holds the full bundle for a direct (zero-provider) answer.
type AnswerRequest struct {
	Bundle ContextBundle
	Text   string
}

// Synthesizer phrases advisor-facing text from structured inputs.
type Synthesizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (string, error)
	Answer(ctx context.Context, req AnswerRequest) (string, error)
}

// Reasoners bundles the three reasoning roles the engine consumes. Each role
// is tolerant of failure: every call site defines a deterministic fallback.
type Reasoners interface {
	Router() Router
	Matcher() EntryMatcher
	Synthesizer() Synthesizer
}

// EventSink receives lifecycle events for one request's channel. Emit must
// not block on slow consumers; delivery failures are the sink's concern.
type EventSink interface {
	Emit(event Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(event Event)

func (f SinkFunc) Emit(event Event) { f(event) }
