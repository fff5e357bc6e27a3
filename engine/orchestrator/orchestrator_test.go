package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
	storex "github.com/wshadow/advisor-engine/store"
)

type fakeRouter struct {
	plan contractx.ActionPlan
	err  error
}

func (f *fakeRouter) Route(ctx context.Context, req contractx.RouteRequest) (contractx.ActionPlan, error) {
	return f.plan, f.err
}

type fakeMatcher struct {
	ids []string
	err error
}

func (f *fakeMatcher) Match(ctx context.Context, entries []contractx.KnowledgeEntry, keywords []string) ([]string, error) {
	return f.ids, f.err
}

type fakeSynthesizer struct {
	summary   string
	answer    string
	answerErr error
}

func (f *fakeSynthesizer) Summarize(ctx context.Context, req contractx.SummarizeRequest) (string, error) {
	return f.summary, nil
}

func (f *fakeSynthesizer) Answer(ctx context.Context, req contractx.AnswerRequest) (string, error) {
	return f.answer, f.answerErr
}

type fakeReasoners struct {
	router      contractx.Router
	matcher     contractx.EntryMatcher
	synthesizer contractx.Synthesizer
}

func (f *fakeReasoners) Router() contractx.Router            { return f.router }
func (f *fakeReasoners) Matcher() contractx.EntryMatcher     { return f.matcher }
func (f *fakeReasoners) Synthesizer() contractx.Synthesizer  { return f.synthesizer }

type stubProvider struct {
	name   contractx.ProviderName
	result contractx.Result
	err    error
}

func (p *stubProvider) Name() contractx.ProviderName { return p.name }

func (p *stubProvider) Description(bundle contractx.ContextBundle) string {
	return "stub " + string(p.name)
}

func (p *stubProvider) Run(ctx context.Context, bundle contractx.ContextBundle, text string) (contractx.Result, error) {
	return p.result, p.err
}

type stubRegistry struct {
	providers []contractx.Provider
}

func (r *stubRegistry) Providers() []contractx.Provider { return r.providers }

func (r *stubRegistry) Lookup(name contractx.ProviderName) (contractx.Provider, bool) {
	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (r *stubRegistry) Names() []contractx.ProviderName {
	names := make([]contractx.ProviderName, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

type recordingSink struct {
	mu     sync.Mutex
	events []contractx.Event
}

func (s *recordingSink) Emit(event contractx.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) byType(eventType string) []contractx.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contractx.Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine(t *testing.T, st *storex.MemoryStore, reasoners contractx.Reasoners, registry contractx.ProviderRegistry) *Engine {
	t.Helper()
	if registry == nil {
		registry = &stubRegistry{}
	}
	engine, err := New(st, reasoners, registry)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine
}

func seedClient(st *storex.MemoryStore) {
	st.PutClient(contractx.ClientProfile{
		ID:          "c1",
		Name:        "Sarah Chen",
		Province:    "ON",
		RiskProfile: "growth",
		Goals:       []string{"Buy a first home"},
	})
}

func TestKnowledgeAddFastPathScenario(t *testing.T) {
	t.Parallel()

	st := storex.NewMemoryStore()
	seedClient(st)

	engine := newTestEngine(t, st, &fakeReasoners{
		router:      &fakeRouter{err: errors.New("router must not be called")},
		matcher:     &fakeMatcher{},
		synthesizer: &fakeSynthesizer{},
	}, nil)

	sink := &recordingSink{}
	err := engine.HandleRequest(context.Background(), contractx.RequestEnvelope{
		ClientID: "c1",
		Text:     "Remember she prefers email over phone",
	}, sink)
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}

	entries, err := st.Knowledge(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Knowledge() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "she prefers email over phone" {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	added := sink.byType(contractx.EventKnowledgeAdded)
	if len(added) != 1 {
		t.Fatalf("expected 1 knowledge_added event, got %d", len(added))
	}
	responses := sink.byType(contractx.EventResponse)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response event, got %d", len(responses))
	}
	payload := responses[0].Payload.(contractx.ResponsePayload)
	if !strings.Contains(payload.Content, "added 1 entry") {
		t.Fatalf("unexpected response content: %s", payload.Content)
	}
	if payload.Composite != nil {
		t.Fatal("knowledge path must not carry a composite")
	}

	msgs, err := st.Messages(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "advisor" || msgs[1].Role != "system" {
		t.Fatalf("unexpected chat trail: %#v", msgs)
	}
}

func TestKnowledgeRemoveZeroMatch(t *testing.T) {
	t.Parallel()

	st := storex.NewMemoryStore()
	seedClient(st)

	engine := newTestEngine(t, st, &fakeReasoners{
		router:      &fakeRouter{},
		matcher:     &fakeMatcher{},
		synthesizer: &fakeSynthesizer{},
	}, nil)

	sink := &recordingSink{}
	err := engine.HandleRequest(context.Background(), contractx.RequestEnvelope{
		ClientID: "c1",
		Text:     "Remove the note about RESP contributions from the knowledge base",
	}, sink)
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}

	if removed := sink.byType(contractx.EventKnowledgeRemoved); len(removed) != 0 {
		t.Fatalf("expected no knowledge_removed event, got %d", len(removed))
	}
	responses := sink.byType(contractx.EventResponse)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response event, got %d", len(responses))
	}
	payload := responses[0].Payload.(contractx.ResponsePayload)
	if !strings.Contains(payload.Content, "couldn't find any matching entries") {
		t.Fatalf("unexpected response content: %s", payload.Content)
	}
}

func TestDispatchScenario(t *testing.T) {
	t.Parallel()

	st := storex.NewMemoryStore()
	seedClient(st)

	registry := &stubRegistry{providers: []contractx.Provider{
		&stubProvider{name: contractx.ProviderContext, result: contractx.ContextResult{Summary: "ctx"}},
		&stubProvider{name: contractx.ProviderQuant, result: contractx.QuantResult{Summary: "numbers"}},
		&stubProvider{name: contractx.ProviderCompliance, result: contractx.ComplianceResult{Status: "clear", Items: []contractx.ComplianceItem{}}},
		&stubProvider{name: contractx.ProviderResearch, result: contractx.ResearchResult{Summary: "research"}},
	}}

	engine := newTestEngine(t, st, &fakeReasoners{
		router: &fakeRouter{plan: contractx.ActionPlan{
			Kind:      contractx.PlanDispatch,
			Providers: []contractx.ProviderName{contractx.ProviderResearch},
		}},
		matcher:     &fakeMatcher{},
		synthesizer: &fakeSynthesizer{summary: "Research says growth ETFs fit."},
	}, registry)

	sink := &recordingSink{}
	err := engine.HandleRequest(context.Background(), contractx.RequestEnvelope{
		ClientID:      "c1",
		Text:          "What ETFs fit a growth investor?",
		CorrelationID: "cycle-1",
	}, sink)
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}

	responses := sink.byType(contractx.EventResponse)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response event, got %d", len(responses))
	}
	payload := responses[0].Payload.(contractx.ResponsePayload)
	if payload.Composite == nil {
		t.Fatal("dispatch response must carry the composite")
	}
	if payload.Composite.Research == nil {
		t.Fatal("research slot should be populated")
	}
	if payload.Composite.Numbers.Summary != "No calculations needed for this query." {
		t.Fatal("numbers slot should hold its default")
	}
	if payload.Content != "Research says growth ETFs fit." {
		t.Fatalf("unexpected narrative: %s", payload.Content)
	}

	if ready := sink.byType(contractx.EventCompositeReady); len(ready) != 1 {
		t.Fatalf("expected 1 composite_ready event, got %d", len(ready))
	}

	tasks, err := st.Tasks(context.Background(), storex.TaskFilter{ClientID: "c1"})
	if err != nil {
		t.Fatalf("Tasks() error = %v", err)
	}
	var cycle *contractx.ProviderTask
	for i := range tasks {
		if tasks[i].Provider == "orchestrator" {
			cycle = &tasks[i]
		}
	}
	if cycle == nil {
		t.Fatal("missing orchestrator cycle task")
	}
	if cycle.ID != "cycle-1" || cycle.Status != contractx.TaskCompleted {
		t.Fatalf("unexpected cycle task: %#v", cycle)
	}
	if len(cycle.OutputSnapshot) == 0 {
		t.Fatal("cycle task must persist the composite")
	}
}

func TestDirectAnswerFallback(t *testing.T) {
	t.Parallel()

	st := storex.NewMemoryStore()
	seedClient(st)

	engine := newTestEngine(t, st, &fakeReasoners{
		router:      &fakeRouter{plan: contractx.ActionPlan{Kind: contractx.PlanDirectAnswer}},
		matcher:     &fakeMatcher{},
		synthesizer: &fakeSynthesizer{answerErr: errors.New("model down")},
	}, nil)

	sink := &recordingSink{}
	err := engine.HandleRequest(context.Background(), contractx.RequestEnvelope{
		ClientID: "c1",
		Text:     "what accounts does this client have",
	}, sink)
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}

	responses := sink.byType(contractx.EventResponse)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response event, got %d", len(responses))
	}
	payload := responses[0].Payload.(contractx.ResponsePayload)
	if !strings.Contains(payload.Content, "try rephrasing") {
		t.Fatalf("unexpected fallback content: %s", payload.Content)
	}
}

func TestClientNotFound(t *testing.T) {
	t.Parallel()

	st := storex.NewMemoryStore()

	engine := newTestEngine(t, st, &fakeReasoners{
		router:      &fakeRouter{},
		matcher:     &fakeMatcher{},
		synthesizer: &fakeSynthesizer{},
	}, nil)

	sink := &recordingSink{}
	err := engine.HandleRequest(context.Background(), contractx.RequestEnvelope{
		ClientID: "missing",
		Text:     "anything",
	}, sink)
	if err == nil {
		t.Fatal("expected error for unknown client")
	}
	if !errors.Is(err, contractx.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}

	errs := sink.byType(contractx.EventError)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(errs))
	}
	msg := errs[0].Payload.(map[string]string)["message"]
	if msg != "Client not found" {
		t.Fatalf("unexpected error message: %s", msg)
	}

	msgs, err := st.Messages(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Fatal("unknown client must not mutate state")
	}
}

func TestRouterFailureDispatchesAll(t *testing.T) {
	t.Parallel()

	st := storex.NewMemoryStore()
	seedClient(st)

	registry := &stubRegistry{providers: []contractx.Provider{
		&stubProvider{name: contractx.ProviderContext, result: contractx.ContextResult{Summary: "ctx"}},
		&stubProvider{name: contractx.ProviderQuant, result: contractx.QuantResult{Summary: "numbers"}},
		&stubProvider{name: contractx.ProviderCompliance, result: contractx.ComplianceResult{Status: "clear", Items: []contractx.ComplianceItem{}}},
		&stubProvider{name: contractx.ProviderResearch, result: contractx.ResearchResult{Summary: "research"}},
	}}

	engine := newTestEngine(t, st, &fakeReasoners{
		router:      &fakeRouter{err: errors.New("router down")},
		matcher:     &fakeMatcher{},
		synthesizer: &fakeSynthesizer{summary: "All providers reporting."},
	}, registry)

	sink := &recordingSink{}
	err := engine.HandleRequest(context.Background(), contractx.RequestEnvelope{
		ClientID: "c1",
		Text:     "an ambiguous question with no obvious plan",
	}, sink)
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}

	dispatched := sink.byType(contractx.EventProviderDispatched)
	if len(dispatched) != 4 {
		t.Fatalf("router failure should dispatch all 4 providers, got %d", len(dispatched))
	}
}
