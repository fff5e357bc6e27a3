package reasoning

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

type fakeToolCallingModel struct {
	responses []*schema.Message
	err       error
	idx       int
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func TestRouterDispatchPlan(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{
				Content: `{"providers":["quant","compliance"],"reasoning":"needs math and rule check","direct_answer":false,"knowledge_add":false,"knowledge_remove":false}`,
			},
		},
	}

	router, err := newRouter(context.Background(), fake, "router prompt")
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	plan, err := router.Route(context.Background(), contractx.RouteRequest{
		Text:   "how much RRSP room does she have and what are the limits?",
		Client: contractx.ClientProfile{Name: "Sarah Chen"},
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if plan.Kind != contractx.PlanDispatch {
		t.Fatalf("unexpected kind: %s", plan.Kind)
	}
	if len(plan.Providers) != 2 || plan.Providers[0] != contractx.ProviderQuant || plan.Providers[1] != contractx.ProviderCompliance {
		t.Fatalf("unexpected providers: %#v", plan.Providers)
	}
	if plan.Reasoning != "needs math and rule check" {
		t.Fatalf("unexpected reasoning: %s", plan.Reasoning)
	}
}

func TestRouterRemoveWinsOverAdd(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{
				Content: `{"providers":[],"reasoning":"removal request","direct_answer":false,"knowledge_add":true,"entries":["stale"],"knowledge_remove":true,"keywords":["RESP plans"]}`,
			},
		},
	}

	router, err := newRouter(context.Background(), fake, "router prompt")
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	plan, err := router.Route(context.Background(), contractx.RouteRequest{
		Text: "replace the RESP note",
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if plan.Kind != contractx.PlanKnowledgeRemove {
		t.Fatalf("unexpected kind: %s", plan.Kind)
	}
	if len(plan.Keywords) != 1 || plan.Keywords[0] != "RESP plans" {
		t.Fatalf("unexpected keywords: %#v", plan.Keywords)
	}
}

func TestRouterEmptyProvidersFallsBackToDirect(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{
				Content: `{"providers":[],"reasoning":"simple lookup","direct_answer":false,"knowledge_add":false,"knowledge_remove":false}`,
			},
		},
	}

	router, err := newRouter(context.Background(), fake, "router prompt")
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	plan, err := router.Route(context.Background(), contractx.RouteRequest{
		Text: "show me the knowledge base",
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if plan.Kind != contractx.PlanDirectAnswer {
		t.Fatalf("unexpected kind: %s", plan.Kind)
	}
}

func TestRouterBlankTextRejected(t *testing.T) {
	t.Parallel()

	router, err := newRouter(context.Background(), &fakeToolCallingModel{}, "router prompt")
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	_, err = router.Route(context.Background(), contractx.RouteRequest{Text: "   "})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRouterModelFailure(t *testing.T) {
	t.Parallel()

	router, err := newRouter(context.Background(), &fakeToolCallingModel{err: errors.New("boom")}, "router prompt")
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	_, err = router.Route(context.Background(), contractx.RouteRequest{Text: "anything"})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("expected ErrModelInvoke, got %v", err)
	}
}

func TestMatcherFiltersFabricatedIDs(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{
				Content: `{"delete_ids":["k1","made-up","k1"]}`,
			},
		},
	}

	matcher, err := newMatcher(context.Background(), fake, "matcher prompt")
	if err != nil {
		t.Fatalf("newMatcher() error = %v", err)
	}

	entries := []contractx.KnowledgeEntry{
		{ID: "k1", Content: "prefers email over phone"},
		{ID: "k2", Content: "daughter starts university in 2027"},
	}

	ids, err := matcher.Match(context.Background(), entries, []string{"email preference"})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != "k1" {
		t.Fatalf("unexpected ids: %#v", ids)
	}
}

func TestMatcherEmptyInputsShortCircuit(t *testing.T) {
	t.Parallel()

	matcher, err := newMatcher(context.Background(), &fakeToolCallingModel{err: errors.New("should not be called")}, "matcher prompt")
	if err != nil {
		t.Fatalf("newMatcher() error = %v", err)
	}

	ids, err := matcher.Match(context.Background(), nil, []string{"anything"})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if ids != nil {
		t.Fatalf("expected nil ids, got %#v", ids)
	}
}

func TestSynthesizerSummarize(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{Content: "Sarah has $18,500 of RRSP room left. Open the full analysis for details."},
		},
	}

	synth, err := newSynthesizer(context.Background(), fake, "summary prompt", "direct prompt")
	if err != nil {
		t.Fatalf("newSynthesizer() error = %v", err)
	}

	out, err := synth.Summarize(context.Background(), contractx.SummarizeRequest{
		Client: contractx.ClientProfile{Name: "Sarah Chen"},
		Text:   "how much RRSP room?",
		Parts:  []string{"RRSP room remaining: $18,500"},
	})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty summary")
	}
}

func TestSynthesizerSummarizeNoParts(t *testing.T) {
	t.Parallel()

	synth, err := newSynthesizer(context.Background(), &fakeToolCallingModel{}, "summary prompt", "direct prompt")
	if err != nil {
		t.Fatalf("newSynthesizer() error = %v", err)
	}

	_, err = synth.Summarize(context.Background(), contractx.SummarizeRequest{Text: "anything"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSynthesizerAnswerEmptyResponse(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{Content: "   "},
		},
	}

	synth, err := newSynthesizer(context.Background(), fake, "summary prompt", "direct prompt")
	if err != nil {
		t.Fatalf("newSynthesizer() error = %v", err)
	}

	_, err = synth.Answer(context.Background(), contractx.AnswerRequest{Text: "what accounts does she have?"})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestRouterContextCondensation(t *testing.T) {
	t.Parallel()

	client := summarizeClient(contractx.ClientProfile{
		Name:         "Sarah Chen",
		Province:     "ON",
		RiskProfile:  "growth",
		AdvisorNotes: strings.Repeat("n", 400),
	})
	notes, ok := client["advisor_notes"].(string)
	if !ok {
		t.Fatalf("advisor_notes missing from condensed client: %#v", client)
	}
	if len([]rune(notes)) != maxNotesChars {
		t.Fatalf("notes length = %d, want %d", len([]rune(notes)), maxNotesChars)
	}

	knowledge := summarizeKnowledge([]contractx.KnowledgeEntry{
		{ID: "k1", Content: strings.Repeat("é", 200)},
		{ID: "k2", Content: "short fact"},
	})
	if len([]rune(knowledge[0])) != maxSnippetChars {
		t.Fatalf("entry length = %d, want %d", len([]rune(knowledge[0])), maxSnippetChars)
	}
	if knowledge[1] != "short fact" {
		t.Fatalf("short entry altered: %q", knowledge[1])
	}

	chat := summarizeChat([]contractx.ChatMessage{
		{Role: "advisor", Content: strings.Repeat("m", 151)},
	})
	content, _ := chat[0]["content"].(string)
	if len([]rune(content)) != maxSnippetChars {
		t.Fatalf("turn length = %d, want %d", len([]rune(content)), maxSnippetChars)
	}
}
