package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

type routerImpl struct {
	runner compose.Runnable[map[string]any, routerLLMOutput]
}

type routerLLMOutput struct {
	Providers       []string `json:"providers"`
	Reasoning       string   `json:"reasoning"`
	DirectAnswer    bool     `json:"direct_answer"`
	KnowledgeAdd    bool     `json:"knowledge_add"`
	Entries         []string `json:"entries,omitempty"`
	KnowledgeRemove bool     `json:"knowledge_remove"`
	Keywords        []string `json:"keywords,omitempty"`
}

func newRouter(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*routerImpl, error) {
	runner, err := compileStructuredLLMGraph[routerLLMOutput](ctx, chatModel, systemPrompt, "reasoning.router_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile router graph: %v", contractx.ErrModelInvoke, err)
	}
	return &routerImpl{runner: runner}, nil
}

func (r *routerImpl) Route(ctx context.Context, req contractx.RouteRequest) (contractx.ActionPlan, error) {
	if strings.TrimSpace(req.Text) == "" {
		return contractx.ActionPlan{}, fmt.Errorf("%w: request text is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"text":        req.Text,
		"client":      summarizeClient(req.Client),
		"knowledge":   summarizeKnowledge(req.Knowledge),
		"recent_chat": summarizeChat(req.RecentChat),
	}
	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return contractx.ActionPlan{}, fmt.Errorf("%w: marshal router payload: %v", contractx.ErrValidation, err)
	}

	out, err := r.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.ActionPlan{}, fmt.Errorf("%w: router invoke: %v", contractx.ErrModelInvoke, err)
	}

	return planFromOutput(out), nil
}

// planFromOutput applies the kind precedence remove > add > direct >
// dispatch. Downstream sanitization filters unknown provider names.
func planFromOutput(out routerLLMOutput) contractx.ActionPlan {
	reasoning := strings.TrimSpace(out.Reasoning)

	if out.KnowledgeRemove {
		return contractx.ActionPlan{
			Kind:      contractx.PlanKnowledgeRemove,
			Keywords:  trimAll(out.Keywords),
			Reasoning: reasoning,
		}
	}
	if out.KnowledgeAdd {
		return contractx.ActionPlan{
			Kind:      contractx.PlanKnowledgeAdd,
			Entries:   trimAll(out.Entries),
			Reasoning: reasoning,
		}
	}
	if out.DirectAnswer || len(out.Providers) == 0 {
		return contractx.ActionPlan{
			Kind:      contractx.PlanDirectAnswer,
			Reasoning: reasoning,
		}
	}

	providers := make([]contractx.ProviderName, 0, len(out.Providers))
	for _, name := range out.Providers {
		trimmed := contractx.ProviderName(strings.ToLower(strings.TrimSpace(name)))
		if trimmed == "" {
			continue
		}
		providers = append(providers, trimmed)
	}
	return contractx.ActionPlan{
		Kind:      contractx.PlanDispatch,
		Providers: providers,
		Reasoning: reasoning,
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Per-item ceilings on the condensed router context.
const (
	maxNotesChars   = 300
	maxSnippetChars = 150
)

func summarizeClient(client contractx.ClientProfile) map[string]any {
	return map[string]any{
		"name":          client.Name,
		"province":      client.Province,
		"risk_profile":  client.RiskProfile,
		"goals":         client.Goals,
		"advisor_notes": clip(client.AdvisorNotes, maxNotesChars),
	}
}

func summarizeKnowledge(entries []contractx.KnowledgeEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, clip(e.Content, maxSnippetChars))
	}
	return out
}

func summarizeChat(messages []contractx.ChatMessage) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]any{
			"role":    m.Role,
			"content": clip(m.Content, maxSnippetChars),
		})
	}
	return out
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
