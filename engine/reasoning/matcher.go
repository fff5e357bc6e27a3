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

type matcherImpl struct {
	runner compose.Runnable[map[string]any, matcherLLMOutput]
}

type matcherLLMOutput struct {
	DeleteIDs []string `json:"delete_ids"`
}

func newMatcher(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*matcherImpl, error) {
	runner, err := compileStructuredLLMGraph[matcherLLMOutput](ctx, chatModel, systemPrompt, "reasoning.matcher_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile matcher graph: %v", contractx.ErrModelInvoke, err)
	}
	return &matcherImpl{runner: runner}, nil
}

// Match returns ids the model selected, restricted to ids actually present
// in entries. Fabricated ids are dropped silently.
func (m *matcherImpl) Match(ctx context.Context, entries []contractx.KnowledgeEntry, keywords []string) ([]string, error) {
	if len(entries) == 0 || len(keywords) == 0 {
		return nil, nil
	}

	listed := make([]map[string]any, 0, len(entries))
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		listed = append(listed, map[string]any{
			"id":      e.ID,
			"content": e.Content,
		})
		known[e.ID] = true
	}

	payload := map[string]any{
		"entries":  listed,
		"keywords": keywords,
	}
	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal matcher payload: %v", contractx.ErrValidation, err)
	}

	out, err := m.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: matcher invoke: %v", contractx.ErrModelInvoke, err)
	}

	ids := make([]string, 0, len(out.DeleteIDs))
	seen := make(map[string]bool, len(out.DeleteIDs))
	for _, id := range out.DeleteIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" || !known[trimmed] || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		ids = append(ids, trimmed)
	}
	return ids, nil
}
