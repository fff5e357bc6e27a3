package aggregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

const genericNarrative = "I've looked into this for you. Here's what I found — open the full analysis for details."

// Aggregator merges a dispatch cycle's result map into the fixed-shape
// composite and phrases the advisor-facing narrative. Slot count and slot
// identity never vary; only contents do.
type Aggregator struct {
	synthesizer contractx.Synthesizer
}

func NewAggregator(synthesizer contractx.Synthesizer) *Aggregator {
	return &Aggregator{synthesizer: synthesizer}
}

// Aggregate fills each slot from its provider's result when present, or the
// slot's documented default otherwise. The narrative covers populated slots
// only; defaults are never narrated.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	results map[contractx.ProviderName]contractx.Result,
	bundle contractx.ContextBundle,
	text string,
) (contractx.CompositeResult, string) {
	quant, hasQuant := resultAs[contractx.QuantResult](results, contractx.ProviderQuant)
	compliance, hasCompliance := resultAs[contractx.ComplianceResult](results, contractx.ProviderCompliance)
	ctxResult, hasContext := resultAs[contractx.ContextResult](results, contractx.ProviderContext)
	research, hasResearch := resultAs[contractx.ResearchResult](results, contractx.ProviderResearch)

	composite := contractx.CompositeResult{
		Numbers:    defaultNumbers(),
		Compliance: defaultCompliance(),
		Draft:      defaultDraft(bundle.Client.Name),
	}
	if hasQuant {
		composite.Numbers = quant
	}
	if hasCompliance {
		composite.Compliance = compliance
	}
	if hasContext {
		composite.Draft = ctxResult.Draft
	}
	if hasResearch {
		composite.Research = &research
	}

	narrative := a.narrate(ctx, bundle.Client, text, quant, hasQuant,
		ctxResult, hasContext, compliance, hasCompliance, research, hasResearch)

	return composite, narrative
}

func defaultNumbers() contractx.QuantResult {
	return contractx.QuantResult{
		Summary: "No calculations needed for this query.",
	}
}

func defaultCompliance() contractx.ComplianceResult {
	return contractx.ComplianceResult{
		Status: "clear",
		Items:  []contractx.ComplianceItem{},
	}
}

func defaultDraft(clientName string) contractx.DraftMessage {
	return contractx.DraftMessage{
		To:      clientName,
		Subject: "Following up",
		Body:    "I wanted to follow up on our conversation.",
		Tone:    "Warm + Professional",
	}
}

func (a *Aggregator) narrate(
	ctx context.Context,
	client contractx.ClientProfile,
	text string,
	quant contractx.QuantResult, hasQuant bool,
	ctxResult contractx.ContextResult, hasContext bool,
	compliance contractx.ComplianceResult, hasCompliance bool,
	research contractx.ResearchResult, hasResearch bool,
) string {
	var parts []string
	if hasQuant && quant.Summary != "" {
		parts = append(parts, "QUANT ANALYSIS: "+quant.Summary)
	}
	if hasContext && ctxResult.Summary != "" {
		parts = append(parts, "CLIENT CONTEXT: "+ctxResult.Summary)
	}
	if hasCompliance {
		parts = append(parts, complianceClause(compliance))
	}
	if hasResearch && research.Summary != "" {
		clause := "INVESTMENT RESEARCH: " + research.Summary
		if tickers := suggestionTickers(research.Suggestions); tickers != "" {
			clause += " Suggestions: " + tickers
		}
		parts = append(parts, clause)
	}

	if len(parts) == 0 {
		return genericNarrative
	}

	summary, err := a.synthesizer.Summarize(ctx, contractx.SummarizeRequest{
		Client: client,
		Text:   text,
		Parts:  parts,
	})
	if err == nil {
		return summary
	}
	log.Warn().Err(err).Msg("narrative synthesis failed, using concatenation fallback")

	var fallback []string
	if hasQuant && quant.Summary != "" {
		fallback = append(fallback, quant.Summary)
	}
	if hasContext && ctxResult.Summary != "" {
		fallback = append(fallback, ctxResult.Summary)
	}
	if len(fallback) == 0 {
		return "I've looked into this for you. Here's what I found."
	}
	return strings.Join(fallback, " ")
}

func complianceClause(compliance contractx.ComplianceResult) string {
	status := compliance.Status
	if status == "" {
		status = "clear"
	}
	limit := len(compliance.Items)
	if limit > 3 {
		limit = 3
	}
	messages := make([]string, 0, limit)
	for _, item := range compliance.Items[:limit] {
		if item.Message != "" {
			messages = append(messages, item.Message)
		}
	}
	if len(messages) == 0 {
		return "COMPLIANCE: " + status
	}
	return fmt.Sprintf("COMPLIANCE (%s): %s", status, strings.Join(messages, "; "))
}

func suggestionTickers(suggestions []contractx.Suggestion) string {
	limit := len(suggestions)
	if limit > 5 {
		limit = 5
	}
	tickers := make([]string, 0, limit)
	for _, s := range suggestions[:limit] {
		if s.Ticker != "" {
			tickers = append(tickers, s.Ticker)
		}
	}
	return strings.Join(tickers, ", ")
}

func resultAs[T contractx.Result](results map[contractx.ProviderName]contractx.Result, name contractx.ProviderName) (T, bool) {
	var zero T
	raw, ok := results[name]
	if !ok {
		return zero, false
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
