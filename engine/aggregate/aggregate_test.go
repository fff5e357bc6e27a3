package aggregate

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

type fakeSynthesizer struct {
	summary string
	err     error
	gotReq  contractx.SummarizeRequest
}

func (f *fakeSynthesizer) Summarize(ctx context.Context, req contractx.SummarizeRequest) (string, error) {
	f.gotReq = req
	return f.summary, f.err
}

func (f *fakeSynthesizer) Answer(ctx context.Context, req contractx.AnswerRequest) (string, error) {
	return "", errors.New("not used")
}

func bundleFor(name string) contractx.ContextBundle {
	return contractx.ContextBundle{Client: contractx.ClientProfile{ID: "c1", Name: name}}
}

func TestAggregateEmptyResultMap(t *testing.T) {
	t.Parallel()

	a := NewAggregator(&fakeSynthesizer{summary: "should not be used"})
	composite, narrative := a.Aggregate(context.Background(), nil, bundleFor("Sarah Chen"), "anything")

	if composite.Numbers.Summary != "No calculations needed for this query." {
		t.Fatalf("unexpected numbers default: %s", composite.Numbers.Summary)
	}
	if composite.Compliance.Status != "clear" || composite.Compliance.Items == nil {
		t.Fatalf("unexpected compliance default: %#v", composite.Compliance)
	}
	if composite.Draft.To != "Sarah Chen" || composite.Draft.Subject != "Following up" {
		t.Fatalf("unexpected draft default: %#v", composite.Draft)
	}
	if composite.Research != nil {
		t.Fatal("research slot must be nil when the provider did not run")
	}
	if narrative != genericNarrative {
		t.Fatalf("unexpected narrative: %s", narrative)
	}
}

func TestAggregateSingleSlotPopulated(t *testing.T) {
	t.Parallel()

	synth := &fakeSynthesizer{summary: "Research findings summarized."}
	a := NewAggregator(synth)

	results := map[contractx.ProviderName]contractx.Result{
		contractx.ProviderResearch: contractx.ResearchResult{
			Summary: "Suitable products for a growth profile.",
			Suggestions: []contractx.Suggestion{
				{Ticker: "VGRO.TO"}, {Ticker: "XEQT.TO"},
			},
		},
	}

	composite, narrative := a.Aggregate(context.Background(), results, bundleFor("Sarah Chen"), "What ETFs fit?")

	if composite.Research == nil {
		t.Fatal("research slot should be populated")
	}
	if composite.Numbers.Summary != "No calculations needed for this query." {
		t.Fatal("numbers slot should hold its default")
	}
	if narrative != "Research findings summarized." {
		t.Fatalf("unexpected narrative: %s", narrative)
	}

	if len(synth.gotReq.Parts) != 1 {
		t.Fatalf("expected 1 narrative part, got %d", len(synth.gotReq.Parts))
	}
	if !strings.Contains(synth.gotReq.Parts[0], "VGRO.TO") {
		t.Fatalf("suggestions missing from narrative part: %s", synth.gotReq.Parts[0])
	}
}

func TestAggregateSynthesisFallbackConcatenation(t *testing.T) {
	t.Parallel()

	a := NewAggregator(&fakeSynthesizer{err: errors.New("model down")})

	results := map[contractx.ProviderName]contractx.Result{
		contractx.ProviderQuant:   contractx.QuantResult{Summary: "Room is $18,500."},
		contractx.ProviderContext: contractx.ContextResult{Summary: "She prefers email."},
	}

	_, narrative := a.Aggregate(context.Background(), results, bundleFor("Sarah Chen"), "RRSP question")
	if narrative != "Room is $18,500. She prefers email." {
		t.Fatalf("unexpected fallback narrative: %s", narrative)
	}
}

func TestAggregateSynthesisFallbackGeneric(t *testing.T) {
	t.Parallel()

	a := NewAggregator(&fakeSynthesizer{err: errors.New("model down")})

	results := map[contractx.ProviderName]contractx.Result{
		contractx.ProviderCompliance: contractx.ComplianceResult{Status: "clear"},
	}

	_, narrative := a.Aggregate(context.Background(), results, bundleFor("Sarah Chen"), "check compliance")
	if narrative != "I've looked into this for you. Here's what I found." {
		t.Fatalf("unexpected narrative: %s", narrative)
	}
}

func TestAggregateComplianceClause(t *testing.T) {
	t.Parallel()

	synth := &fakeSynthesizer{summary: "ok"}
	a := NewAggregator(synth)

	results := map[contractx.ProviderName]contractx.Result{
		contractx.ProviderCompliance: contractx.ComplianceResult{
			Status: "warning",
			Items: []contractx.ComplianceItem{
				{Severity: "warning", Message: "OAS clawback risk"},
				{Severity: "info", Message: "RRIF minimum applies"},
			},
		},
	}

	a.Aggregate(context.Background(), results, bundleFor("Michel Tremblay"), "retirement check")

	if len(synth.gotReq.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(synth.gotReq.Parts))
	}
	part := synth.gotReq.Parts[0]
	if !strings.HasPrefix(part, "COMPLIANCE (warning):") {
		t.Fatalf("unexpected compliance clause: %s", part)
	}
	if !strings.Contains(part, "OAS clawback risk; RRIF minimum applies") {
		t.Fatalf("messages not joined: %s", part)
	}
}

func TestAggregateSlotShapeInvariant(t *testing.T) {
	t.Parallel()

	a := NewAggregator(&fakeSynthesizer{summary: "ok"})

	full := map[contractx.ProviderName]contractx.Result{
		contractx.ProviderContext:    contractx.ContextResult{Summary: "ctx", Draft: contractx.DraftMessage{To: "Sarah Chen", Subject: "Custom"}},
		contractx.ProviderQuant:      contractx.QuantResult{Summary: "numbers"},
		contractx.ProviderCompliance: contractx.ComplianceResult{Status: "clear", Items: []contractx.ComplianceItem{}},
		contractx.ProviderResearch:   contractx.ResearchResult{Summary: "research"},
	}

	composite, _ := a.Aggregate(context.Background(), full, bundleFor("Sarah Chen"), "everything")
	if composite.Draft.Subject != "Custom" {
		t.Fatal("context draft should replace the default")
	}
	if composite.Research == nil {
		t.Fatal("research slot should be populated")
	}

	empty, _ := a.Aggregate(context.Background(), nil, bundleFor("Sarah Chen"), "nothing")
	// Same slots either way; only contents differ.
	if empty.Compliance.Items == nil {
		t.Fatal("compliance items default must be an empty list")
	}
}
