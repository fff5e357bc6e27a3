package providers

import (
	"context"
	"strings"
	"testing"
	"time"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

func growthBundle() contractx.ContextBundle {
	return contractx.ContextBundle{
		Client: contractx.ClientProfile{
			ID:               "c1",
			Name:             "Sarah Chen",
			Province:         "ON",
			DateOfBirth:      "1992-03-15",
			RiskProfile:      "growth",
			Goals:            []string{"Buy a first home", "Retire at 60"},
			Dependents:       0,
			EmploymentIncome: 98000,
		},
		Accounts: []contractx.Account{
			{Type: "RRSP", Balance: 42000, ContributionRoom: 18500},
			{Type: "FHSA", Balance: 8000, ContributionRoom: 8000},
			{Type: "TFSA", Balance: 31000, ContributionRoom: 12000},
			{Type: "checking", Balance: 24000},
		},
	}
}

func TestRegistryOrderAndLookup(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	names := reg.Names()
	want := contractx.KnownProviders()
	if len(names) != len(want) {
		t.Fatalf("expected %d providers, got %d", len(want), len(names))
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, names[i])
		}
	}

	if _, ok := reg.Lookup(contractx.ProviderQuant); !ok {
		t.Fatal("quant provider missing from registry")
	}
	if _, ok := reg.Lookup("nonsense"); ok {
		t.Fatal("lookup of unknown name should fail")
	}
}

func TestQuantRRSPAnalysis(t *testing.T) {
	t.Parallel()

	p := NewQuantProvider()
	res, err := p.Run(context.Background(), growthBundle(), "How much RRSP room does she have?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	quant, ok := res.(contractx.QuantResult)
	if !ok {
		t.Fatalf("unexpected result type %T", res)
	}
	if !strings.Contains(quant.Summary, "$18,500") {
		t.Fatalf("summary missing room amount: %s", quant.Summary)
	}
	if quant.Worksheet == "" || quant.Formula == "" {
		t.Fatal("expected worksheet and formula to be populated")
	}
}

func TestQuantMarginalRate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		income float64
		want   float64
	}{
		{income: 50000, want: 0.23},
		{income: 98000, want: 0.32},
		{income: 150000, want: 0.40},
		{income: 300000, want: 0.51},
	}
	for _, tc := range cases {
		if got := estimateMarginalRate(tc.income); got != tc.want {
			t.Fatalf("income %.0f: expected rate %.2f, got %.2f", tc.income, tc.want, got)
		}
	}
}

func TestQuantGeneralFallback(t *testing.T) {
	t.Parallel()

	p := NewQuantProvider()
	res, err := p.Run(context.Background(), growthBundle(), "anything unrelated")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	quant := res.(contractx.QuantResult)
	if !strings.Contains(quant.Summary, "overview") {
		t.Fatalf("expected general overview, got: %s", quant.Summary)
	}
}

func TestContextDraftSubjectKeyedByQuery(t *testing.T) {
	t.Parallel()

	p := NewContextProvider()
	res, err := p.Run(context.Background(), growthBundle(), "What's the best move for her RRSP this year?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	ctxRes, ok := res.(contractx.ContextResult)
	if !ok {
		t.Fatalf("unexpected result type %T", res)
	}
	if ctxRes.Draft.Subject != "Quick thought on your RRSP" {
		t.Fatalf("unexpected subject: %s", ctxRes.Draft.Subject)
	}
	if ctxRes.Draft.To != "Sarah Chen" {
		t.Fatalf("unexpected recipient: %s", ctxRes.Draft.To)
	}
	if !strings.Contains(ctxRes.Draft.Body, "Hi Sarah") {
		t.Fatalf("body not personalized: %s", ctxRes.Draft.Body)
	}
	if len(ctxRes.Highlights) == 0 {
		t.Fatal("expected highlights from goals")
	}
}

func TestComplianceProhibitedTerm(t *testing.T) {
	t.Parallel()

	p := NewComplianceProvider()
	res, err := p.Run(context.Background(), growthBundle(), "Tell her this fund has guaranteed returns")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	comp := res.(contractx.ComplianceResult)
	if comp.Status != "error" {
		t.Fatalf("expected error status, got %s", comp.Status)
	}
	found := false
	for _, item := range comp.Items {
		if item.Severity == "error" && strings.Contains(item.Message, "guaranteed returns") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a flagged-term item")
	}
}

func TestComplianceOASClawback(t *testing.T) {
	t.Parallel()

	p := &ComplianceProvider{now: func() time.Time {
		return time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	}}

	bundle := contractx.ContextBundle{
		Client: contractx.ClientProfile{
			Name:             "Michel Tremblay",
			Province:         "QC",
			DateOfBirth:      "1954-02-10",
			RiskProfile:      "conservative",
			EmploymentIncome: 88000,
		},
		Accounts: []contractx.Account{
			{Type: "RRIF", Balance: 340000},
		},
	}

	res, err := p.Run(context.Background(), bundle, "Check his retirement income situation")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	comp := res.(contractx.ComplianceResult)
	if comp.Status != "warning" {
		t.Fatalf("expected warning status, got %s", comp.Status)
	}

	var clawback, rrifMin, quebec bool
	for _, item := range comp.Items {
		if strings.Contains(item.Message, "OAS clawback") {
			clawback = true
		}
		if strings.Contains(item.Message, "RRIF minimum withdrawal") {
			rrifMin = true
		}
		if strings.Contains(item.Message, "Quebec") {
			quebec = true
		}
	}
	if !clawback || !rrifMin || !quebec {
		t.Fatalf("missing expected items: clawback=%v rrifMin=%v quebec=%v", clawback, rrifMin, quebec)
	}
}

func TestComplianceCleanRun(t *testing.T) {
	t.Parallel()

	p := NewComplianceProvider()
	bundle := contractx.ContextBundle{
		Client: contractx.ClientProfile{
			Name: "James Park", Province: "BC", DateOfBirth: "1985-07-01",
			RiskProfile: "balanced", EmploymentIncome: 60000,
		},
	}

	res, err := p.Run(context.Background(), bundle, "summarize this client")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	comp := res.(contractx.ComplianceResult)
	if comp.Status != "clear" {
		t.Fatalf("expected clear, got %s", comp.Status)
	}
	if comp.Items == nil {
		t.Fatal("items must be an empty list, not nil")
	}
}

func TestResearchRiskFiltering(t *testing.T) {
	t.Parallel()

	p := NewResearchProvider()
	res, err := p.Run(context.Background(), growthBundle(), "What ETFs fit a growth investor?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	research := res.(contractx.ResearchResult)
	if len(research.Suggestions) == 0 {
		t.Fatal("expected suggestions for growth profile")
	}
	for _, s := range research.Suggestions {
		if s.Ticker == "GIC-1Y" {
			t.Fatal("conservative-only product suggested for growth profile")
		}
	}
	if len(research.MarketData) == 0 {
		t.Fatal("expected market quotes")
	}
}

func TestResearchDefaultQuotes(t *testing.T) {
	t.Parallel()

	quotes := relevantQuotes("something with no keywords at all")
	if len(quotes) != 2 {
		t.Fatalf("expected 2 default quotes, got %d", len(quotes))
	}
	if quotes[0].Label != "S&P/TSX Composite" {
		t.Fatalf("unexpected first default quote: %s", quotes[0].Label)
	}
}

func TestMoneyFormatting(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{
		0:        "$0",
		950:      "$950",
		18500:    "$18,500",
		1234567:  "$1,234,567",
		-4200:    "-$4,200",
		999.6:    "$1,000",
		90997.01: "$90,997",
	}
	for in, want := range cases {
		if got := money(in); got != want {
			t.Fatalf("money(%v) = %s, want %s", in, got, want)
		}
	}
}
