package providers

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

// Simulated market snapshot used in place of a live data feed.
var marketData = map[string]contractx.MarketQuote{
	"sp500":    {Label: "S&P 500", Value: 5892.34, ChangePct: 0.42},
	"tsx":      {Label: "S&P/TSX Composite", Value: 24156.78, ChangePct: -0.18},
	"cad_usd":  {Label: "CAD/USD", Value: 0.7342, ChangePct: -0.05},
	"boc_rate": {Label: "BoC Policy Rate", Value: 4.50, ChangePct: 0.0},
	"cpi_yoy":  {Label: "CPI YoY (Canada)", Value: 2.8, ChangePct: -0.1},
	"oil_wti":  {Label: "WTI Crude", Value: 78.45, ChangePct: 1.2},
}

type candidate struct {
	suggestion contractx.Suggestion
	risk       []string
}

// Product universe keyed to the risk profiles each product suits.
var universe = []candidate{
	{
		suggestion: contractx.Suggestion{
			Ticker: "XBAL.TO", Name: "iShares Core Balanced ETF Portfolio", AssetClass: "balanced",
			Rationale: "One-ticket 60/40 portfolio with automatic rebalancing.",
		},
		risk: []string{"conservative", "balanced"},
	},
	{
		suggestion: contractx.Suggestion{
			Ticker: "VGRO.TO", Name: "Vanguard Growth ETF Portfolio", AssetClass: "equity",
			Rationale: "80/20 growth allocation suited to long horizons.",
		},
		risk: []string{"balanced", "growth"},
	},
	{
		suggestion: contractx.Suggestion{
			Ticker: "XEQT.TO", Name: "iShares Core Equity ETF Portfolio", AssetClass: "equity",
			Rationale: "100% global equity for maximum long-run growth.",
		},
		risk: []string{"growth", "aggressive"},
	},
	{
		suggestion: contractx.Suggestion{
			Ticker: "XIC.TO", Name: "iShares Core S&P/TSX Capped Composite", AssetClass: "equity",
			Rationale: "Broad Canadian equity exposure at low cost.",
		},
		risk: []string{"balanced", "growth", "aggressive"},
	},
	{
		suggestion: contractx.Suggestion{
			Ticker: "ZAG.TO", Name: "BMO Aggregate Bond Index ETF", AssetClass: "fixed_income",
			Rationale: "Core Canadian bond exposure to dampen volatility.",
		},
		risk: []string{"conservative", "balanced"},
	},
	{
		suggestion: contractx.Suggestion{
			Ticker: "GIC-1Y", Name: "1-Year GIC ladder", AssetClass: "cash_equivalent",
			Rationale: "Capital-protected yield while BoC rates stay elevated.",
		},
		risk: []string{"conservative"},
	},
	{
		suggestion: contractx.Suggestion{
			Ticker: "QQC.TO", Name: "Invesco NASDAQ 100 Index ETF", AssetClass: "equity",
			Rationale: "Concentrated large-cap tech for aggressive sleeves.",
		},
		risk: []string{"aggressive"},
	},
}

// ResearchProvider suggests investment products filtered by the client's risk
// profile and attaches simulated market quotes keyed off the query.
type ResearchProvider struct{}

func NewResearchProvider() *ResearchProvider { return &ResearchProvider{} }

func (p *ResearchProvider) Name() contractx.ProviderName { return contractx.ProviderResearch }

func (p *ResearchProvider) Description(bundle contractx.ContextBundle) string {
	risk := bundle.Client.RiskProfile
	if risk == "" {
		risk = "balanced"
	}
	return fmt.Sprintf("Researching suitable investments for %s's %s profile", bundle.Client.Name, risk)
}

func (p *ResearchProvider) Run(ctx context.Context, bundle contractx.ContextBundle, text string) (contractx.Result, error) {
	risk := strings.ToLower(bundle.Client.RiskProfile)
	if risk == "" {
		risk = "balanced"
	}

	suggestions := make([]contractx.Suggestion, 0, 4)
	for _, c := range universe {
		for _, r := range c.risk {
			if r == risk {
				suggestions = append(suggestions, c.suggestion)
				break
			}
		}
		if len(suggestions) == 4 {
			break
		}
	}

	quotes := relevantQuotes(strings.ToLower(text))

	return contractx.ResearchResult{
		Summary: fmt.Sprintf(
			"Based on the %s risk profile, here are suitable products to consider. Market data as of today (simulated for demo).", risk),
		Suggestions: suggestions,
		MarketData:  quotes,
	}, nil
}

func relevantQuotes(query string) []contractx.MarketQuote {
	var out []contractx.MarketQuote
	if containsAny(query, "rate", "mortgage", "interest", "bond") {
		out = append(out, marketData["boc_rate"])
	}
	if containsAny(query, "stock", "portfolio", "equity", "market", "etf") {
		out = append(out, marketData["sp500"], marketData["tsx"])
	}
	if containsAny(query, "oil", "energy", "suncor", "alberta") {
		out = append(out, marketData["oil_wti"])
	}
	if containsAny(query, "inflation", "cpi", "price") {
		out = append(out, marketData["cpi_yoy"])
	}
	if len(out) == 0 {
		out = []contractx.MarketQuote{marketData["tsx"], marketData["boc_rate"]}
	}
	return out
}
