package providers

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

// 2024 CRA figures used by the deterministic analyses.
const (
	rrspLimit2024            = 31560
	respCESGMatchRate        = 0.20
	respCESGAnnualMax        = 500
	respCESGContribForMax    = 2500
	respCESGLifetimePerChild = 7200
)

// QuantProvider runs keyword-routed financial calculations over the client's
// accounts and income. All arithmetic is deterministic; no reasoning call.
type QuantProvider struct{}

func NewQuantProvider() *QuantProvider { return &QuantProvider{} }

func (p *QuantProvider) Name() contractx.ProviderName { return contractx.ProviderQuant }

func (p *QuantProvider) Description(bundle contractx.ContextBundle) string {
	return fmt.Sprintf("Running financial calculations on %s's accounts and tax situation", bundle.Client.Name)
}

func (p *QuantProvider) Run(ctx context.Context, bundle contractx.ContextBundle, text string) (contractx.Result, error) {
	query := strings.ToLower(text)
	first := firstName(bundle.Client.Name)
	accounts := accountMap(bundle.Accounts)

	switch {
	case containsAny(query, "mortgage", "fhsa", "home", "first home"):
		return mortgageVsFHSA(first, accounts, bundle.Client), nil
	case containsAny(query, "rrsp", "contribution room", "contribution"):
		return rrspAnalysis(first, accounts, bundle.Client), nil
	case containsAny(query, "resp", "cesg", "education", "grant"):
		return respCESGAnalysis(first, accounts, bundle.Client), nil
	case containsAny(query, "portfolio", "review", "drift", "rebalance"):
		return portfolioReview(first, accounts, bundle.Client), nil
	case containsAny(query, "tfsa", "compare", "student loan", "loan"):
		return tfsaVsRRSP(first, accounts, bundle.Client), nil
	case containsAny(query, "tax", "bracket", "salary", "dividend"):
		return taxOptimization(first, bundle.Client), nil
	default:
		return generalAnalysis(first, bundle.Accounts, bundle.Client), nil
	}
}

func accountMap(accounts []contractx.Account) map[string]contractx.Account {
	out := make(map[string]contractx.Account, len(accounts))
	for _, a := range accounts {
		out[strings.ToUpper(a.Type)] = a
	}
	return out
}

func mortgageVsFHSA(first string, accounts map[string]contractx.Account, client contractx.ClientProfile) contractx.QuantResult {
	fhsaRoom := accounts["FHSA"].ContributionRoom
	rrspRoom := accounts["RRSP"].ContributionRoom
	idleCash := accounts["CHECKING"].Balance
	income := client.EmploymentIncome
	rate := estimateMarginalRate(income)

	fhsaSavings := fhsaRoom * rate
	rrspSavings := 0.0
	if idleCash > fhsaRoom {
		rrspSavings = minFloat(rrspRoom, idleCash-fhsaRoom) * rate
	}
	remaining := idleCash - fhsaRoom - rrspRoom
	if remaining < 0 {
		remaining = 0
	}

	worksheet := fmt.Sprintf(
		"fhsa_room = %.0f\nrrsp_room = %.0f\nidle_cash = %.0f\nmarginal_rate = %.2f\n"+
			"fhsa_tax_savings = fhsa_room * marginal_rate = %.0f\n"+
			"fhsa_fv_5yr_6pct = fhsa_room * 1.06^5 = %.0f",
		fhsaRoom, rrspRoom, idleCash, rate, fhsaSavings, fhsaRoom*compound(0.06, 5))

	return contractx.QuantResult{
		Summary: fmt.Sprintf(
			"For %s, maxing the FHSA first (%s) is the clear winner. It gives a %s tax deduction now, tax-free growth, AND tax-free withdrawal for a home purchase. No other account offers all three.",
			first, money(fhsaRoom), money(fhsaSavings)),
		Details: fmt.Sprintf(
			"Step 1: Contribute %s to FHSA -> %s tax refund at %s marginal rate\n"+
				"Step 2: Consider RRSP contribution (%s room available) -> additional %s tax savings\n"+
				"Step 3: Remaining cash (%s) for emergency fund or mortgage down payment\n\n"+
				"FHSA advantage over RRSP for home buyers:\n"+
				"  - FHSA: deductible going in, tax-free coming out (for home purchase)\n"+
				"  - RRSP HBP: deductible going in, but must repay over 15 years\n"+
				"  - FHSA wins by ~%s over 15 years (avoided HBP repayment)",
			money(fhsaRoom), money(fhsaSavings), pct(rate),
			money(rrspRoom), money(rrspSavings), money(remaining), money(fhsaRoom*0.15)),
		Worksheet: worksheet,
		Formula:   `FV = PV \times (1 + r)^n \quad \text{Tax savings} = \text{Contribution} \times \text{Marginal Rate}`,
	}
}

func rrspAnalysis(first string, accounts map[string]contractx.Account, client contractx.ClientProfile) contractx.QuantResult {
	rrsp := accounts["RRSP"]
	rate := estimateMarginalRate(client.EmploymentIncome)
	savings := rrsp.ContributionRoom * rate

	return contractx.QuantResult{
		Summary: fmt.Sprintf(
			"%s has %s in RRSP contribution room. A full contribution would save %s in taxes at the %s marginal rate. RRSP deadline is March 1.",
			first, money(rrsp.ContributionRoom), money(savings), pct(rate)),
		Details: fmt.Sprintf(
			"Current RRSP balance: %s\nAvailable room: %s\nEmployment income: %s\n"+
				"Estimated marginal rate: %s\nTax savings from max contribution: %s\n\n"+
				"Note: RRSP deduction limit for 2024 is %s. Room is calculated as 18%% of prior year earned income, less pension adjustment.",
			money(rrsp.Balance), money(rrsp.ContributionRoom), money(client.EmploymentIncome),
			pct(rate), money(savings), money(rrspLimit2024)),
		Worksheet: fmt.Sprintf("room = %.0f\nmarginal_rate = %.2f\ntax_savings = room * marginal_rate = %.0f",
			rrsp.ContributionRoom, rate, savings),
		Formula: `\text{Tax Savings} = \text{Contribution Room} \times \text{Marginal Tax Rate}`,
	}
}

func respCESGAnalysis(first string, accounts map[string]contractx.Account, client contractx.ClientProfile) contractx.QuantResult {
	resp := accounts["RESP"]
	dependents := client.Dependents
	if dependents < 1 {
		dependents = 1
	}

	optimal := float64(respCESGContribForMax * dependents)
	cesg := float64(respCESGAnnualMax * dependents)
	childWord := "child"
	if dependents != 1 {
		childWord = "children"
	}

	return contractx.QuantResult{
		Summary: fmt.Sprintf(
			"To maximize the CESG for %d %s, %s should contribute %s/year (%s/child). That unlocks %s in free government grants this year.",
			dependents, childWord, first, money(optimal), money(respCESGContribForMax), money(cesg)),
		Details: fmt.Sprintf(
			"RESP balance: %s\nNumber of beneficiaries: %d\nCESG match rate: %s on first %s/child/year\n"+
				"Maximum CESG per child: %s/year\nOptimal contribution: %s\nCESG received: %s\n\n"+
				"Lifetime CESG limit: %s/child. Grants are available until the beneficiary turns 17.",
			money(resp.Balance), dependents, pct(respCESGMatchRate), money(respCESGContribForMax),
			money(respCESGAnnualMax), money(optimal), money(cesg), money(respCESGLifetimePerChild)),
		Worksheet: fmt.Sprintf(
			"children = %d\ncontribution_per_child = %d\ncesg_rate = %.2f\n"+
				"total_contribution = children * contribution_per_child = %.0f\n"+
				"cesg = total_contribution * cesg_rate = %.0f",
			dependents, respCESGContribForMax, respCESGMatchRate, optimal, cesg),
		Formula: `\text{CESG} = \min(\$500, \text{Contribution} \times 20\%) \text{ per child per year}`,
	}
}

func portfolioReview(first string, accounts map[string]contractx.Account, client contractx.ClientProfile) contractx.QuantResult {
	total := 0.0
	var breakdown []string
	for t, a := range accounts {
		total += a.Balance
		breakdown = append(breakdown, fmt.Sprintf("  %s: %s", t, money(a.Balance)))
	}

	risk := client.RiskProfile
	if risk == "" {
		risk = "balanced"
	}
	targetEquity := map[string]int{
		"conservative": 30,
		"balanced":     60,
		"growth":       80,
		"aggressive":   90,
	}[risk]
	if targetEquity == 0 {
		targetEquity = 60
	}

	return contractx.QuantResult{
		Summary: fmt.Sprintf(
			"%s's total portfolio is %s with a %s risk profile. Target equity allocation is %d%%. I'd recommend reviewing the current allocation for any drift.",
			first, money(total), risk, targetEquity),
		Details: fmt.Sprintf(
			"Total portfolio value: %s\nRisk profile: %s\nTarget equity allocation: %d%%\nTarget fixed income: %d%%\n\nAccount breakdown:\n%s",
			money(total), risk, targetEquity, 100-targetEquity, strings.Join(breakdown, "\n")),
		Worksheet: fmt.Sprintf("total = %.0f\ntarget_equity = %.2f\nequity_target_value = total * target_equity = %.0f",
			total, float64(targetEquity)/100, total*float64(targetEquity)/100),
		Formula: `\text{Target Equity} = \text{Total Portfolio} \times \text{Equity \%}`,
	}
}

func tfsaVsRRSP(first string, accounts map[string]contractx.Account, client contractx.ClientProfile) contractx.QuantResult {
	income := client.EmploymentIncome
	rate := estimateMarginalRate(income)
	tfsaRoom := accounts["TFSA"].ContributionRoom
	rrspRoom := accounts["RRSP"].ContributionRoom

	var recommendation, reason string
	switch {
	case income < 55000:
		recommendation = "TFSA first"
		reason = fmt.Sprintf("At %s income, the marginal rate is only %s. TFSA flexibility wins.", money(income), pct(rate))
	case income > 100000:
		recommendation = "RRSP first"
		reason = fmt.Sprintf("At %s income, the %s marginal rate makes the RRSP deduction very valuable.", money(income), pct(rate))
	default:
		recommendation = "Split between both"
		reason = fmt.Sprintf("At %s income, both accounts have merit. Consider splitting contributions.", money(income))
	}

	return contractx.QuantResult{
		Summary: fmt.Sprintf("For %s: %s. %s", first, recommendation, reason),
		Details: fmt.Sprintf(
			"TFSA room: %s\nRRSP room: %s\nIncome: %s\nMarginal rate: %s\n\n"+
				"TFSA: No deduction, but all growth and withdrawals are tax-free.\n"+
				"RRSP: Tax deduction now, but withdrawals are taxed as income.\n"+
				"Rule of thumb: RRSP wins when current marginal rate > expected retirement rate.",
			money(tfsaRoom), money(rrspRoom), money(income), pct(rate)),
		Worksheet: fmt.Sprintf("income = %.0f\nmarginal_rate = %.2f\nrrsp_tax_savings = %.0f * marginal_rate = %.0f",
			income, rate, rrspRoom, rrspRoom*rate),
		Formula: `\text{RRSP advantage} = \text{Room} \times (r_{\text{now}} - r_{\text{retirement}})`,
	}
}

func taxOptimization(first string, client contractx.ClientProfile) contractx.QuantResult {
	income := client.EmploymentIncome
	rate := estimateMarginalRate(income)

	return contractx.QuantResult{
		Summary: fmt.Sprintf(
			"%s's employment income of %s puts them at an estimated %s combined marginal rate. Key optimization opportunities depend on their specific situation.",
			first, money(income), pct(rate)),
		Details: fmt.Sprintf(
			"Employment income: %s\nEstimated marginal rate: %s\n\n"+
				"2024 Federal brackets:\n"+
				"  $0 - $55,867: 15%%\n"+
				"  $55,867 - $111,733: 20.5%%\n"+
				"  $111,733 - $173,675: 26%%\n"+
				"  $173,675 - $235,699: 29%%\n"+
				"  $235,699+: 33%%",
			money(income), pct(rate)),
		Worksheet: fmt.Sprintf("income = %.0f\nmarginal_rate = %.2f", income, rate),
		Formula:   `T = \sum_{i=1}^{n} r_i \times \min(I - B_{i-1}, B_i - B_{i-1})`,
	}
}

func generalAnalysis(first string, accounts []contractx.Account, client contractx.ClientProfile) contractx.QuantResult {
	total := 0.0
	var breakdown []string
	for _, a := range accounts {
		total += a.Balance
		breakdown = append(breakdown, fmt.Sprintf("  %s: %s", strings.ToUpper(a.Type), money(a.Balance)))
	}

	return contractx.QuantResult{
		Summary: fmt.Sprintf(
			"Here's an overview for %s: total portfolio %s, income %s. Let me know what specific area you'd like me to dig into.",
			first, money(total), money(client.EmploymentIncome)),
		Details: fmt.Sprintf("Portfolio: %s\nIncome: %s\nAccounts:\n%s",
			money(total), money(client.EmploymentIncome), strings.Join(breakdown, "\n")),
	}
}

// estimateMarginalRate approximates the combined federal plus average
// provincial marginal rate from the 2024 federal brackets.
func estimateMarginalRate(income float64) float64 {
	var federal float64
	switch {
	case income <= 55867:
		federal = 0.15
	case income <= 111733:
		federal = 0.205
	case income <= 173675:
		federal = 0.26
	case income <= 235699:
		federal = 0.29
	default:
		federal = 0.33
	}
	combined := federal + federal*0.55
	return float64(int(combined*100+0.5)) / 100
}

func compound(rate float64, years int) float64 {
	v := 1.0
	for i := 0; i < years; i++ {
		v *= 1 + rate
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
