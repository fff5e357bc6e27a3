package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

const (
	tfsaLimit2024        = 7000
	fhsaAnnualLimit      = 8000
	fhsaLifetimeLimit    = 40000
	oasClawbackThreshold = 90997
)

var rrifMinPct = map[int]float64{
	65: 0.04, 66: 0.0417, 67: 0.0435, 70: 0.05, 75: 0.0582,
	80: 0.0682, 85: 0.0851, 90: 0.1111, 94: 0.1667, 95: 0.20,
}

var prohibitedTerms = []string{
	"guaranteed returns", "guaranteed profit", "risk-free", "no risk", "can't lose",
}

// ComplianceProvider audits the query and account state against CRA limits,
// CIRO suitability language rules, and retirement-income thresholds.
type ComplianceProvider struct {
	now func() time.Time
}

func NewComplianceProvider() *ComplianceProvider {
	return &ComplianceProvider{now: time.Now}
}

func (p *ComplianceProvider) Name() contractx.ProviderName { return contractx.ProviderCompliance }

func (p *ComplianceProvider) Description(bundle contractx.ContextBundle) string {
	return fmt.Sprintf("Checking CRA rules, CIRO suitability, and regulatory limits for %s", bundle.Client.Name)
}

func (p *ComplianceProvider) Run(ctx context.Context, bundle contractx.ContextBundle, text string) (contractx.Result, error) {
	var items []contractx.ComplianceItem
	query := strings.ToLower(text)
	client := bundle.Client
	age := p.estimateAge(client.DateOfBirth)

	for _, acct := range bundle.Accounts {
		acctType := strings.ToUpper(acct.Type)
		room := acct.ContributionRoom

		if acctType == "RRSP" && room > rrspLimit2024 {
			items = append(items, contractx.ComplianceItem{
				Severity: "info",
				Message: fmt.Sprintf(
					"RRSP contribution room (%s) exceeds the 2024 annual limit (%s). Room carries forward from prior years.",
					money(room), money(rrspLimit2024)),
				RuleCitation: "ITA 146(1) - RRSP deduction limit",
			})
		}

		if acctType == "FHSA" && room > 0 && containsAny(query, "fhsa", "home") {
			items = append(items, contractx.ComplianceItem{
				Severity: "info",
				Message: fmt.Sprintf(
					"FHSA annual contribution limit is %s. Available room: %s. Lifetime limit: %s.",
					money(fhsaAnnualLimit), money(room), money(fhsaLifetimeLimit)),
				RuleCitation: "ITA 146.6 - Tax-Free First Home Savings Account",
			})
		}

		if acctType == "RESP" && containsAny(query, "resp", "cesg", "education") {
			dependents := client.Dependents
			if dependents < 1 {
				dependents = 1
			}
			childWord := "child"
			if dependents != 1 {
				childWord = "children"
			}
			items = append(items, contractx.ComplianceItem{
				Severity: "info",
				Message: fmt.Sprintf(
					"CESG matches 20%% on first $2,500/child/year (max %s/child). With %d %s, max annual CESG is %s.",
					money(respCESGAnnualMax), dependents, childWord, money(float64(respCESGAnnualMax*dependents))),
				RuleCitation: "Canada Education Savings Act s.5",
			})
		}
	}

	if age >= 65 {
		totalIncome := client.EmploymentIncome
		for _, acct := range bundle.Accounts {
			if strings.ToUpper(acct.Type) == "RRIF" {
				totalIncome += acct.Balance * rrifMinimumPct(age)
			}
		}
		if totalIncome > oasClawbackThreshold {
			items = append(items, contractx.ComplianceItem{
				Severity: "warning",
				Message: fmt.Sprintf(
					"Estimated total income (%s) exceeds the OAS clawback threshold (%s). OAS benefits may be reduced.",
					money(totalIncome), money(oasClawbackThreshold)),
				RuleCitation: "ITA 180.2 - OAS Recovery Tax",
			})
		}

		for _, acct := range bundle.Accounts {
			if strings.ToUpper(acct.Type) != "RRIF" {
				continue
			}
			minPct := rrifMinimumPct(age)
			items = append(items, contractx.ComplianceItem{
				Severity: "info",
				Message: fmt.Sprintf(
					"RRIF minimum withdrawal for age %d: %.2f%% of %s = %s.",
					age, minPct*100, money(acct.Balance), money(acct.Balance*minPct)),
				RuleCitation: "ITA 146.3(1) - Minimum RRIF Withdrawal",
			})
		}
	}

	if client.Province == "QC" {
		items = append(items, contractx.ComplianceItem{
			Severity:     "info",
			Message:      "Quebec tax rules apply (Revenu Quebec). Provincial rates differ from federal and other provinces.",
			RuleCitation: "Taxation Act (Quebec) - Provincial income tax",
		})
	}

	for _, term := range prohibitedTerms {
		if strings.Contains(query, term) {
			items = append(items, contractx.ComplianceItem{
				Severity: "error",
				Message: fmt.Sprintf(
					"Flagged term: %q. Advice must not imply guaranteed outcomes per CIRO suitability requirements.", term),
				RuleCitation: "CIRO Rule 3400 - Suitability",
			})
		}
	}

	status := "clear"
	for _, item := range items {
		if item.Severity == "error" {
			status = "error"
			break
		}
		if item.Severity == "warning" {
			status = "warning"
		}
	}

	if items == nil {
		items = []contractx.ComplianceItem{}
	}
	return contractx.ComplianceResult{Status: status, Items: items}, nil
}

func (p *ComplianceProvider) estimateAge(dob string) int {
	if dob == "" {
		return 0
	}
	birth, err := time.Parse("2006-01-02", dob)
	if err != nil {
		return 0
	}
	today := p.now()
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

func rrifMinimumPct(age int) float64 {
	if age < 65 {
		return 0.04
	}
	thresholds := make([]int, 0, len(rrifMinPct))
	for t := range rrifMinPct {
		thresholds = append(thresholds, t)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(thresholds)))
	for _, t := range thresholds {
		if age >= t {
			return rrifMinPct[t]
		}
	}
	return 0.04
}
