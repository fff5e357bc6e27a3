package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

// Seed loads the demo book of business into a MemoryStore. It is a no-op
// when clients already exist.
func Seed(ctx context.Context, s *MemoryStore) error {
	if existing, err := s.Clients(ctx); err != nil {
		return err
	} else if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()

	sarah := contractx.ClientProfile{
		ID:               uuid.NewString(),
		Name:             "Sarah Chen",
		Email:            "sarah.chen@email.com",
		Phone:            "416-555-0123",
		Province:         "ON",
		DateOfBirth:      "1994-06-15",
		RiskProfile:      "growth",
		Goals:            []string{"Buy a cottage near Lake Muskoka", "Max FHSA before first home purchase", "Build long-term wealth"},
		MaritalStatus:    "single",
		EmploymentIncome: 145000,
		Employer:         "Shopify",
		AdvisorNotes:     "Very engaged client. Asks detailed questions. Prefers email communication. First-time home buyer.",
		OnboardedAt:      now,
	}
	s.PutClient(sarah)
	for _, a := range []struct {
		typ, label string
		balance    float64
		room       float64
	}{
		{"TFSA", "TFSA", 42000, 7000},
		{"FHSA", "FHSA", 16000, 8000},
		{"RRSP", "RRSP", 28000, 18500},
		{"checking", "TD Chequing", 23500, 0},
	} {
		s.PutAccount(contractx.Account{
			ID: uuid.NewString(), ClientID: sarah.ID, Type: a.typ, Label: a.label,
			Balance: a.balance, ContributionRoom: a.room, LastUpdated: now,
		})
	}
	s.PutDocument(contractx.Document{
		ID: uuid.NewString(), ClientID: sarah.ID, Type: "T4", TaxYear: 2024, UploadedAt: now,
		ContentText: "Employer: Shopify Inc. Employment income: $145,000. CPP contributions: $3,867. EI premiums: $1,049. Income tax deducted: $32,450.",
	})
	s.PutDocument(contractx.Document{
		ID: uuid.NewString(), ClientID: sarah.ID, Type: "NOA", TaxYear: 2024, UploadedAt: now,
		ContentText: "Total income: $145,000. Taxable income: $131,500. RRSP deduction limit: $18,500. TFSA room: $7,000.",
	})
	_ = s.AppendMessage(ctx, contractx.ChatMessage{
		ID: uuid.NewString(), ClientID: sarah.ID, Role: "client", CreatedAt: now.Add(-48 * time.Hour),
		Content: "I've been thinking about buying my first home. Should I keep putting money into my FHSA or start saving in my RRSP? I also have about $23K just sitting in my chequing account.",
	})

	james := contractx.ClientProfile{
		ID:               uuid.NewString(),
		Name:             "James Park",
		Email:            "james.park@parkdental.ca",
		Province:         "BC",
		DateOfBirth:      "1973-09-22",
		RiskProfile:      "balanced",
		Goals:            []string{"Retire at 60", "Fund daughter's UBC tuition via RESP", "Income splitting with spouse"},
		MaritalStatus:    "married",
		Dependents:       1,
		EmploymentIncome: 310000,
		Employer:         "Self-employed (Park Dental)",
		AdvisorNotes:     "Self-employed dentist. Incorporated. Daughter Emily, age 16, starting UBC in 2 years.",
		OnboardedAt:      now,
	}
	s.PutClient(james)
	for _, a := range []struct {
		typ, label string
		balance    float64
		room       float64
	}{
		{"RRSP", "Personal RRSP", 485000, 52000},
		{"TFSA", "TFSA", 88000, 0},
		{"RESP", "Emily RESP", 62000, 0},
		{"checking", "Business Chequing", 45000, 0},
	} {
		s.PutAccount(contractx.Account{
			ID: uuid.NewString(), ClientID: james.ID, Type: a.typ, Label: a.label,
			Balance: a.balance, ContributionRoom: a.room, LastUpdated: now,
		})
	}

	michel := contractx.ClientProfile{
		ID:            uuid.NewString(),
		Name:          "Michel Tremblay",
		Province:      "QC",
		DateOfBirth:   "1958-11-03",
		RiskProfile:   "conservative",
		Goals:         []string{"Minimize tax on RRIF withdrawals", "Maximize OAS/GIS", "Leave inheritance for 3 grandchildren"},
		MaritalStatus: "married",
		Employer:      "Retired (formerly CSDM teacher)",
		AdvisorNotes:  "Retired teacher. Pension from RREGOP. Prefers French but comfortable in English.",
		OnboardedAt:   now,
	}
	s.PutClient(michel)
	for _, a := range []struct {
		typ, label string
		balance    float64
	}{
		{"RRIF", "RRIF (converted from RRSP)", 340000},
		{"TFSA", "TFSA", 95000},
		{"non_registered", "Joint Non-Registered", 120000},
	} {
		s.PutAccount(contractx.Account{
			ID: uuid.NewString(), ClientID: michel.ID, Type: a.typ, Label: a.label,
			Balance: a.balance, LastUpdated: now,
		})
	}

	return nil
}
