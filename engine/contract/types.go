package contract

import (
	"encoding/json"
	"time"
)

type ProviderName string

const (
	ProviderContext    ProviderName = "context"
	ProviderQuant      ProviderName = "quant"
	ProviderCompliance ProviderName = "compliance"
	ProviderResearch   ProviderName = "research"
)

// KnownProviders returns the fixed provider registry order. Dispatch
// announcements and composite slot assembly both follow this order.
func KnownProviders() []ProviderName {
	return []ProviderName{ProviderContext, ProviderQuant, ProviderCompliance, ProviderResearch}
}

func IsKnownProvider(name ProviderName) bool {
	for _, n := range KnownProviders() {
		if n == name {
			return true
		}
	}
	return false
}

// RequestEnvelope is one inbound advisor request. Immutable; discarded once
// the response cycle completes.
type RequestEnvelope struct {
	ClientID      string `json:"client_id"`
	Text          string `json:"text"`
	CorrelationID string `json:"correlation_id"`
}

type ClientProfile struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Province         string    `json:"province"`
	DateOfBirth      string    `json:"date_of_birth"`
	RiskProfile      string    `json:"risk_profile"`
	Goals            []string  `json:"goals"`
	MaritalStatus    string    `json:"marital_status,omitempty"`
	Dependents       int       `json:"dependents"`
	EmploymentIncome float64   `json:"employment_income"`
	Employer         string    `json:"employer,omitempty"`
	AdvisorNotes     string    `json:"advisor_notes,omitempty"`
	OnboardedAt      time.Time `json:"onboarded_at"`
}

type Account struct {
	ID               string    `json:"id"`
	ClientID         string    `json:"client_id"`
	Type             string    `json:"type"`
	Label            string    `json:"label,omitempty"`
	Balance          float64   `json:"balance"`
	ContributionRoom float64   `json:"contribution_room"`
	LastUpdated      time.Time `json:"last_updated"`
}

type Document struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	Type        string    `json:"type"`
	ContentText string    `json:"content_text"`
	TaxYear     int       `json:"tax_year,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// KnowledgeEntry is one advisor-curated fact. Entries are created and
// deleted, never updated; creation order carries a recency signal.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// MaxKnowledgeEntryLen bounds the content of a single knowledge entry.
const MaxKnowledgeEntryLen = 500

// ContextBundle is the read-only snapshot assembled once per request.
// RecentChat is most-recent-first; Knowledge is in creation order.
type ContextBundle struct {
	Client     ClientProfile
	Accounts   []Account
	Documents  []Document
	RecentChat []ChatMessage
	Knowledge  []KnowledgeEntry
}

type PlanKind string

const (
	PlanDirectAnswer    PlanKind = "direct_answer"
	PlanKnowledgeAdd    PlanKind = "knowledge_add"
	PlanKnowledgeRemove PlanKind = "knowledge_remove"
	PlanDispatch        PlanKind = "dispatch"
)

// ActionPlan is the classifier's decision for one request. Exactly one of
// Entries, Keywords, or Providers is meaningful, per Kind.
type ActionPlan struct {
	Kind      PlanKind
	Entries   []string
	Keywords  []string
	Providers []ProviderName
	Reasoning string
}

type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// ProviderTask is the persisted audit row for one provider invocation (or
// one orchestrator cycle). It transitions exactly once from running to a
// terminal status.
type ProviderTask struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	Provider       ProviderName    `json:"provider"`
	Status         TaskStatus      `json:"status"`
	InputSnapshot  json.RawMessage `json:"input_snapshot,omitempty"`
	OutputSnapshot json.RawMessage `json:"output_snapshot,omitempty"`
	AdvisorAction  string          `json:"advisor_action,omitempty"`
	AdvisorNote    string          `json:"advisor_note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    time.Time       `json:"completed_at,omitempty"`
}

// Result is a provider's typed partial output. Headline is the one-clause
// finding used when narrating over populated slots.
type Result interface {
	Headline() string
}

type QuantResult struct {
	Summary   string `json:"summary"`
	Details   string `json:"details"`
	Worksheet string `json:"worksheet,omitempty"`
	Formula   string `json:"formula,omitempty"`
}

func (r QuantResult) Headline() string { return r.Summary }

type ComplianceItem struct {
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	RuleCitation string `json:"rule_citation,omitempty"`
}

type ComplianceResult struct {
	Status string           `json:"status"`
	Items  []ComplianceItem `json:"items"`
}

func (r ComplianceResult) Headline() string {
	if len(r.Items) == 0 {
		return "compliance: " + r.Status
	}
	return r.Items[0].Message
}

type DraftMessage struct {
	To         string   `json:"to"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Tone       string   `json:"tone"`
	Highlights []string `json:"highlights,omitempty"`
}

type ClientContext struct {
	Goals     []string `json:"goals"`
	Accounts  []string `json:"accounts"`
	Documents []string `json:"documents"`
}

type ContextResult struct {
	Summary       string        `json:"summary"`
	Highlights    []string      `json:"highlights"`
	ClientContext ClientContext `json:"client_context"`
	Draft         DraftMessage  `json:"draft_message"`
}

func (r ContextResult) Headline() string { return r.Summary }

type MarketQuote struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	ChangePct float64 `json:"change_pct"`
}

type Suggestion struct {
	Ticker     string `json:"ticker"`
	Name       string `json:"name"`
	AssetClass string `json:"asset_class"`
	Rationale  string `json:"rationale"`
}

type ResearchResult struct {
	Summary     string        `json:"summary"`
	Suggestions []Suggestion  `json:"suggestions"`
	MarketData  []MarketQuote `json:"market_data,omitempty"`
}

func (r ResearchResult) Headline() string { return r.Summary }

// CompositeResult is the fixed-shape tri-tiered output: slot count and slot
// identity never vary across requests, only contents do. Research is the one
// nullable slot (the original contract serializes it as null when the
// provider did not run).
type CompositeResult struct {
	Numbers    QuantResult      `json:"numbers"`
	Compliance ComplianceResult `json:"compliance"`
	Draft      DraftMessage     `json:"draft_message"`
	Research   *ResearchResult  `json:"research"`
}

type AlertStatus string

const (
	AlertPending AlertStatus = "pending"
)

// Alert is proposed by the background scanner, only ever read by the engine.
type Alert struct {
	ID            string        `json:"id"`
	ClientID      string        `json:"client_id"`
	Type          string        `json:"alert_type"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	DraftedAction *DraftMessage `json:"drafted_action,omitempty"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}
