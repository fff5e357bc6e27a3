package scanner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
	storex "github.com/wshadow/advisor-engine/store"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []contractx.Alert
}

func (n *recordingNotifier) Publish(_ context.Context, _ string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if alert, ok := payload.(contractx.Alert); ok {
		n.messages = append(n.messages, alert)
	}
	return nil
}

func newTestScanner(store *storex.MemoryStore, now time.Time) *Scanner {
	s := New(store, nil)
	s.now = func() time.Time { return now }
	return s
}

func seedClient(store *storex.MemoryStore, profile contractx.ClientProfile, accounts ...contractx.Account) {
	store.PutClient(profile)
	for _, acct := range accounts {
		acct.ClientID = profile.ID
		store.PutAccount(acct)
	}
}

func alertTypes(alerts []contractx.Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, alert := range alerts {
		out = append(out, alert.Type)
	}
	return out
}

func TestIdleCashAlertFires(t *testing.T) {
	t.Parallel()

	store := storex.NewMemoryStore()
	seedClient(store,
		contractx.ClientProfile{ID: "c1", Name: "Sarah Chen", DateOfBirth: "1994-06-15"},
		contractx.Account{ID: "a1", Type: "checking", Label: "TD Chequing", Balance: 23500},
		contractx.Account{ID: "a2", Type: "TFSA", Balance: 42000, ContributionRoom: 7000},
	)
	s := newTestScanner(store, time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC))

	alerts, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Type != alertIdleCash {
		t.Fatalf("alerts = %v, want one idle_cash", alertTypes(alerts))
	}
	if !strings.Contains(alerts[0].Description, "$23,500") {
		t.Fatalf("description = %q, want balance mention", alerts[0].Description)
	}
	if alerts[0].DraftedAction == nil || !strings.Contains(alerts[0].DraftedAction.Body, "Hi Sarah") {
		t.Fatalf("drafted action = %+v, want greeting with first name", alerts[0].DraftedAction)
	}
}

func TestIdleCashNeedsShelteredRoom(t *testing.T) {
	t.Parallel()

	store := storex.NewMemoryStore()
	seedClient(store,
		contractx.ClientProfile{ID: "c1", Name: "Sarah Chen"},
		contractx.Account{ID: "a1", Type: "checking", Balance: 50000},
		contractx.Account{ID: "a2", Type: "TFSA", Balance: 42000, ContributionRoom: 0},
	)
	s := newTestScanner(store, time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC))

	alerts, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("alerts = %v, want none without contribution room", alertTypes(alerts))
	}
}

func TestPendingAlertSuppressesRule(t *testing.T) {
	t.Parallel()

	store := storex.NewMemoryStore()
	seedClient(store,
		contractx.ClientProfile{ID: "c1", Name: "Sarah Chen"},
		contractx.Account{ID: "a1", Type: "checking", Balance: 23500},
		contractx.Account{ID: "a2", Type: "TFSA", ContributionRoom: 7000},
	)
	if err := store.CreateAlert(context.Background(), contractx.Alert{
		ID: "al1", ClientID: "c1", Type: alertIdleCash,
		Status: string(contractx.AlertPending), CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed alert: %v", err)
	}
	s := newTestScanner(store, time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC))

	alerts, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("alerts = %v, want none while one is pending", alertTypes(alerts))
	}
}

func TestRRSPDeadlineOnlyInSeason(t *testing.T) {
	t.Parallel()

	newStore := func() *storex.MemoryStore {
		store := storex.NewMemoryStore()
		seedClient(store,
			contractx.ClientProfile{ID: "c1", Name: "Sarah Chen"},
			contractx.Account{ID: "a1", Type: "RRSP", Balance: 28000, ContributionRoom: 18500},
		)
		return store
	}

	february := newTestScanner(newStore(), time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC))
	alerts, err := february.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Type != alertRRSPDeadline {
		t.Fatalf("february alerts = %v, want one rrsp_deadline", alertTypes(alerts))
	}
	if !strings.Contains(alerts[0].Description, "$18,500") {
		t.Fatalf("description = %q", alerts[0].Description)
	}

	july := newTestScanner(newStore(), time.Date(2026, time.July, 15, 9, 0, 0, 0, time.UTC))
	alerts, err = july.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("july alerts = %v, want none out of season", alertTypes(alerts))
	}
}

func TestCESGRule(t *testing.T) {
	t.Parallel()

	store := storex.NewMemoryStore()
	seedClient(store,
		contractx.ClientProfile{ID: "c1", Name: "Michael Torres", Dependents: 2},
		contractx.Account{ID: "a1", Type: "RESP", Balance: 3000},
	)
	s := newTestScanner(store, time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC))

	alerts, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Type != alertCESG {
		t.Fatalf("alerts = %v, want one cesg_optimization", alertTypes(alerts))
	}
	if !strings.Contains(alerts[0].Description, "$1,000") || !strings.Contains(alerts[0].Description, "$5,000") {
		t.Fatalf("description = %q, want grant and contribution amounts", alerts[0].Description)
	}
	if !strings.Contains(alerts[0].Title, "2 children") {
		t.Fatalf("title = %q", alerts[0].Title)
	}
}

func TestSeniorRules(t *testing.T) {
	t.Parallel()

	store := storex.NewMemoryStore()
	seedClient(store,
		contractx.ClientProfile{ID: "c1", Name: "Linda Park", DateOfBirth: "1954-02-10", EmploymentIncome: 88000},
		contractx.Account{ID: "a1", Type: "RRIF", Balance: 340000},
	)
	s := newTestScanner(store, time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC))

	alerts, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	types := alertTypes(alerts)
	if len(alerts) != 2 || types[0] != alertOASClawback || types[1] != alertRRIFMinimum {
		t.Fatalf("alerts = %v, want oas_clawback then rrif_minimum", types)
	}

	// Age 72: RRIF minimum is 5% of $340,000.
	if !strings.Contains(alerts[1].Description, "$17,000") {
		t.Fatalf("rrif description = %q", alerts[1].Description)
	}
	if !strings.Contains(alerts[0].Description, "$105,000") {
		t.Fatalf("oas description = %q", alerts[0].Description)
	}
}

func TestScanPersistsAndNotifies(t *testing.T) {
	t.Parallel()

	store := storex.NewMemoryStore()
	seedClient(store,
		contractx.ClientProfile{ID: "c1", Name: "Sarah Chen"},
		contractx.Account{ID: "a1", Type: "checking", Balance: 23500},
		contractx.Account{ID: "a2", Type: "FHSA", ContributionRoom: 8000},
	)
	notifier := &recordingNotifier{}
	s := New(store, notifier)
	s.now = func() time.Time { return time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC) }

	created, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %v", alertTypes(created))
	}

	pending, err := store.Alerts(context.Background(), string(contractx.AlertPending))
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(pending) != 1 || pending[0].Type != alertIdleCash {
		t.Fatalf("pending = %v", alertTypes(pending))
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.messages) != 1 || notifier.messages[0].Type != alertIdleCash {
		t.Fatalf("notified = %v", alertTypes(notifier.messages))
	}
}

func TestRRIFMinimumPctThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		age  int
		want float64
	}{
		{64, 0.04},
		{65, 0.04},
		{66, 0.0417},
		{72, 0.05},
		{78, 0.0582},
		{85, 0.0682},
	}
	for _, tc := range cases {
		if got := rrifMinimumPct(tc.age); got != tc.want {
			t.Errorf("rrifMinimumPct(%d) = %v, want %v", tc.age, got, tc.want)
		}
	}
}
