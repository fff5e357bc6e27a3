// Package scanner runs the background sweep over the full book of business,
// proposing pending alerts with pre-drafted outreach where a rule fires.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
	storex "github.com/wshadow/advisor-engine/store"
)

const (
	idleCashThreshold    = 10000
	cesgPerChild         = 2500
	cesgGrantPerChild    = 500
	oasClawbackThreshold = 90997
)

const (
	alertIdleCash     = "idle_cash"
	alertRRSPDeadline = "rrsp_deadline"
	alertCESG         = "cesg_optimization"
	alertOASClawback  = "oas_clawback"
	alertRRIFMinimum  = "rrif_minimum"
)

var rrifMinPct = map[int]float64{
	65: 0.04, 66: 0.0417, 67: 0.0435, 70: 0.05, 75: 0.0582, 80: 0.0682,
}

type Config struct {
	Schedule string `split_words:"true" default:"@every 6h"`
	Enabled  bool   `split_words:"true" default:"true"`
}

// Notifier receives one message per created alert. A nil webhook client
// satisfies it as a no-op.
type Notifier interface {
	Publish(ctx context.Context, kind string, payload any) error
}

// Scanner evaluates every client against the rule set. Each rule proposes at
// most one pending alert of its type per client; an existing pending alert
// of the same type suppresses the rule.
type Scanner struct {
	store    storex.Store
	notifier Notifier
	now      func() time.Time
	cron     *cron.Cron
}

func New(store storex.Store, notifier Notifier) *Scanner {
	return &Scanner{store: store, notifier: notifier, now: time.Now}
}

// Start schedules recurring scans. Spec accepts the cron descriptor forms,
// e.g. "@every 6h".
func (s *Scanner) Start(spec string) error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		created, err := s.ScanOnce(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("scheduled alert scan")
			return
		}
		log.Info().Int("new_alerts", len(created)).Msg("alert scan completed")
	})
	if err != nil {
		return fmt.Errorf("schedule alert scan %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	return nil
}

func (s *Scanner) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// ScanOnce runs all rules over all clients and persists whatever fired.
func (s *Scanner) ScanOnce(ctx context.Context) ([]contractx.Alert, error) {
	clients, err := s.store.Clients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	var created []contractx.Alert
	for _, client := range clients {
		alerts, err := s.scanClient(ctx, client)
		if err != nil {
			log.Error().Err(err).Str("client_id", client.ID).Msg("scan client")
			continue
		}
		created = append(created, alerts...)
	}

	for _, alert := range created {
		if err := s.store.CreateAlert(ctx, alert); err != nil {
			log.Error().Err(err).Str("alert_id", alert.ID).Msg("persist alert")
			continue
		}
		if s.notifier != nil {
			if err := s.notifier.Publish(ctx, "alert.created", alert); err != nil {
				log.Warn().Err(err).Str("alert_id", alert.ID).Msg("publish alert notification")
			}
		}
	}
	return created, nil
}

func (s *Scanner) scanClient(ctx context.Context, client contractx.ClientProfile) ([]contractx.Alert, error) {
	accounts, err := s.store.Accounts(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	pending, err := s.store.PendingAlertTypes(ctx, client.ID)
	if err != nil {
		return nil, fmt.Errorf("load pending alert types: %w", err)
	}

	byType := make(map[string]contractx.Account, len(accounts))
	for _, acct := range accounts {
		byType[strings.ToUpper(acct.Type)] = acct
	}
	age := s.estimateAge(client.DateOfBirth)

	var out []contractx.Alert
	propose := func(alert contractx.Alert, ok bool) {
		if !ok || pending[alert.Type] {
			return
		}
		pending[alert.Type] = true
		out = append(out, alert)
	}

	propose(s.idleCashRule(client, accounts, byType))
	propose(s.rrspDeadlineRule(client, byType))
	propose(s.cesgRule(client, byType))
	propose(s.oasClawbackRule(client, byType, age))
	propose(s.rrifMinimumRule(client, byType, age))
	return out, nil
}

func (s *Scanner) idleCashRule(client contractx.ClientProfile, accounts []contractx.Account, byType map[string]contractx.Account) (contractx.Alert, bool) {
	for _, acct := range accounts {
		kind := strings.ToLower(acct.Type)
		if kind != "checking" && kind != "savings" {
			continue
		}
		if acct.Balance <= idleCashThreshold {
			continue
		}

		var roomNotes []string
		for _, t := range []string{"FHSA", "TFSA", "RRSP"} {
			if sheltered, ok := byType[t]; ok && sheltered.ContributionRoom > 0 {
				roomNotes = append(roomNotes, fmt.Sprintf("%s (%s room)", t, money(sheltered.ContributionRoom)))
			}
		}
		if len(roomNotes) == 0 {
			continue
		}

		label := acct.Label
		if label == "" {
			label = acct.Type
		}
		first := firstName(client.Name)
		draft := draftIdleCashEmail(first, client.Name, acct.Balance, roomNotes)
		return s.newAlert(client.ID, alertIdleCash,
			fmt.Sprintf("Idle cash in %s", label),
			fmt.Sprintf("%s has %s in their %s. Available tax-advantaged room: %s.",
				first, money(acct.Balance), label, strings.Join(roomNotes, ", ")),
			&draft), true
	}
	return contractx.Alert{}, false
}

func (s *Scanner) rrspDeadlineRule(client contractx.ClientProfile, byType map[string]contractx.Account) (contractx.Alert, bool) {
	month := s.now().Month()
	if month != time.January && month != time.February {
		return contractx.Alert{}, false
	}
	rrsp, ok := byType["RRSP"]
	if !ok || rrsp.ContributionRoom <= 0 {
		return contractx.Alert{}, false
	}

	first := firstName(client.Name)
	draft := draftRRSPDeadlineEmail(first, client.Name, rrsp.ContributionRoom)
	return s.newAlert(client.ID, alertRRSPDeadline,
		"RRSP deadline approaching",
		fmt.Sprintf("%s has %s in unused RRSP room. The contribution deadline for the current tax year is March 1.",
			first, money(rrsp.ContributionRoom)),
		&draft), true
}

func (s *Scanner) cesgRule(client contractx.ClientProfile, byType map[string]contractx.Account) (contractx.Alert, bool) {
	if client.Dependents <= 0 {
		return contractx.Alert{}, false
	}
	resp, ok := byType["RESP"]
	if !ok {
		return contractx.Alert{}, false
	}
	optimal := float64(cesgPerChild * client.Dependents)
	if resp.Balance >= optimal {
		return contractx.Alert{}, false
	}

	grant := float64(cesgGrantPerChild * client.Dependents)
	childWord := "child"
	if client.Dependents > 1 {
		childWord = fmt.Sprintf("%d children", client.Dependents)
	}
	first := firstName(client.Name)
	draft := draftCESGEmail(first, client.Name, optimal, grant)
	return s.newAlert(client.ID, alertCESG,
		fmt.Sprintf("RESP: maximize CESG for %s", childWord),
		fmt.Sprintf("To get the maximum %s in CESG grants, %s should contribute %s ($2,500/child) before December 31.",
			money(grant), first, money(optimal)),
		&draft), true
}

func (s *Scanner) oasClawbackRule(client contractx.ClientProfile, byType map[string]contractx.Account, age int) (contractx.Alert, bool) {
	if age < 65 {
		return contractx.Alert{}, false
	}
	income := client.EmploymentIncome
	if rrif, ok := byType["RRIF"]; ok {
		income += rrif.Balance * rrifMinimumPct(age)
	}
	if income <= oasClawbackThreshold {
		return contractx.Alert{}, false
	}

	first := firstName(client.Name)
	draft := draftOASEmail(first, client.Name, income)
	return s.newAlert(client.ID, alertOASClawback,
		"OAS clawback risk",
		fmt.Sprintf("%s's estimated income (%s) exceeds the OAS clawback threshold (%s). Consider income splitting or TFSA strategies to reduce the clawback.",
			first, money(income), money(oasClawbackThreshold)),
		&draft), true
}

func (s *Scanner) rrifMinimumRule(client contractx.ClientProfile, byType map[string]contractx.Account, age int) (contractx.Alert, bool) {
	if age < 65 {
		return contractx.Alert{}, false
	}
	rrif, ok := byType["RRIF"]
	if !ok {
		return contractx.Alert{}, false
	}

	minPct := rrifMinimumPct(age)
	minWithdrawal := rrif.Balance * minPct
	return s.newAlert(client.ID, alertRRIFMinimum,
		"RRIF minimum withdrawal due",
		fmt.Sprintf("%s's RRIF minimum withdrawal for this year: %s (%.2f%% of %s). Must be withdrawn by December 31.",
			firstName(client.Name), money(minWithdrawal), minPct*100, money(rrif.Balance)),
		nil), true
}

func (s *Scanner) newAlert(clientID, alertType, title, description string, draft *contractx.DraftMessage) contractx.Alert {
	return contractx.Alert{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		Type:          alertType,
		Title:         title,
		Description:   description,
		DraftedAction: draft,
		Status:        string(contractx.AlertPending),
		CreatedAt:     s.now().UTC(),
	}
}

func draftIdleCashEmail(first, full string, amount float64, roomNotes []string) contractx.DraftMessage {
	var lines strings.Builder
	for _, note := range roomNotes {
		lines.WriteString("  - " + note + "\n")
	}
	return contractx.DraftMessage{
		To:      full,
		Subject: "Quick thought on your savings",
		Tone:    "professional",
		Body: fmt.Sprintf("Hi %s,\n\n"+
			"I noticed you have about %s in your chequing account. "+
			"You still have room in some tax-advantaged accounts that could help your money grow faster:\n\n%s\n"+
			"Would you like to discuss moving some of those funds? It could make a meaningful difference come tax time.\n\n"+
			"Best,\nAlex", first, money(amount), lines.String()),
	}
}

func draftRRSPDeadlineEmail(first, full string, room float64) contractx.DraftMessage {
	return contractx.DraftMessage{
		To:      full,
		Subject: "RRSP deadline reminder - March 1",
		Tone:    "professional",
		Body: fmt.Sprintf("Hi %s,\n\n"+
			"Quick reminder: the RRSP contribution deadline for this tax year is March 1. "+
			"You have %s in available room.\n\n"+
			"Contributing before the deadline means you can claim the deduction on this year's taxes. "+
			"Want me to put together a plan?\n\n"+
			"Best,\nAlex", first, money(room)),
	}
}

func draftCESGEmail(first, full string, contribution, grant float64) contractx.DraftMessage {
	return contractx.DraftMessage{
		To:      full,
		Subject: "Free money for education savings",
		Tone:    "professional",
		Body: fmt.Sprintf("Hi %s,\n\n"+
			"I wanted to flag something before year-end: if you contribute %s to the RESP "+
			"($2,500 per child), the government matches 20%% through the CESG program. "+
			"That's %s in free grants.\n\n"+
			"This is one of the best guaranteed returns available. Would you like to set this up?\n\n"+
			"Best,\nAlex", first, money(contribution), money(grant)),
	}
}

func draftOASEmail(first, full string, income float64) contractx.DraftMessage {
	return contractx.DraftMessage{
		To:      full,
		Subject: "Strategy to protect your OAS benefits",
		Tone:    "professional",
		Body: fmt.Sprintf("Hi %s,\n\n"+
			"I've been reviewing your income situation and wanted to flag something: "+
			"your estimated income of %s puts you above the OAS clawback threshold ($90,997). "+
			"This means some of your OAS benefits may be reduced.\n\n"+
			"There are strategies we can explore, like pension income splitting with your spouse "+
			"or using your TFSA more strategically. Want to discuss?\n\n"+
			"Best,\nAlex", first, money(income)),
	}
}

func (s *Scanner) estimateAge(dob string) int {
	if dob == "" {
		return 0
	}
	birth, err := time.Parse("2006-01-02", dob)
	if err != nil {
		return 0
	}
	today := s.now()
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

func rrifMinimumPct(age int) float64 {
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

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}

func money(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := strconv.FormatInt(int64(v+0.5), 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
