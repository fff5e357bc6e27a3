package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"10s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"8"`
}

// PostgresStore persists the record store in Postgres via bun.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
	)
	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &PostgresStore{db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// Init creates the schema if it does not exist yet.
func (s *PostgresStore) Init(ctx context.Context) error {
	models := []any{
		(*clientRow)(nil),
		(*accountRow)(nil),
		(*documentRow)(nil),
		(*chatMessageRow)(nil),
		(*knowledgeRow)(nil),
		(*taskRow)(nil),
		(*alertRow)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type clientRow struct {
	bun.BaseModel `bun:"table:clients"`

	ID               string    `bun:"id,pk"`
	Name             string    `bun:"name,notnull"`
	Email            string    `bun:"email"`
	Phone            string    `bun:"phone"`
	Province         string    `bun:"province"`
	DateOfBirth      string    `bun:"date_of_birth"`
	RiskProfile      string    `bun:"risk_profile"`
	Goals            []string  `bun:"goals,type:jsonb"`
	MaritalStatus    string    `bun:"marital_status"`
	Dependents       int       `bun:"dependents"`
	EmploymentIncome float64   `bun:"employment_income"`
	Employer         string    `bun:"employer"`
	AdvisorNotes     string    `bun:"advisor_notes"`
	OnboardedAt      time.Time `bun:"onboarded_at"`
}

type accountRow struct {
	bun.BaseModel `bun:"table:accounts"`

	ID               string    `bun:"id,pk"`
	ClientID         string    `bun:"client_id,notnull"`
	Type             string    `bun:"type,notnull"`
	Label            string    `bun:"label"`
	Balance          float64   `bun:"balance"`
	ContributionRoom float64   `bun:"contribution_room"`
	LastUpdated      time.Time `bun:"last_updated"`
}

type documentRow struct {
	bun.BaseModel `bun:"table:documents"`

	ID          string    `bun:"id,pk"`
	ClientID    string    `bun:"client_id,notnull"`
	Type        string    `bun:"type,notnull"`
	ContentText string    `bun:"content_text"`
	TaxYear     int       `bun:"tax_year"`
	UploadedAt  time.Time `bun:"uploaded_at"`
}

type chatMessageRow struct {
	bun.BaseModel `bun:"table:chat_history"`

	ID        string    `bun:"id,pk"`
	ClientID  string    `bun:"client_id,notnull"`
	Role      string    `bun:"role,notnull"`
	Content   string    `bun:"content"`
	CreatedAt time.Time `bun:"created_at"`
}

type knowledgeRow struct {
	bun.BaseModel `bun:"table:client_knowledge"`

	ID        string    `bun:"id,pk"`
	ClientID  string    `bun:"client_id,notnull"`
	Content   string    `bun:"content,notnull"`
	Source    string    `bun:"source"`
	CreatedAt time.Time `bun:"created_at"`
}

type taskRow struct {
	bun.BaseModel `bun:"table:provider_tasks"`

	ID             string    `bun:"id,pk"`
	ClientID       string    `bun:"client_id,notnull"`
	Provider       string    `bun:"provider,notnull"`
	Status         string    `bun:"status,notnull"`
	InputSnapshot  []byte    `bun:"input_snapshot,type:jsonb"`
	OutputSnapshot []byte    `bun:"output_snapshot,type:jsonb"`
	AdvisorAction  string    `bun:"advisor_action"`
	AdvisorNote    string    `bun:"advisor_note"`
	CreatedAt      time.Time `bun:"created_at"`
	CompletedAt    time.Time `bun:"completed_at,nullzero"`
}

type alertRow struct {
	bun.BaseModel `bun:"table:alerts"`

	ID            string                  `bun:"id,pk"`
	ClientID      string                  `bun:"client_id,notnull"`
	Type          string                  `bun:"alert_type,notnull"`
	Title         string                  `bun:"title"`
	Description   string                  `bun:"description"`
	DraftedAction *contractx.DraftMessage `bun:"drafted_action,type:jsonb"`
	Status        string                  `bun:"status,notnull"`
	CreatedAt     time.Time               `bun:"created_at"`
}

func (s *PostgresStore) Client(ctx context.Context, clientID string) (contractx.ClientProfile, error) {
	var row clientRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", clientID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return contractx.ClientProfile{}, ErrNotFound
		}
		return contractx.ClientProfile{}, fmt.Errorf("select client: %w", err)
	}
	return clientFromRow(row), nil
}

func (s *PostgresStore) Clients(ctx context.Context) ([]contractx.ClientProfile, error) {
	var rows []clientRow
	if err := s.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select clients: %w", err)
	}
	out := make([]contractx.ClientProfile, 0, len(rows))
	for _, row := range rows {
		out = append(out, clientFromRow(row))
	}
	return out, nil
}

func (s *PostgresStore) Accounts(ctx context.Context, clientID string) ([]contractx.Account, error) {
	var rows []accountRow
	err := s.db.NewSelect().Model(&rows).Where("client_id = ?", clientID).Order("type ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	out := make([]contractx.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, row2account(row))
	}
	return out, nil
}

func (s *PostgresStore) Documents(ctx context.Context, clientID string) ([]contractx.Document, error) {
	var rows []documentRow
	err := s.db.NewSelect().Model(&rows).Where("client_id = ?", clientID).Order("tax_year DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	out := make([]contractx.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.Document{
			ID: row.ID, ClientID: row.ClientID, Type: row.Type,
			ContentText: row.ContentText, TaxYear: row.TaxYear, UploadedAt: row.UploadedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, clientID string, limit int) ([]contractx.ChatMessage, error) {
	var rows []chatMessageRow
	err := s.db.NewSelect().Model(&rows).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select recent messages: %w", err)
	}
	return messagesFromRows(rows), nil
}

func (s *PostgresStore) Messages(ctx context.Context, clientID string) ([]contractx.ChatMessage, error) {
	var rows []chatMessageRow
	err := s.db.NewSelect().Model(&rows).
		Where("client_id = ?", clientID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	return messagesFromRows(rows), nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg contractx.ChatMessage) error {
	row := chatMessageRow{
		ID: msg.ID, ClientID: msg.ClientID, Role: msg.Role,
		Content: msg.Content, CreatedAt: msg.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) Knowledge(ctx context.Context, clientID string) ([]contractx.KnowledgeEntry, error) {
	var rows []knowledgeRow
	err := s.db.NewSelect().Model(&rows).
		Where("client_id = ?", clientID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select knowledge: %w", err)
	}
	out := make([]contractx.KnowledgeEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.KnowledgeEntry{
			ID: row.ID, ClientID: row.ClientID, Content: row.Content,
			Source: row.Source, CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) AddKnowledge(ctx context.Context, entry contractx.KnowledgeEntry) error {
	row := knowledgeRow{
		ID: entry.ID, ClientID: entry.ClientID, Content: entry.Content,
		Source: entry.Source, CreatedAt: entry.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert knowledge entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteKnowledge(ctx context.Context, entryID string) (bool, error) {
	res, err := s.db.NewDelete().Model((*knowledgeRow)(nil)).Where("id = ?", entryID).Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete knowledge entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, task contractx.ProviderTask) error {
	row := taskRow{
		ID:             task.ID,
		ClientID:       task.ClientID,
		Provider:       string(task.Provider),
		Status:         string(task.Status),
		InputSnapshot:  task.InputSnapshot,
		OutputSnapshot: task.OutputSnapshot,
		CreatedAt:      task.CreatedAt,
		CompletedAt:    task.CompletedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishTask(ctx context.Context, taskID string, status contractx.TaskStatus, output []byte, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*taskRow)(nil)).
		Set("status = ?", string(status)).
		Set("output_snapshot = ?", output).
		Set("completed_at = ?", at).
		Where("id = ?", taskID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	return nil
}

func (s *PostgresStore) Tasks(ctx context.Context, filter TaskFilter) ([]contractx.ProviderTask, error) {
	q := s.db.NewSelect().Model((*taskRow)(nil))
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.ClientID != "" {
		q = q.Where("client_id = ?", filter.ClientID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	var rows []taskRow
	if err := q.Order("created_at DESC").Limit(limit).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	out := make([]contractx.ProviderTask, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.ProviderTask{
			ID:             row.ID,
			ClientID:       row.ClientID,
			Provider:       contractx.ProviderName(row.Provider),
			Status:         contractx.TaskStatus(row.Status),
			InputSnapshot:  row.InputSnapshot,
			OutputSnapshot: row.OutputSnapshot,
			AdvisorAction:  row.AdvisorAction,
			AdvisorNote:    row.AdvisorNote,
			CreatedAt:      row.CreatedAt,
			CompletedAt:    row.CompletedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) SetTaskReview(ctx context.Context, taskID, action, note string) error {
	_, err := s.db.NewUpdate().Model((*taskRow)(nil)).
		Set("advisor_action = ?", action).
		Set("advisor_note = ?", note).
		Where("id = ?", taskID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set task review: %w", err)
	}
	return nil
}

func (s *PostgresStore) Alerts(ctx context.Context, status string) ([]contractx.Alert, error) {
	var rows []alertRow
	err := s.db.NewSelect().Model(&rows).
		Where("status = ?", status).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	out := make([]contractx.Alert, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.Alert{
			ID: row.ID, ClientID: row.ClientID, Type: row.Type,
			Title: row.Title, Description: row.Description,
			DraftedAction: row.DraftedAction, Status: row.Status, CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (s *PostgresStore) PendingAlertTypes(ctx context.Context, clientID string) (map[string]bool, error) {
	var types []string
	err := s.db.NewSelect().Model((*alertRow)(nil)).
		Column("alert_type").
		Where("client_id = ?", clientID).
		Where("status = ?", string(contractx.AlertPending)).
		Scan(ctx, &types)
	if err != nil {
		return nil, fmt.Errorf("select pending alert types: %w", err)
	}
	out := make(map[string]bool, len(types))
	for _, t := range types {
		out[t] = true
	}
	return out, nil
}

func (s *PostgresStore) CreateAlert(ctx context.Context, alert contractx.Alert) error {
	row := alertRow{
		ID: alert.ID, ClientID: alert.ClientID, Type: alert.Type,
		Title: alert.Title, Description: alert.Description,
		DraftedAction: alert.DraftedAction, Status: alert.Status, CreatedAt: alert.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetAlertStatus(ctx context.Context, alertID, status string) (bool, error) {
	res, err := s.db.NewUpdate().Model((*alertRow)(nil)).
		Set("status = ?", status).
		Where("id = ?", alertID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("set alert status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func clientFromRow(row clientRow) contractx.ClientProfile {
	return contractx.ClientProfile{
		ID:               row.ID,
		Name:             row.Name,
		Email:            row.Email,
		Phone:            row.Phone,
		Province:         row.Province,
		DateOfBirth:      row.DateOfBirth,
		RiskProfile:      row.RiskProfile,
		Goals:            row.Goals,
		MaritalStatus:    row.MaritalStatus,
		Dependents:       row.Dependents,
		EmploymentIncome: row.EmploymentIncome,
		Employer:         row.Employer,
		AdvisorNotes:     row.AdvisorNotes,
		OnboardedAt:      row.OnboardedAt,
	}
}

func row2account(row accountRow) contractx.Account {
	return contractx.Account{
		ID:               row.ID,
		ClientID:         row.ClientID,
		Type:             row.Type,
		Label:            row.Label,
		Balance:          row.Balance,
		ContributionRoom: row.ContributionRoom,
		LastUpdated:      row.LastUpdated,
	}
}

func messagesFromRows(rows []chatMessageRow) []contractx.ChatMessage {
	out := make([]contractx.ChatMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.ChatMessage{
			ID: row.ID, ClientID: row.ClientID, Role: row.Role,
			Content: row.Content, CreatedAt: row.CreatedAt,
		})
	}
	return out
}
