package store

import (
	"context"
	"errors"
	"time"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

var (
	ErrNotFound = errors.New("record not found")
)

// TaskFilter narrows Tasks listings. Zero values mean "any".
type TaskFilter struct {
	Status   contractx.TaskStatus
	ClientID string
	Limit    int
}

// Store is the persistence contract for the record store. Every write is a
// single self-contained upsert scoped to one id, so concurrent units never
// contend on a row they do not own.
type Store interface {
	Client(ctx context.Context, clientID string) (contractx.ClientProfile, error)
	Clients(ctx context.Context) ([]contractx.ClientProfile, error)
	Accounts(ctx context.Context, clientID string) ([]contractx.Account, error)
	Documents(ctx context.Context, clientID string) ([]contractx.Document, error)

	// RecentMessages returns up to limit messages, most-recent-first.
	RecentMessages(ctx context.Context, clientID string, limit int) ([]contractx.ChatMessage, error)
	Messages(ctx context.Context, clientID string) ([]contractx.ChatMessage, error)
	AppendMessage(ctx context.Context, msg contractx.ChatMessage) error

	// Knowledge returns a client's entries in creation order.
	Knowledge(ctx context.Context, clientID string) ([]contractx.KnowledgeEntry, error)
	AddKnowledge(ctx context.Context, entry contractx.KnowledgeEntry) error
	// DeleteKnowledge reports whether the entry existed.
	DeleteKnowledge(ctx context.Context, entryID string) (bool, error)

	CreateTask(ctx context.Context, task contractx.ProviderTask) error
	// FinishTask moves a task to its single terminal status.
	FinishTask(ctx context.Context, taskID string, status contractx.TaskStatus, output []byte, at time.Time) error
	Tasks(ctx context.Context, filter TaskFilter) ([]contractx.ProviderTask, error)
	SetTaskReview(ctx context.Context, taskID, action, note string) error

	Alerts(ctx context.Context, status string) ([]contractx.Alert, error)
	PendingAlertTypes(ctx context.Context, clientID string) (map[string]bool, error)
	CreateAlert(ctx context.Context, alert contractx.Alert) error
	SetAlertStatus(ctx context.Context, alertID, status string) (bool, error)
}
