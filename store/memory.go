package store

import (
	"context"
	"sort"
	"sync"
	"time"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	clients   map[string]contractx.ClientProfile
	accounts  map[string][]contractx.Account
	documents map[string][]contractx.Document
	messages  map[string][]contractx.ChatMessage
	knowledge map[string][]contractx.KnowledgeEntry
	tasks     map[string]contractx.ProviderTask
	taskOrder []string
	alerts    map[string]contractx.Alert
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:   make(map[string]contractx.ClientProfile),
		accounts:  make(map[string][]contractx.Account),
		documents: make(map[string][]contractx.Document),
		messages:  make(map[string][]contractx.ChatMessage),
		knowledge: make(map[string][]contractx.KnowledgeEntry),
		tasks:     make(map[string]contractx.ProviderTask),
		alerts:    make(map[string]contractx.Alert),
	}
}

func (s *MemoryStore) PutClient(profile contractx.ClientProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[profile.ID] = profile
}

func (s *MemoryStore) PutAccount(account contractx.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ClientID] = append(s.accounts[account.ClientID], account)
}

func (s *MemoryStore) PutDocument(doc contractx.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ClientID] = append(s.documents[doc.ClientID], doc)
}

func (s *MemoryStore) Client(_ context.Context, clientID string) (contractx.ClientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.clients[clientID]
	if !ok {
		return contractx.ClientProfile{}, ErrNotFound
	}
	return profile, nil
}

func (s *MemoryStore) Clients(_ context.Context) ([]contractx.ClientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contractx.ClientProfile, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Accounts(_ context.Context, clientID string) ([]contractx.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]contractx.Account(nil), s.accounts[clientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *MemoryStore) Documents(_ context.Context, clientID string) ([]contractx.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]contractx.Document(nil), s.documents[clientID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].TaxYear > out[j].TaxYear })
	return out, nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, clientID string, limit int) ([]contractx.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := append([]contractx.ChatMessage(nil), s.messages[clientID]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (s *MemoryStore) Messages(_ context.Context, clientID string) ([]contractx.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := append([]contractx.ChatMessage(nil), s.messages[clientID]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg contractx.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ClientID] = append(s.messages[msg.ClientID], msg)
	return nil
}

func (s *MemoryStore) Knowledge(_ context.Context, clientID string) ([]contractx.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contractx.KnowledgeEntry(nil), s.knowledge[clientID]...), nil
}

func (s *MemoryStore) AddKnowledge(_ context.Context, entry contractx.KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledge[entry.ClientID] = append(s.knowledge[entry.ClientID], entry)
	return nil
}

func (s *MemoryStore) DeleteKnowledge(_ context.Context, entryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for clientID, entries := range s.knowledge {
		for i, entry := range entries {
			if entry.ID == entryID {
				s.knowledge[clientID] = append(entries[:i:i], entries[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, task contractx.ProviderTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	s.taskOrder = append(s.taskOrder, task.ID)
	return nil
}

func (s *MemoryStore) FinishTask(_ context.Context, taskID string, status contractx.TaskStatus, output []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	task.Status = status
	task.OutputSnapshot = output
	task.CompletedAt = at
	s.tasks[taskID] = task
	return nil
}

func (s *MemoryStore) Tasks(_ context.Context, filter TaskFilter) ([]contractx.ProviderTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	out := make([]contractx.ProviderTask, 0, limit)
	for i := len(s.taskOrder) - 1; i >= 0 && len(out) < limit; i-- {
		task := s.tasks[s.taskOrder[i]]
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.ClientID != "" && task.ClientID != filter.ClientID {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (s *MemoryStore) SetTaskReview(_ context.Context, taskID, action, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return ErrNotFound
	}
	task.AdvisorAction = action
	task.AdvisorNote = note
	s.tasks[taskID] = task
	return nil
}

func (s *MemoryStore) Alerts(_ context.Context, status string) ([]contractx.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contractx.Alert, 0)
	for _, alert := range s.alerts {
		if alert.Status == status {
			out = append(out, alert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) PendingAlertTypes(_ context.Context, clientID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for _, alert := range s.alerts {
		if alert.ClientID == clientID && alert.Status == string(contractx.AlertPending) {
			out[alert.Type] = true
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateAlert(_ context.Context, alert contractx.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
	return nil
}

func (s *MemoryStore) SetAlertStatus(_ context.Context, alertID, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[alertID]
	if !ok {
		return false, nil
	}
	alert.Status = status
	s.alerts[alertID] = alert
	return true, nil
}
