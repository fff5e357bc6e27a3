package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
	storex "github.com/wshadow/advisor-engine/store"
)

const advisorSource = "advisor"

// Mutator applies knowledge base add and remove plans against the record
// store. Removal matching is two-tier: the reasoning matcher first, then a
// deterministic token overlap fallback when the matcher fails. A successful
// zero-match verdict from the matcher stands.
type Mutator struct {
	store   storex.Store
	matcher contractx.EntryMatcher
}

func NewMutator(store storex.Store, matcher contractx.EntryMatcher) *Mutator {
	return &Mutator{store: store, matcher: matcher}
}

// ApplyAdd persists the plan's entries in order and returns the created
// records. Blank entries and entries over the length ceiling are skipped
// without error.
func (m *Mutator) ApplyAdd(ctx context.Context, clientID string, entries []string) ([]contractx.KnowledgeEntry, error) {
	created := make([]contractx.KnowledgeEntry, 0, len(entries))
	for _, raw := range entries {
		content := strings.TrimSpace(raw)
		if content == "" || len(content) > contractx.MaxKnowledgeEntryLen {
			continue
		}

		entry := contractx.KnowledgeEntry{
			ID:        uuid.NewString(),
			ClientID:  clientID,
			Content:   content,
			Source:    advisorSource,
			CreatedAt: time.Now().UTC(),
		}
		if err := m.store.AddKnowledge(ctx, entry); err != nil {
			return created, fmt.Errorf("add knowledge entry: %w", err)
		}
		created = append(created, entry)
	}
	return created, nil
}

// ApplyRemove resolves keyword phrases to entry ids and deletes them. Zero
// matches is a normal outcome, not an error.
func (m *Mutator) ApplyRemove(ctx context.Context, clientID string, keywords []string) ([]string, error) {
	entries, err := m.store.Knowledge(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load knowledge for removal: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids, err := m.matcher.Match(ctx, entries, keywords)
	if err != nil {
		log.Warn().Err(err).Str("client_id", clientID).Msg("entry matcher failed, using token fallback")
		ids = fallbackMatch(entries, keywords)
	}

	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		ok, err := m.store.DeleteKnowledge(ctx, id)
		if err != nil {
			return removed, fmt.Errorf("delete knowledge entry: %w", err)
		}
		if ok {
			removed = append(removed, id)
		}
	}
	return removed, nil
}

// fallbackMatch selects every entry whose content contains any keyword token
// longer than two characters. One token match settles an entry; checking
// stops there and moves to the next entry.
func fallbackMatch(entries []contractx.KnowledgeEntry, keywords []string) []string {
	var ids []string
	for _, entry := range entries {
		content := strings.ToLower(entry.Content)
		matched := false
		for _, phrase := range keywords {
			for _, token := range strings.Fields(strings.ToLower(phrase)) {
				if len(token) <= 2 {
					continue
				}
				if strings.Contains(content, token) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if matched {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}
