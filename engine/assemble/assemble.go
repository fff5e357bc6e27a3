// Package assemble builds the per-request context bundle: one immutable
// snapshot of everything the classifier and the providers are allowed to see.
package assemble

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/wshadow/advisor-engine/engine/contract"
	storex "github.com/wshadow/advisor-engine/store"
)

// chatWindow bounds the most-recent-first conversation slice in the bundle.
const chatWindow = 10

type Assembler struct {
	store storex.Store
}

func New(store storex.Store) *Assembler {
	return &Assembler{store: store}
}

// Load assembles the bundle for one request. The same bundle instance must
// serve both classification and dispatch; callers never re-fetch mid-cycle.
func (a *Assembler) Load(ctx context.Context, clientID string) (contractx.ContextBundle, error) {
	client, err := a.store.Client(ctx, clientID)
	if err != nil {
		if errors.Is(err, storex.ErrNotFound) {
			return contractx.ContextBundle{}, fmt.Errorf("%w: %s", contractx.ErrClientNotFound, clientID)
		}
		return contractx.ContextBundle{}, fmt.Errorf("load client: %w", err)
	}

	accounts, err := a.store.Accounts(ctx, clientID)
	if err != nil {
		return contractx.ContextBundle{}, fmt.Errorf("load accounts: %w", err)
	}
	documents, err := a.store.Documents(ctx, clientID)
	if err != nil {
		return contractx.ContextBundle{}, fmt.Errorf("load documents: %w", err)
	}
	recentChat, err := a.store.RecentMessages(ctx, clientID, chatWindow)
	if err != nil {
		return contractx.ContextBundle{}, fmt.Errorf("load recent chat: %w", err)
	}
	knowledge, err := a.store.Knowledge(ctx, clientID)
	if err != nil {
		return contractx.ContextBundle{}, fmt.Errorf("load knowledge: %w", err)
	}

	return contractx.ContextBundle{
		Client:     client,
		Accounts:   accounts,
		Documents:  documents,
		RecentChat: recentChat,
		Knowledge:  knowledge,
	}, nil
}
