package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
	storex "github.com/wshadow/advisor-engine/store"
)

// Scheduler fans a request out to a set of providers, one goroutine each,
// and waits for all of them before returning. A provider failure is recorded
// and absent from the result map; it never cancels or delays siblings.
type Scheduler struct {
	registry contractx.ProviderRegistry
	store    storex.Store
}

func NewScheduler(registry contractx.ProviderRegistry, store storex.Store) *Scheduler {
	return &Scheduler{registry: registry, store: store}
}

// Dispatch launches the requested providers and blocks until every one has
// reached a terminal state. Announcement events follow registry order; the
// result map is keyed by provider name, never by completion order.
func (s *Scheduler) Dispatch(
	ctx context.Context,
	names []contractx.ProviderName,
	bundle contractx.ContextBundle,
	text string,
	sink contractx.EventSink,
) map[contractx.ProviderName]contractx.Result {
	requested := make(map[contractx.ProviderName]bool, len(names))
	for _, name := range names {
		requested[name] = true
	}

	type launch struct {
		provider contractx.Provider
		taskID   string
	}
	var launches []launch

	inputSnapshot, err := json.Marshal(map[string]string{"query": text})
	if err != nil {
		inputSnapshot = nil
	}

	for _, provider := range s.registry.Providers() {
		if !requested[provider.Name()] {
			continue
		}
		taskID := uuid.NewString()

		sink.Emit(contractx.ProviderDispatchedEvent(
			provider.Name(), bundle.Client.ID, taskID, provider.Description(bundle)))

		task := contractx.ProviderTask{
			ID:            taskID,
			ClientID:      bundle.Client.ID,
			Provider:      provider.Name(),
			Status:        contractx.TaskRunning,
			InputSnapshot: inputSnapshot,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.store.CreateTask(ctx, task); err != nil {
			log.Error().Err(err).Str("task_id", taskID).Str("provider", string(provider.Name())).
				Msg("create provider task")
		}

		launches = append(launches, launch{provider: provider, taskID: taskID})
	}

	results := make(map[contractx.ProviderName]contractx.Result, len(launches))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, l := range launches {
		wg.Add(1)
		go func(provider contractx.Provider, taskID string) {
			defer wg.Done()

			result, err := s.runOne(ctx, provider, taskID, bundle, text, sink)
			if err != nil {
				return
			}
			mu.Lock()
			results[provider.Name()] = result
			mu.Unlock()
		}(l.provider, l.taskID)
	}
	wg.Wait()

	return results
}

func (s *Scheduler) runOne(
	ctx context.Context,
	provider contractx.Provider,
	taskID string,
	bundle contractx.ContextBundle,
	text string,
	sink contractx.EventSink,
) (result contractx.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
			s.finish(ctx, provider.Name(), taskID, bundle.Client.ID, nil, err, sink)
		}
	}()

	sink.Emit(contractx.ProviderRunningEvent(provider.Name(), bundle.Client.ID, taskID))

	result, err = provider.Run(ctx, bundle, text)
	s.finish(ctx, provider.Name(), taskID, bundle.Client.ID, result, err, sink)
	return result, err
}

// finish records the task's single terminal transition and emits the
// completed event, with an error payload when the provider failed.
func (s *Scheduler) finish(
	ctx context.Context,
	name contractx.ProviderName,
	taskID string,
	clientID string,
	result contractx.Result,
	runErr error,
	sink contractx.EventSink,
) {
	now := time.Now().UTC()

	if runErr != nil {
		output, _ := json.Marshal(map[string]string{"error": runErr.Error()})
		if err := s.store.FinishTask(ctx, taskID, contractx.TaskFailed, output, now); err != nil {
			log.Error().Err(err).Str("task_id", taskID).Msg("persist failed task")
		}
		sink.Emit(contractx.ProviderCompletedEvent(name, clientID, taskID,
			map[string]string{"error": runErr.Error()}))
		return
	}

	output, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("serialize provider output")
		output = nil
	}
	if err := s.store.FinishTask(ctx, taskID, contractx.TaskCompleted, output, now); err != nil {
		log.Error().Err(err).Str("task_id", taskID).Msg("persist completed task")
	}
	sink.Emit(contractx.ProviderCompletedEvent(name, clientID, taskID, result))
}
