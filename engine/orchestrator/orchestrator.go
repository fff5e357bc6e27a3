package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wshadow/advisor-engine/engine/aggregate"
	"github.com/wshadow/advisor-engine/engine/assemble"
	"github.com/wshadow/advisor-engine/engine/classifier"
	contractx "github.com/wshadow/advisor-engine/engine/contract"
	"github.com/wshadow/advisor-engine/engine/dispatch"
	"github.com/wshadow/advisor-engine/engine/knowledge"
	storex "github.com/wshadow/advisor-engine/store"
)

// GraphInput is one inbound request plus the event sink for its channel.
type GraphInput struct {
	Envelope contractx.RequestEnvelope
	Sink     contractx.EventSink
}

// GraphOutput is the terminal payload of one pipeline run.
type GraphOutput struct {
	Content   string
	Composite *contractx.CompositeResult
}

type graphState struct {
	Envelope contractx.RequestEnvelope
	Sink     contractx.EventSink
	TaskID   string
	Bundle   contractx.ContextBundle
	Plan     contractx.ActionPlan
}

// Engine runs the full request pipeline: assemble, classify, then one of the
// four plan paths. Every failure resolves to a well-formed event; nothing in
// the pipeline is fatal to the process.
type Engine struct {
	store       storex.Store
	assembler   *assemble.Assembler
	classifier  *classifier.Classifier
	mutator     *knowledge.Mutator
	scheduler   *dispatch.Scheduler
	aggregator  *aggregate.Aggregator
	synthesizer contractx.Synthesizer

	graphRunner compose.Runnable[GraphInput, GraphOutput]

	now func() time.Time
}

func New(
	store storex.Store,
	reasoners contractx.Reasoners,
	providers contractx.ProviderRegistry,
) (*Engine, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if reasoners == nil {
		return nil, errors.New("reasoners registry is required")
	}
	if providers == nil {
		return nil, errors.New("provider registry is required")
	}

	e := &Engine{
		store:       store,
		assembler:   assemble.New(store),
		classifier:  classifier.New(reasoners.Router()),
		mutator:     knowledge.NewMutator(store, reasoners.Matcher()),
		scheduler:   dispatch.NewScheduler(providers, store),
		aggregator:  aggregate.NewAggregator(reasoners.Synthesizer()),
		synthesizer: reasoners.Synthesizer(),
		now:         time.Now,
	}

	graphRunner, err := e.compileHandleRequestGraph(context.Background())
	if err != nil {
		return nil, err
	}
	e.graphRunner = graphRunner

	return e, nil
}

// HandleRequest runs the pipeline for one envelope. Validation and
// missing-client failures are reported to the sink as error events; the
// returned error is for the caller's logging only.
func (e *Engine) HandleRequest(ctx context.Context, envelope contractx.RequestEnvelope, sink contractx.EventSink) error {
	_, err := e.graphRunner.Invoke(ctx, GraphInput{Envelope: envelope, Sink: sink})
	if err != nil {
		sink.Emit(contractx.ErrorEvent(userFacingMessage(err)))
		log.Warn().Err(err).Str("client_id", envelope.ClientID).Msg("request pipeline failed")
		return err
	}
	return nil
}

func userFacingMessage(err error) string {
	switch {
	case errors.Is(err, contractx.ErrClientNotFound):
		return "Client not found"
	case errors.Is(err, contractx.ErrValidation):
		return "Missing client_id or text"
	default:
		return "Something went wrong processing that request"
	}
}

func newTaskID(envelope contractx.RequestEnvelope) string {
	if envelope.CorrelationID != "" {
		return envelope.CorrelationID
	}
	return uuid.NewString()
}
