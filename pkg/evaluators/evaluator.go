// Package evaluators runs post-turn analysis: fact extraction, goal
// reconciliation, and retention cleanup. Evaluators are independently
// gated and their failures never block the turn.
package evaluators

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// Evaluator is one post-turn analysis step.
type Evaluator interface {
	Name() string
	// Validate gates the evaluator for this turn. Declining is not an
	// error.
	Validate(ctx context.Context, msg *store.Memory, st *state.State) (bool, error)
	Run(ctx context.Context, msg *store.Memory, st *state.State) error
}

// Pipeline runs every registered evaluator after a turn. Each evaluator
// is gated by its own Validate; a failing evaluator is logged and the
// rest still run.
type Pipeline struct {
	evaluators []Evaluator
	logger     zerolog.Logger
	onOutcome  func(name string, err error)
}

// NewPipeline constructs an evaluator pipeline.
func NewPipeline(logger zerolog.Logger, evaluators ...Evaluator) *Pipeline {
	return &Pipeline{evaluators: evaluators, logger: logger}
}

// OnOutcome registers a hook invoked after each evaluator run (metrics).
func (p *Pipeline) OnOutcome(fn func(name string, err error)) {
	p.onOutcome = fn
}

// Run executes the pipeline for one turn.
func (p *Pipeline) Run(ctx context.Context, msg *store.Memory, st *state.State) {
	for _, ev := range p.evaluators {
		logger := p.logger.With().
			Str("evaluator", ev.Name()).
			Str("room_id", st.RoomID).
			Logger()

		ok, err := ev.Validate(ctx, msg, st)
		if err != nil {
			logger.Debug().Err(err).Msg("Evaluator validation failed")
			continue
		}
		if !ok {
			continue
		}

		err = ev.Run(ctx, msg, st)
		if err != nil {
			logger.Error().Err(err).Msg("Evaluator failed")
		} else {
			logger.Debug().Msg("Evaluator ran")
		}
		if p.onOutcome != nil {
			p.onOutcome(ev.Name(), err)
		}
	}
}
