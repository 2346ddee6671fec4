package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// ErrDuplicateEmission is returned by the guarded callback when a
// behavior tries to emit text identical to the inbound message.
var ErrDuplicateEmission = errors.New("emission duplicates inbound text")

// apologeticReply is the degraded user-facing message when a behavior
// handler fails.
const apologeticReply = "Sorry, something went wrong on my end. Let me try again in a bit."

// Pipeline validates and executes behaviors against composed state.
type Pipeline struct {
	registry         *Registry
	maxContinuations int
	logger           zerolog.Logger
	onOutcome        func(action string, status Status)
}

// NewPipeline constructs a pipeline. maxContinuations bounds consecutive
// continuation-tagged responses per author per room (default 3).
func NewPipeline(registry *Registry, maxContinuations int, logger zerolog.Logger) *Pipeline {
	if maxContinuations <= 0 {
		maxContinuations = 3
	}
	return &Pipeline{
		registry:         registry,
		maxContinuations: maxContinuations,
		logger:           logger,
	}
}

// OnOutcome registers a hook invoked once per execution (metrics).
func (p *Pipeline) OnOutcome(fn func(action string, status Status)) {
	p.onOutcome = fn
}

// Validate gates a behavior's eligibility. The pipeline-level invariants
// run first and cannot be overridden by the behavior's own check.
func (p *Pipeline) Validate(ctx context.Context, b Behavior, msg *store.Memory, st *state.State) bool {
	if b.Continuation() {
		if p.continuationRun(st) >= p.maxContinuations {
			p.logger.Debug().
				Str("action", b.Name()).
				Str("room_id", st.RoomID).
				Msg("Continuation limit reached")
			return false
		}
		if hitsNaturalStop(msg, st) {
			p.logger.Debug().
				Str("action", b.Name()).
				Str("room_id", st.RoomID).
				Msg("Natural stop point")
			return false
		}
	}

	if !p.mayReplyAgain(msg, st) {
		p.logger.Debug().
			Str("action", b.Name()).
			Str("room_id", st.RoomID).
			Msg("Already replied to this message")
		return false
	}

	ok, err := b.Eligible(ctx, msg, st)
	if err != nil {
		// An eligibility error is a decline, not a fault.
		p.logger.Debug().
			Err(err).
			Str("action", b.Name()).
			Str("room_id", st.RoomID).
			Msg("Eligibility check failed")
		return false
	}
	return ok
}

// Execute selects the first eligible behavior in registration order and
// runs it. Handler failures never propagate: they are logged and
// converted into a best-effort user-facing error message.
func (p *Pipeline) Execute(ctx context.Context, msg *store.Memory, st *state.State, emit Callback) Result {
	guarded := p.guardEmission(msg, st, emit)

	for _, b := range p.registry.Ordered() {
		if !p.Validate(ctx, b, msg, st) {
			continue
		}

		logger := p.logger.With().
			Str("action", b.Name()).
			Str("room_id", st.RoomID).
			Str("user_id", msg.UserID).
			Logger()

		if err := p.run(ctx, b, msg, st, guarded); err != nil {
			if errors.Is(err, ErrDuplicateEmission) {
				logger.Debug().Msg("Suppressed duplicate emission")
				return p.outcome(Result{Status: StatusSkipped, Action: b.Name()})
			}

			logger.Error().Err(err).Msg("Behavior handler failed")
			if emitErr := emit(ctx, apologeticReply); emitErr != nil {
				logger.Warn().Err(emitErr).Msg("Failed to emit error reply")
			}
			return p.outcome(Result{Status: StatusFailed, Action: b.Name(), Err: err})
		}

		logger.Info().Msg("Behavior executed")
		return p.outcome(Result{Status: StatusExecuted, Action: b.Name()})
	}

	return p.outcome(Result{Status: StatusSkipped})
}

// run contains handler panics as ordinary failures.
func (p *Pipeline) run(ctx context.Context, b Behavior, msg *store.Memory, st *state.State, emit Callback) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("behavior %s panicked: %v", b.Name(), r)
		}
	}()
	return b.Run(ctx, msg, st, emit)
}

func (p *Pipeline) outcome(res Result) Result {
	if p.onOutcome != nil {
		p.onOutcome(res.Action, res.Status)
	}
	return res
}

// continuationRun counts the latest consecutive continuation-tagged agent
// messages in the room.
func (p *Pipeline) continuationRun(st *state.State) int {
	count := 0
	for i := range st.RecentMessages {
		m := &st.RecentMessages[i]
		if m.UserID != st.AgentID {
			continue
		}
		if !p.registry.IsContinuation(m.Content.Action) {
			break
		}
		count++
	}
	return count
}

// mayReplyAgain enforces the anti-duplicate-response invariant: when the
// most recent agent message is already a reply to the inbound message, a
// second reply is only permitted if that reply was itself a continuation
// and the chain limit has room.
func (p *Pipeline) mayReplyAgain(msg *store.Memory, st *state.State) bool {
	last := st.LastAgentMessage()
	if last == nil || last.Content.InReplyTo != msg.ID {
		return true
	}
	if !p.registry.IsContinuation(last.Content.Action) {
		return false
	}
	return p.continuationRun(st) < p.maxContinuations
}

// hitsNaturalStop treats a trailing question or exclamation mark on the
// latest agent message or the inbound message as a conversational stop
// signal for continuation-class behaviors.
func hitsNaturalStop(msg *store.Memory, st *state.State) bool {
	if endsWithStop(msg.Content.Text) {
		return true
	}
	if last := st.LastAgentMessage(); last != nil && endsWithStop(last.Content.Text) {
		return true
	}
	return false
}

func endsWithStop(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasSuffix(trimmed, "?") || strings.HasSuffix(trimmed, "!")
}

// guardEmission wraps the callback with exact-duplicate suppression: a
// behavior must not emit text identical to the inbound message's own text
// within the recent window.
func (p *Pipeline) guardEmission(msg *store.Memory, st *state.State, emit Callback) Callback {
	return func(ctx context.Context, text string) error {
		if strings.TrimSpace(text) == strings.TrimSpace(msg.Content.Text) {
			return ErrDuplicateEmission
		}
		for i := range st.RecentMessages {
			if st.RecentMessages[i].UserID == st.AgentID &&
				strings.TrimSpace(st.RecentMessages[i].Content.Text) == strings.TrimSpace(text) {
				return ErrDuplicateEmission
			}
		}
		return emit(ctx, text)
	}
}
