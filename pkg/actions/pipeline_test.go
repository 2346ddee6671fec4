package actions

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// fakeBehavior is a scriptable behavior for pipeline tests.
type fakeBehavior struct {
	name         string
	continuation bool
	eligible     bool
	eligibleErr  error
	runErr       error
	emitText     string
	runs         int
}

func (f *fakeBehavior) Name() string        { return f.name }
func (f *fakeBehavior) Aliases() []string   { return nil }
func (f *fakeBehavior) Description() string { return "test behavior" }
func (f *fakeBehavior) Continuation() bool  { return f.continuation }

func (f *fakeBehavior) Eligible(context.Context, *store.Memory, *state.State) (bool, error) {
	return f.eligible, f.eligibleErr
}

func (f *fakeBehavior) Run(ctx context.Context, _ *store.Memory, _ *state.State, emit Callback) error {
	f.runs++
	if f.runErr != nil {
		return f.runErr
	}
	if f.emitText != "" {
		return emit(ctx, f.emitText)
	}
	return nil
}

func agentMsg(action, text, inReplyTo string) store.Memory {
	return store.Memory{
		ID:      "agent-" + action + text,
		UserID:  "agent-1",
		Content: store.Content{Text: text, Action: action, InReplyTo: inReplyTo},
	}
}

func newState(recent ...store.Memory) *state.State {
	return &state.State{
		RoomID:         "room-1",
		AgentID:        "agent-1",
		AgentName:      "Reverie",
		RecentMessages: recent,
	}
}

func newPipeline(t *testing.T, maxCont int, behaviors ...Behavior) *Pipeline {
	t.Helper()
	reg := NewRegistry()
	for _, b := range behaviors {
		require.NoError(t, reg.Register(b))
	}
	return NewPipeline(reg, maxCont, zerolog.Nop())
}

func TestValidate_AntiLoopRejectsFourthContinuation(t *testing.T) {
	cont := &fakeBehavior{name: "CONTINUE", continuation: true, eligible: true}
	p := newPipeline(t, 3, cont)

	// Three consecutive continuation-tagged agent messages already exist.
	st := newState(
		agentMsg("CONTINUE", "three", ""),
		agentMsg("CONTINUE", "two", ""),
		agentMsg("CONTINUE", "one", ""),
	)
	msg := &store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "go on"}}

	assert.False(t, p.Validate(context.Background(), cont, msg, st))

	// With only two prior continuations it passes.
	st = newState(
		agentMsg("CONTINUE", "two", ""),
		agentMsg("CONTINUE", "one", ""),
	)
	assert.True(t, p.Validate(context.Background(), cont, msg, st))
}

func TestValidate_NaturalStopOnQuestionOrExclamation(t *testing.T) {
	cont := &fakeBehavior{name: "CONTINUE", continuation: true, eligible: true}
	p := newPipeline(t, 3, cont)

	// Inbound message ends with a question mark.
	msg := &store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "what do you think?"}}
	assert.False(t, p.Validate(context.Background(), cont, msg, newState()))

	// Last agent message ends with an exclamation mark.
	msg = &store.Memory{ID: "m2", UserID: "user-1", Content: store.Content{Text: "go on"}}
	st := newState(agentMsg("NONE", "That's wonderful!", ""))
	assert.False(t, p.Validate(context.Background(), cont, msg, st))

	// Non-continuation behaviors are unaffected by stop points.
	plain := &fakeBehavior{name: "PLAIN", eligible: true}
	p2 := newPipeline(t, 3, plain)
	msg = &store.Memory{ID: "m3", UserID: "user-1", Content: store.Content{Text: "really?"}}
	assert.True(t, p2.Validate(context.Background(), plain, msg, newState()))
}

func TestValidate_AntiDuplicateResponse(t *testing.T) {
	cont := &fakeBehavior{name: "CONTINUE", continuation: true, eligible: true}
	plain := &fakeBehavior{name: "PLAIN", eligible: true}
	p := newPipeline(t, 3, cont, plain)

	msg := &store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "tell me more"}}

	// Last agent message already replies to m1 with a non-continuation:
	// no second reply.
	st := newState(agentMsg("NONE", "done here", "m1"))
	assert.False(t, p.Validate(context.Background(), plain, msg, st))

	// Last agent reply to m1 was a continuation and the chain has room:
	// a follow-up is allowed.
	st = newState(agentMsg("CONTINUE", "and another thing", "m1"))
	assert.True(t, p.Validate(context.Background(), plain, msg, st))

	// Chain exhausted: no further replies even though the prior reply
	// was a continuation.
	st = newState(
		agentMsg("CONTINUE", "three", "m1"),
		agentMsg("CONTINUE", "two", ""),
		agentMsg("CONTINUE", "one", ""),
	)
	assert.False(t, p.Validate(context.Background(), plain, msg, st))
}

func TestExecute_FirstEligibleWins(t *testing.T) {
	first := &fakeBehavior{name: "FIRST", eligible: false}
	second := &fakeBehavior{name: "SECOND", eligible: true, emitText: "hello"}
	third := &fakeBehavior{name: "THIRD", eligible: true}
	p := newPipeline(t, 3, first, second, third)

	var emitted []string
	res := p.Execute(context.Background(),
		&store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "hi there"}},
		newState(),
		func(_ context.Context, text string) error {
			emitted = append(emitted, text)
			return nil
		})

	assert.Equal(t, StatusExecuted, res.Status)
	assert.Equal(t, "SECOND", res.Action)
	assert.Equal(t, []string{"hello"}, emitted)
	assert.Equal(t, 0, third.runs)
}

func TestExecute_NoEligibleBehaviorSkips(t *testing.T) {
	p := newPipeline(t, 3, &fakeBehavior{name: "A", eligible: false})

	res := p.Execute(context.Background(),
		&store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "hi"}},
		newState(),
		func(context.Context, string) error { return nil })

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Empty(t, res.Action)
}

func TestExecute_HandlerFailureIsContained(t *testing.T) {
	failing := &fakeBehavior{name: "BOOM", eligible: true, runErr: assert.AnError}
	p := newPipeline(t, 3, failing)

	var emitted []string
	res := p.Execute(context.Background(),
		&store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "hi"}},
		newState(),
		func(_ context.Context, text string) error {
			emitted = append(emitted, text)
			return nil
		})

	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, assert.AnError)
	// The user gets a best-effort error message.
	require.Len(t, emitted, 1)
	assert.Contains(t, emitted[0], "Sorry")
}

func TestExecute_PanicIsContained(t *testing.T) {
	panicking := &panicBehavior{}
	p := newPipeline(t, 3, panicking)

	res := p.Execute(context.Background(),
		&store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "hi"}},
		newState(),
		func(context.Context, string) error { return nil })

	assert.Equal(t, StatusFailed, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "panicked")
}

type panicBehavior struct{}

func (panicBehavior) Name() string        { return "PANIC" }
func (panicBehavior) Aliases() []string   { return nil }
func (panicBehavior) Description() string { return "" }
func (panicBehavior) Continuation() bool  { return false }
func (panicBehavior) Eligible(context.Context, *store.Memory, *state.State) (bool, error) {
	return true, nil
}
func (panicBehavior) Run(context.Context, *store.Memory, *state.State, Callback) error {
	panic("boom")
}

func TestExecute_ExactDuplicateSuppressed(t *testing.T) {
	echo := &fakeBehavior{name: "ECHO", eligible: true, emitText: "hi there"}
	p := newPipeline(t, 3, echo)

	var emitted []string
	res := p.Execute(context.Background(),
		&store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "hi there"}},
		newState(),
		func(_ context.Context, text string) error {
			emitted = append(emitted, text)
			return nil
		})

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Empty(t, emitted)
}

func TestExecute_DuplicateOfRecentAgentMessageSuppressed(t *testing.T) {
	echo := &fakeBehavior{name: "ECHO", eligible: true, emitText: "as I said"}
	p := newPipeline(t, 3, echo)

	st := newState(agentMsg("NONE", "as I said", ""))
	var emitted []string
	res := p.Execute(context.Background(),
		&store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "what"}},
		st,
		func(_ context.Context, text string) error {
			emitted = append(emitted, text)
			return nil
		})

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Empty(t, emitted)
}

func TestRegistry_DuplicateNamesRejected(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeBehavior{name: "A"}))
	require.Error(t, reg.Register(&fakeBehavior{name: "A"}))
}

func TestRegistry_AliasLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewContinueBehavior(nil, "")))

	b, ok := reg.Get("ELABORATE")
	require.True(t, ok)
	assert.Equal(t, "CONTINUE", b.Name())
	assert.True(t, reg.IsContinuation("ELABORATE"))
}

func TestPipeline_OutcomeHook(t *testing.T) {
	ok := &fakeBehavior{name: "OK", eligible: true, emitText: "fine"}
	p := newPipeline(t, 3, ok)

	var gotAction string
	var gotStatus Status
	p.OnOutcome(func(action string, status Status) {
		gotAction = action
		gotStatus = status
	})

	p.Execute(context.Background(),
		&store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: "hi"}},
		newState(),
		func(context.Context, string) error { return nil })

	assert.Equal(t, "OK", gotAction)
	assert.Equal(t, StatusExecuted, gotStatus)
}
