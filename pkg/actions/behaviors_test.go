package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowaylab/reverie/pkg/generation"
	"github.com/hollowaylab/reverie/pkg/store"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (g *fakeGenerator) Complete(context.Context, generation.Request) (string, error) {
	g.calls++
	return g.reply, g.err
}

func (g *fakeGenerator) Provider() string { return "fake" }

// fakeParticipants keys state by room+user.
type fakeParticipants struct {
	states map[string]store.UserState
}

func newFakeParticipants() *fakeParticipants {
	return &fakeParticipants{states: make(map[string]store.UserState)}
}

func (f *fakeParticipants) ParticipantState(_ context.Context, roomID, userID string) (store.UserState, error) {
	return f.states[roomID+"/"+userID], nil
}

func (f *fakeParticipants) SetParticipantState(_ context.Context, roomID, userID string, s store.UserState) error {
	f.states[roomID+"/"+userID] = s
	return nil
}

type fakeApprovals struct {
	taskID   string
	err      error
	roomID   string
	rendered string
	raw      string
}

func (f *fakeApprovals) Enqueue(_ context.Context, roomID, rendered, raw string) (string, error) {
	f.roomID = roomID
	f.rendered = rendered
	f.raw = raw
	return f.taskID, f.err
}

func userMsg(text string) *store.Memory {
	return &store.Memory{ID: "m1", UserID: "user-1", Content: store.Content{Text: text}}
}

func TestContinueBehavior_Eligibility(t *testing.T) {
	b := NewContinueBehavior(&fakeGenerator{reply: "and then"}, "gpt-4o")
	st := newState()

	ok, err := b.Eligible(context.Background(), userMsg("keep going"), st)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Eligible(context.Background(), userMsg("   "), st)
	require.NoError(t, err)
	assert.False(t, ok)

	// The agent's own messages never trigger a continuation.
	own := &store.Memory{ID: "m2", UserID: st.AgentID, Content: store.Content{Text: "my last message"}}
	ok, err = b.Eligible(context.Background(), own, st)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContinueBehavior_EmitsGeneratedReply(t *testing.T) {
	gen := &fakeGenerator{reply: "and another thing"}
	b := NewContinueBehavior(gen, "gpt-4o")

	var emitted []string
	err := b.Run(context.Background(), userMsg("go on"), newState(), func(_ context.Context, text string) error {
		emitted = append(emitted, text)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"and another thing"}, emitted)
	assert.Equal(t, 1, gen.calls)
}

func TestContinueBehavior_EmptyReplyIsError(t *testing.T) {
	b := NewContinueBehavior(&fakeGenerator{reply: "  "}, "gpt-4o")

	err := b.Run(context.Background(), userMsg("go on"), newState(), func(context.Context, string) error {
		t.Fatal("emit should not be called")
		return nil
	})
	require.Error(t, err)
}

func TestParticipantBehaviors_FollowAndMuteAreExclusive(t *testing.T) {
	ps := newFakeParticipants()
	follow := NewFollowRoomBehavior(ps)
	mute := NewMuteRoomBehavior(ps)
	st := newState()
	emit := func(context.Context, string) error { return nil }

	require.NoError(t, follow.Run(context.Background(), userMsg("please follow this room"), st, emit))
	got, err := ps.ParticipantState(context.Background(), st.RoomID, st.AgentID)
	require.NoError(t, err)
	assert.Equal(t, store.StateFollowed, got)

	// Muting replaces FOLLOWED; the two never coexist.
	require.NoError(t, mute.Run(context.Background(), userMsg("mute please"), st, emit))
	got, err = ps.ParticipantState(context.Background(), st.RoomID, st.AgentID)
	require.NoError(t, err)
	assert.Equal(t, store.StateMuted, got)
}

func TestParticipantBehaviors_Eligibility(t *testing.T) {
	ps := newFakeParticipants()
	st := newState()

	follow := NewFollowRoomBehavior(ps)
	unfollow := NewUnfollowRoomBehavior(ps)
	unmute := NewUnmuteRoomBehavior(ps)

	// No keyword, no match.
	ok, err := follow.Eligible(context.Background(), userMsg("hello there"), st)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unfollow requires a FOLLOWED state.
	ok, err = unfollow.Eligible(context.Background(), userMsg("unfollow this room"), st)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ps.SetParticipantState(context.Background(), st.RoomID, st.AgentID, store.StateFollowed))

	ok, err = unfollow.Eligible(context.Background(), userMsg("unfollow this room"), st)
	require.NoError(t, err)
	assert.True(t, ok)

	// Already FOLLOWED: following again is a no-op, not eligible.
	ok, err = follow.Eligible(context.Background(), userMsg("follow this room"), st)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unmute only applies while MUTED.
	ok, err = unmute.Eligible(context.Background(), userMsg("unmute yourself"), st)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnfollowClearsState(t *testing.T) {
	ps := newFakeParticipants()
	st := newState()
	require.NoError(t, ps.SetParticipantState(context.Background(), st.RoomID, st.AgentID, store.StateFollowed))

	unfollow := NewUnfollowRoomBehavior(ps)
	require.NoError(t, unfollow.Run(context.Background(), userMsg("unfollow"), st, func(context.Context, string) error { return nil }))

	got, err := ps.ParticipantState(context.Background(), st.RoomID, st.AgentID)
	require.NoError(t, err)
	assert.Equal(t, store.UserState(""), got)
}

func TestPublishBehavior_EnqueuesForApproval(t *testing.T) {
	gen := &fakeGenerator{reply: "A post about the weather."}
	approvals := &fakeApprovals{taskID: "task-42"}
	b := NewPublishBehavior(gen, "gpt-4o", approvals)
	st := newState()

	ok, err := b.Eligible(context.Background(), userMsg("publish something about the weather"), st)
	require.NoError(t, err)
	require.True(t, ok)

	var emitted []string
	err = b.Run(context.Background(), userMsg("publish something about the weather"), st, func(_ context.Context, text string) error {
		emitted = append(emitted, text)
		return nil
	})
	require.NoError(t, err)

	// Nothing is published directly; the draft sits in the approval queue.
	assert.Equal(t, st.RoomID, approvals.roomID)
	assert.Equal(t, "A post about the weather.", approvals.raw)
	assert.Contains(t, approvals.rendered, "A post about the weather.")
	require.Len(t, emitted, 1)
	assert.Contains(t, emitted[0], "task-42")
}

func TestPublishBehavior_SubmissionFailureIsDistinct(t *testing.T) {
	gen := &fakeGenerator{reply: "draft"}
	approvals := &fakeApprovals{err: assert.AnError}
	b := NewPublishBehavior(gen, "gpt-4o", approvals)

	err := b.Run(context.Background(), userMsg("publish this"), newState(), func(context.Context, string) error {
		t.Fatal("emit should not be called")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to submit post for approval")
}

func TestIgnoreBehavior_MatchesEmptyMessages(t *testing.T) {
	b := NewIgnoreBehavior()
	st := newState()

	for _, text := range []string{"", "   ", "...", "?!"} {
		ok, err := b.Eligible(context.Background(), userMsg(text), st)
		require.NoError(t, err)
		assert.True(t, ok, "expected ignore to match %q", text)
	}

	ok, err := b.Eligible(context.Background(), userMsg("hello?"), st)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoneBehavior_AlwaysEligible(t *testing.T) {
	b := NewNoneBehavior()
	ok, err := b.Eligible(context.Background(), userMsg("anything"), newState())
	require.NoError(t, err)
	assert.True(t, ok)
}
