package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// ParticipantStore is the slice of the Memory Store the participant
// behaviors mutate.
type ParticipantStore interface {
	ParticipantState(ctx context.Context, roomID, userID string) (store.UserState, error)
	SetParticipantState(ctx context.Context, roomID, userID string, s store.UserState) error
}

// participantBehavior implements the four follow/mute behaviors; they
// differ only in keyword, precondition, and target state.
type participantBehavior struct {
	name        string
	aliases     []string
	description string
	keywords    []string
	requires    store.UserState // current state required, "" means any except target
	target      store.UserState
	reply       string
	store       ParticipantStore
}

// NewFollowRoomBehavior makes the agent follow the room, eagerly joining
// the conversation.
func NewFollowRoomBehavior(s ParticipantStore) Behavior {
	return &participantBehavior{
		name:        "FOLLOW_ROOM",
		aliases:     []string{"FOLLOW"},
		description: "Start following this room and participate without being addressed",
		keywords:    []string{"follow"},
		target:      store.StateFollowed,
		reply:       "Alright, I'll keep up with this room.",
		store:       s,
	}
}

// NewUnfollowRoomBehavior clears a FOLLOWED state.
func NewUnfollowRoomBehavior(s ParticipantStore) Behavior {
	return &participantBehavior{
		name:        "UNFOLLOW_ROOM",
		aliases:     []string{"UNFOLLOW"},
		description: "Stop following this room",
		keywords:    []string{"unfollow", "stop following"},
		requires:    store.StateFollowed,
		target:      "",
		reply:       "Okay, I'll stop following this room.",
		store:       s,
	}
}

// NewMuteRoomBehavior makes the agent mute the room, staying silent until
// unmuted.
func NewMuteRoomBehavior(s ParticipantStore) Behavior {
	return &participantBehavior{
		name:        "MUTE_ROOM",
		aliases:     []string{"MUTE"},
		description: "Mute this room and stop responding",
		keywords:    []string{"mute", "be quiet", "shut up"},
		target:      store.StateMuted,
		reply:       "Understood, muting this room.",
		store:       s,
	}
}

// NewUnmuteRoomBehavior clears a MUTED state.
func NewUnmuteRoomBehavior(s ParticipantStore) Behavior {
	return &participantBehavior{
		name:        "UNMUTE_ROOM",
		aliases:     []string{"UNMUTE"},
		description: "Unmute this room and resume responding",
		keywords:    []string{"unmute", "speak again"},
		requires:    store.StateMuted,
		target:      "",
		reply:       "I'm back.",
		store:       s,
	}
}

func (b *participantBehavior) Name() string        { return b.name }
func (b *participantBehavior) Aliases() []string   { return b.aliases }
func (b *participantBehavior) Description() string { return b.description }
func (b *participantBehavior) Continuation() bool  { return false }

// Eligible requires a matching keyword and a compatible current state:
// the behavior never re-applies a state the room is already in.
func (b *participantBehavior) Eligible(ctx context.Context, msg *store.Memory, st *state.State) (bool, error) {
	text := strings.ToLower(msg.Content.Text)
	matched := false
	for _, kw := range b.keywords {
		if strings.Contains(text, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	current, err := b.store.ParticipantState(ctx, st.RoomID, st.AgentID)
	if err != nil {
		return false, fmt.Errorf("failed to read participant state: %w", err)
	}
	if b.requires != "" && current != b.requires {
		return false, nil
	}
	if b.target != "" && current == b.target {
		return false, nil
	}
	return true, nil
}

// Run flips the agent's tri-state for the room. Setting FOLLOWED clears
// MUTED and vice versa.
func (b *participantBehavior) Run(ctx context.Context, _ *store.Memory, st *state.State, emit Callback) error {
	if err := b.store.SetParticipantState(ctx, st.RoomID, st.AgentID, b.target); err != nil {
		return fmt.Errorf("failed to set participant state: %w", err)
	}
	return emit(ctx, b.reply)
}
