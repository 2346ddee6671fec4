package state

import (
	"time"

	"github.com/hollowaylab/reverie/pkg/store"
)

// Actor is one directory entry for a conversation participant.
type Actor struct {
	ID       string
	Name     string
	Username string
}

// State is the composed snapshot of a conversation passed to behaviors
// and evaluators.
type State struct {
	RoomID    string
	AgentID   string
	AgentName string

	Actors     []Actor
	ActorsText string

	// RecentMessages is most-recent-first, capped at the configured
	// conversation length.
	RecentMessages []store.Memory
	RecentText     string

	Goals     []store.Goal
	GoalsText string

	Knowledge   string
	Attachments string

	MessageCount int64
	ComposedAt   time.Time
}

// LastAgentMessage returns the most recent agent-authored message in the
// window, or nil.
func (s *State) LastAgentMessage() *store.Memory {
	for i := range s.RecentMessages {
		if s.RecentMessages[i].UserID == s.AgentID {
			return &s.RecentMessages[i]
		}
	}
	return nil
}

// ConsecutiveAgentActions counts how many of the latest agent-authored
// messages carry the given action tag, stopping at the first message that
// breaks the run (either a different author's reply boundary is ignored;
// the run is over agent messages only).
func (s *State) ConsecutiveAgentActions(action string) int {
	count := 0
	for i := range s.RecentMessages {
		m := &s.RecentMessages[i]
		if m.UserID != s.AgentID {
			continue
		}
		if m.Content.Action != action {
			break
		}
		count++
	}
	return count
}
