package actions

import (
	"context"
	"strings"

	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// IgnoreBehavior drops messages with no usable content. It runs no side
// effects; its execution just ends the turn.
type IgnoreBehavior struct{}

// NewIgnoreBehavior constructs the ignore behavior.
func NewIgnoreBehavior() *IgnoreBehavior { return &IgnoreBehavior{} }

func (b *IgnoreBehavior) Name() string        { return "IGNORE" }
func (b *IgnoreBehavior) Aliases() []string   { return nil }
func (b *IgnoreBehavior) Description() string { return "Ignore messages with no usable content" }
func (b *IgnoreBehavior) Continuation() bool  { return false }

// Eligible matches empty or punctuation-only messages.
func (b *IgnoreBehavior) Eligible(_ context.Context, msg *store.Memory, _ *state.State) (bool, error) {
	trimmed := strings.TrimSpace(msg.Content.Text)
	if trimmed == "" {
		return true, nil
	}
	return strings.Trim(trimmed, ".,!?-_~ ") == "", nil
}

// Run does nothing.
func (b *IgnoreBehavior) Run(context.Context, *store.Memory, *state.State, Callback) error {
	return nil
}

// NoneBehavior is the terminal fallback: always eligible, no side
// effects. Registering it last guarantees every turn resolves to a
// result instead of an implicit skip.
type NoneBehavior struct{}

// NewNoneBehavior constructs the fallback behavior.
func NewNoneBehavior() *NoneBehavior { return &NoneBehavior{} }

func (b *NoneBehavior) Name() string        { return "NONE" }
func (b *NoneBehavior) Aliases() []string   { return nil }
func (b *NoneBehavior) Description() string { return "Take no action this turn" }
func (b *NoneBehavior) Continuation() bool  { return false }

// Eligible always passes.
func (b *NoneBehavior) Eligible(context.Context, *store.Memory, *state.State) (bool, error) {
	return true, nil
}

// Run does nothing.
func (b *NoneBehavior) Run(context.Context, *store.Memory, *state.State, Callback) error {
	return nil
}
