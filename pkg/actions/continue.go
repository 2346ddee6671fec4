package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/hollowaylab/reverie/pkg/generation"
	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// ContinueBehavior extends the agent's previous thought without waiting
// for a new prompt. It is continuation-tagged, so the pipeline's
// anti-loop and natural-stop invariants bound it.
type ContinueBehavior struct {
	generator generation.Generator
	model     string
}

// NewContinueBehavior constructs the continuation behavior.
func NewContinueBehavior(g generation.Generator, model string) *ContinueBehavior {
	return &ContinueBehavior{generator: g, model: model}
}

// Name identifies the behavior and the action tag recorded on its
// messages.
func (b *ContinueBehavior) Name() string { return "CONTINUE" }

// Aliases lists alternate selection names.
func (b *ContinueBehavior) Aliases() []string { return []string{"ELABORATE"} }

// Description summarizes the behavior for registries and prompts.
func (b *ContinueBehavior) Description() string {
	return "Continue the previous message when the thought is unfinished"
}

// Continuation marks this behavior for the consecutive-run limit.
func (b *ContinueBehavior) Continuation() bool { return true }

// Eligible requires an inbound user message with content to continue
// from.
func (b *ContinueBehavior) Eligible(_ context.Context, msg *store.Memory, st *state.State) (bool, error) {
	if strings.TrimSpace(msg.Content.Text) == "" {
		return false, nil
	}
	if msg.UserID == st.AgentID {
		return false, nil
	}
	return true, nil
}

// Run generates the continuation and emits it.
func (b *ContinueBehavior) Run(ctx context.Context, msg *store.Memory, st *state.State, emit Callback) error {
	prompt := fmt.Sprintf(
		"Conversation so far:\n%s\n\nContinue your previous thought in one short message. Do not repeat yourself.",
		st.RecentText,
	)
	reply, err := b.generator.Complete(ctx, generation.Request{
		Model:        b.model,
		SystemPrompt: "You are " + st.AgentName + ".",
		Prompt:       prompt,
	})
	if err != nil {
		return fmt.Errorf("failed to generate continuation: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return fmt.Errorf("generator returned empty continuation")
	}
	return emit(ctx, reply)
}
