package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/hollowaylab/reverie/pkg/generation"
	"github.com/hollowaylab/reverie/pkg/state"
	"github.com/hollowaylab/reverie/pkg/store"
)

// Approvals is the gate a publish behavior defers through. Enqueue
// returns the pending task id; an error here means the content could not
// be submitted for approval at all, which callers must distinguish from a
// later rejection or expiry.
type Approvals interface {
	Enqueue(ctx context.Context, roomID, rendered, raw string) (string, error)
}

// PublishBehavior drafts externally-visible content and defers it behind
// asynchronous human approval instead of publishing immediately.
type PublishBehavior struct {
	generator generation.Generator
	model     string
	approvals Approvals
}

// NewPublishBehavior constructs the gated publish behavior.
func NewPublishBehavior(g generation.Generator, model string, approvals Approvals) *PublishBehavior {
	return &PublishBehavior{generator: g, model: model, approvals: approvals}
}

func (b *PublishBehavior) Name() string      { return "PUBLISH" }
func (b *PublishBehavior) Aliases() []string { return []string{"POST"} }

// Description summarizes the behavior.
func (b *PublishBehavior) Description() string {
	return "Draft a public post and submit it for human approval"
}

// Continuation is false: publishing is never part of a continuation run.
func (b *PublishBehavior) Continuation() bool { return false }

// Eligible requires an explicit publish request in the message.
func (b *PublishBehavior) Eligible(_ context.Context, msg *store.Memory, _ *state.State) (bool, error) {
	text := strings.ToLower(msg.Content.Text)
	for _, kw := range []string{"publish", "post this", "post about"} {
		if strings.Contains(text, kw) {
			return true, nil
		}
	}
	return false, nil
}

// Run renders the content and enqueues it for approval. Nothing is
// published here; the approval poller executes the deferred publish once
// a human approves.
func (b *PublishBehavior) Run(ctx context.Context, msg *store.Memory, st *state.State, emit Callback) error {
	prompt := fmt.Sprintf(
		"Conversation so far:\n%s\n\nDraft a short public post fulfilling this request: %s",
		st.RecentText, msg.Content.Text,
	)
	raw, err := b.generator.Complete(ctx, generation.Request{
		Model:        b.model,
		SystemPrompt: "You are " + st.AgentName + ". Write in your own voice.",
		Prompt:       prompt,
	})
	if err != nil {
		return fmt.Errorf("failed to draft post: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("generator returned empty draft")
	}

	rendered := fmt.Sprintf("Proposed post:\n%s", raw)
	taskID, err := b.approvals.Enqueue(ctx, st.RoomID, rendered, raw)
	if err != nil {
		// Could not submit for approval; distinct from a submission
		// that is later declined.
		return fmt.Errorf("failed to submit post for approval: %w", err)
	}

	return emit(ctx, fmt.Sprintf("Draft submitted for approval (task %s). I'll post it if it's approved.", taskID))
}
