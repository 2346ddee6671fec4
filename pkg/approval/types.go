// Package approval gates externally-visible actions behind asynchronous
// human confirmation. Each gated action becomes a pending task polled on
// an independent timer until it is approved, rejected, or expires.
package approval

import (
	"context"
	"time"
)

// Decision is the confirmation surface's answer for one pending task.
type Decision string

const (
	DecisionPending  Decision = "PENDING"
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Outcome is a terminal transition reported back to the surface.
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeRejected Outcome = "REJECTED"
	OutcomeExpired  Outcome = "EXPIRED"
)

// Task is one gated action awaiting confirmation.
type Task struct {
	ID       string `json:"id"`
	RoomID   string `json:"roomId"`
	Rendered string `json:"rendered"`
	Raw      string `json:"raw"`

	// External reference to the confirmation surface. Removal dedups on
	// the message id.
	ExternalMessageID string `json:"externalMessageId"`
	ExternalChannelID string `json:"externalChannelId"`

	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Surface is the external confirmation channel: tasks are submitted to
// it, polled for a decision, and notified of their terminal outcome.
type Surface interface {
	// Submit posts the rendered content for review and returns the
	// external message and channel identifiers.
	Submit(ctx context.Context, roomID, rendered string) (messageID, channelID string, err error)
	Poll(ctx context.Context, task Task) (Decision, error)
	Notify(ctx context.Context, task Task, outcome Outcome) error
}

// Executor runs the deferred action once its task is approved.
type Executor func(ctx context.Context, task Task) error
