package channels

import (
	"context"
	"time"

	"github.com/hollowaylab/reverie/pkg/store"
)

// InboundMessage is the normalized ingress payload from any channel
// adapter.
type InboundMessage struct {
	Channel     string
	RoomID      string
	UserID      string
	AgentID     string
	Text        string
	ReplyTo     string
	Attachments []store.Attachment
	Timestamp   time.Time
}

// DispatchFunc routes an inbound message into the host's runtime flow.
type DispatchFunc func(ctx context.Context, msg InboundMessage) error

// Channel is a chat/social platform adapter. Adapters deliver inbound
// messages through the dispatch function and accept outbound publishes.
type Channel interface {
	Name() string
	Start(ctx context.Context, dispatch DispatchFunc) error
	Stop(ctx context.Context) error

	// Publish sends content to a room and returns the platform message id.
	Publish(ctx context.Context, roomID, text string) (string, error)
}
