package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// DirectChannel is an in-process channel: inbound messages are injected
// programmatically and outbound publishes are collected. It is the
// reference adapter for embedding the host without a platform bridge.
type DirectChannel struct {
	mu        sync.Mutex
	dispatch  DispatchFunc
	started   bool
	published []PublishedMessage
}

// PublishedMessage is one outbound publish recorded by the direct channel.
type PublishedMessage struct {
	ID     string
	RoomID string
	Text   string
}

// NewDirectChannel constructs a direct channel.
func NewDirectChannel() *DirectChannel {
	return &DirectChannel{}
}

// Name identifies the channel in the registry.
func (c *DirectChannel) Name() string { return "direct" }

// Start wires the dispatch function.
func (c *DirectChannel) Start(_ context.Context, dispatch DispatchFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatch = dispatch
	c.started = true
	return nil
}

// Stop detaches the channel.
func (c *DirectChannel) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	return nil
}

// Inject delivers an inbound message as if it arrived from a platform.
func (c *DirectChannel) Inject(ctx context.Context, msg InboundMessage) error {
	c.mu.Lock()
	dispatch := c.dispatch
	started := c.started
	c.mu.Unlock()

	if !started || dispatch == nil {
		return fmt.Errorf("direct channel is not started")
	}
	msg.Channel = c.Name()
	return dispatch(ctx, msg)
}

// Publish records outbound content and returns a synthetic message id.
func (c *DirectChannel) Publish(_ context.Context, roomID, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := PublishedMessage{
		ID:     uuid.NewString(),
		RoomID: roomID,
		Text:   text,
	}
	c.published = append(c.published, msg)
	return msg.ID, nil
}

// Published returns a copy of everything published so far.
func (c *DirectChannel) Published() []PublishedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PublishedMessage, len(c.published))
	copy(out, c.published)
	return out
}
