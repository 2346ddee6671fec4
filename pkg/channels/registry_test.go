package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testChannel struct {
	name       string
	startCalls int
	stopCalls  int
}

func (c *testChannel) Name() string { return c.name }

func (c *testChannel) Start(_ context.Context, dispatch DispatchFunc) error {
	if dispatch == nil {
		return assert.AnError
	}
	c.startCalls++
	return nil
}

func (c *testChannel) Stop(_ context.Context) error {
	c.stopCalls++
	return nil
}

func (c *testChannel) Publish(_ context.Context, roomID, text string) (string, error) {
	return roomID + ":" + text, nil
}

func TestRegistry_RegisterStartDispatchStop(t *testing.T) {
	dispatched := 0
	reg := NewRegistry(func(_ context.Context, msg InboundMessage) error {
		dispatched++
		return nil
	})

	ch := &testChannel{name: "direct"}
	require.NoError(t, reg.Register(ch))
	assert.Equal(t, []string{"direct"}, reg.Names())

	require.NoError(t, reg.StartAll(context.Background()))
	assert.Equal(t, 1, ch.startCalls)

	err := reg.Dispatch(context.Background(), InboundMessage{
		Channel: "direct",
		RoomID:  "room-1",
		Text:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)

	id, err := reg.Publish(context.Background(), "direct", "room-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "room-1:hi", id)

	require.NoError(t, reg.StopAll(context.Background()))
	assert.Equal(t, 1, ch.stopCalls)
}

func TestRegistry_DispatchUnknownChannel(t *testing.T) {
	reg := NewRegistry(func(_ context.Context, msg InboundMessage) error {
		return nil
	})

	err := reg.Dispatch(context.Background(), InboundMessage{
		Channel: "telegram",
		Text:    "ping",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistry_RejectsDuplicateChannel(t *testing.T) {
	reg := NewRegistry(func(_ context.Context, msg InboundMessage) error {
		return nil
	})

	require.NoError(t, reg.Register(&testChannel{name: "direct"}))
	err := reg.Register(&testChannel{name: "direct"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestDirectChannel_InjectAndPublish(t *testing.T) {
	ch := NewDirectChannel()

	err := ch.Inject(context.Background(), InboundMessage{RoomID: "room-1", Text: "hi"})
	require.Error(t, err)

	var got InboundMessage
	require.NoError(t, ch.Start(context.Background(), func(_ context.Context, msg InboundMessage) error {
		got = msg
		return nil
	}))

	require.NoError(t, ch.Inject(context.Background(), InboundMessage{RoomID: "room-1", Text: "hi"}))
	assert.Equal(t, "direct", got.Channel)
	assert.Equal(t, "room-1", got.RoomID)

	id, err := ch.Publish(context.Background(), "room-1", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, ch.Published(), 1)
	assert.Equal(t, "hello", ch.Published()[0].Text)
}
