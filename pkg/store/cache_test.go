package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowaylab/reverie/pkg/resilience"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDBCache_SetGetDeleteAndExpiry(t *testing.T) {
	s := newTestStore(t)
	c := NewDBCache(s, "agent-1")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), 0))
	require.NoError(t, c.Set(ctx, "k", []byte("v2"), 0))

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), val)

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, err = c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDBCache_NamespacedByAgent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := NewDBCache(s, "agent-a")
	b := NewDBCache(s, "agent-b")

	require.NoError(t, a.Set(ctx, "k", []byte("a"), 0))
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingCache struct {
	calls int
}

func (f *failingCache) Get(context.Context, string) ([]byte, bool, error) {
	f.calls++
	return nil, false, assert.AnError
}

func (f *failingCache) Set(context.Context, string, []byte, time.Duration) error {
	f.calls++
	return assert.AnError
}

func (f *failingCache) Delete(context.Context, string) error {
	f.calls++
	return assert.AnError
}

func TestResilientCache_OpenBreakerFailsFast(t *testing.T) {
	inner := &failingCache{}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		HalfOpenMax:      1,
	})
	c := NewResilientCache(inner, breaker, resilience.RetryConfig{MaxAttempts: 1})
	ctx := context.Background()

	_, _, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, assert.AnError)
	require.ErrorIs(t, c.Set(ctx, "k", nil, 0), assert.AnError)

	// Breaker is open now; the inner cache must not be invoked again.
	before := inner.calls
	require.ErrorIs(t, c.Delete(ctx, "k"), resilience.ErrOpen)
	assert.Equal(t, before, inner.calls)
}
