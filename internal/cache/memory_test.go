package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()

	c, err := NewMemoryCache(MemoryConfig{
		MaxCost:     1 << 20,
		NumCounters: 1000,
		BufferItems: 64,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	value := []byte(`{"name":"a"}`)
	require.NoError(t, c.Set(ctx, "flag:a", value, time.Minute))

	// mutating the caller's slice must not change the entry
	value[0] = 'X'

	got, err := c.Get(ctx, "flag:a")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a"}`, string(got))
}

func TestMemoryCache_Miss(t *testing.T) {
	c := newTestMemoryCache(t)

	_, err := c.Get(context.Background(), "flag:none")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache_TTL(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "flag:short", []byte("x"), 50*time.Millisecond))

	_, err := c.Get(ctx, "flag:short")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = c.Get(ctx, "flag:short")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache_NegativeTTL(t *testing.T) {
	c := newTestMemoryCache(t)
	assert.Error(t, c.Set(context.Background(), "flag:x", []byte("x"), -time.Second))
}

func TestMemoryCache_DeleteThenSet(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "flag:a", []byte("v1"), time.Minute))
	require.NoError(t, c.Delete(ctx, "flag:a"))

	_, err := c.Get(ctx, "flag:a")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "flag:a", []byte("v2"), time.Minute))
	got, err := c.Get(ctx, "flag:a")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestMemoryCache_Flush(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "flag:a", []byte("x"), time.Minute))
	require.NoError(t, c.Flush(ctx))

	_, err := c.Get(ctx, "flag:a")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCache_Stats(t *testing.T) {
	c := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "flag:a", []byte("x"), time.Minute))
	_, _ = c.Get(ctx, "flag:a")
	_, _ = c.Get(ctx, "flag:b")

	s := c.Stats()
	assert.Equal(t, "memory", s.Backend)
	assert.Equal(t, uint64(1), s.Sets)
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
}

func TestNoopCache(t *testing.T) {
	var c Cache = NewNoopCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "flag:a", []byte("x"), time.Minute))
	_, err := c.Get(ctx, "flag:a")
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, c.Delete(ctx, "flag:a"))
	assert.NoError(t, c.Close())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "flag:checkout_v2", KeyWithPrefix(DefaultKeyPrefix, "checkout_v2"))
	assert.Equal(t, "staging:checkout_v2", KeyWithPrefix("staging:", "checkout_v2"))
}
