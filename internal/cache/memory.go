package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryConfig sizes the in-process cache
type MemoryConfig struct {
	MaxCost     int64 // bytes of serialized flags
	NumCounters int64
	BufferItems int64
}

// DefaultMemoryConfig returns a config sized for tens of thousands of flags
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxCost:     64 << 20,
		NumCounters: 1e5,
		BufferItems: 64,
	}
}

// MemoryCache is an in-process Cache backed by ristretto. Each replica has
// its own copy, so staleness across replicas is bounded only by the TTL.
type MemoryCache struct {
	cache *ristretto.Cache

	sets, deletes atomic.Uint64
}

// NewMemoryCache creates a new ristretto-backed cache
func NewMemoryCache(cfg MemoryConfig) (*MemoryCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &MemoryCache{cache: c}, nil
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected cache value type %T", v)
	}
	return b, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("negative ttl %s", ttl)
	}

	// the caller may reuse value
	stored := append([]byte(nil), value...)
	if !m.cache.SetWithTTL(key, stored, int64(len(stored)), ttl) {
		return fmt.Errorf("cache rejected key %s", key)
	}
	// sets are buffered; wait so the next Get observes this one
	m.cache.Wait()

	m.sets.Add(1)
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.cache.Del(key)
	m.deletes.Add(1)
	return nil
}

// Flush drops every entry
func (m *MemoryCache) Flush(ctx context.Context) error {
	m.cache.Clear()
	return nil
}

func (m *MemoryCache) Stats() Stats {
	metrics := m.cache.Metrics
	return Stats{
		Backend: "memory",
		Hits:    metrics.Hits(),
		Misses:  metrics.Misses(),
		Sets:    m.sets.Load(),
		Deletes: m.deletes.Load(),
		Ratio:   metrics.Ratio(),
	}
}

func (m *MemoryCache) Close() error {
	m.cache.Close()
	return nil
}
