package cache

import (
	"context"
	"errors"
	"time"

	"github.com/OrlandoBitencourt/bandeira/pkg/circuit"
)

// GuardedCache wraps a Cache with a circuit breaker. While the circuit is
// open every call fails fast with a *circuit.CircuitOpenError instead of
// waiting for an unhealthy backend to time out.
type GuardedCache struct {
	inner   Cache
	breaker *circuit.Breaker
}

// NewGuardedCache wraps inner. Misses never count as failures.
func NewGuardedCache(inner Cache, cfg circuit.Config) *GuardedCache {
	userIsFailure := cfg.IsFailure
	cfg.IsFailure = func(err error) bool {
		if err == nil || errors.Is(err, ErrMiss) {
			return false
		}
		if userIsFailure != nil {
			return userIsFailure(err)
		}
		return true
	}

	return &GuardedCache{
		inner:   inner,
		breaker: circuit.New(cfg),
	}
}

func (g *GuardedCache) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		val, err = g.inner.Get(ctx, key)
		return err
	})
	return val, err
}

func (g *GuardedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.breaker.Call(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, key, value, ttl)
	})
}

func (g *GuardedCache) Delete(ctx context.Context, key string) error {
	return g.breaker.Call(ctx, func(ctx context.Context) error {
		return g.inner.Delete(ctx, key)
	})
}

// Flush passes through to the wrapped cache when it supports flushing
func (g *GuardedCache) Flush(ctx context.Context) error {
	f, ok := g.inner.(Flusher)
	if !ok {
		return nil
	}
	return g.breaker.Call(ctx, f.Flush)
}

// Breaker exposes the breaker for admin endpoints
func (g *GuardedCache) Breaker() *circuit.Breaker {
	return g.breaker
}

func (g *GuardedCache) Stats() Stats {
	var s Stats
	if r, ok := g.inner.(Reporter); ok {
		s = r.Stats()
	}
	bs := g.breaker.GetStats()
	s.Breaker = &bs
	return s
}

func (g *GuardedCache) Close() error {
	return g.inner.Close()
}
