package cache

import (
	"context"
	"time"
)

// NoopCache never stores anything; every read goes to storage.
type NoopCache struct{}

// NewNoopCache returns a cache that always misses
func NewNoopCache() NoopCache { return NoopCache{} }

func (NoopCache) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (NoopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopCache) Delete(context.Context, string) error { return nil }

func (NoopCache) Close() error { return nil }

func (NoopCache) Stats() Stats { return Stats{Backend: "none"} }

func (NoopCache) Flush(context.Context) error { return nil }
