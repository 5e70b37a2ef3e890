package cache

import (
	"context"
	"errors"
	"time"

	"github.com/OrlandoBitencourt/bandeira/pkg/circuit"
)

// DefaultKeyPrefix namespaces flag entries in a shared cache.
const DefaultKeyPrefix = "flag:"

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache is an expiring key/value cache holding serialized flags.
// Entries may be stale; the authoritative copy lives in storage.
type Cache interface {
	// Get returns the value stored under key, or ErrMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases connections held by the cache
	Close() error
}

// Flusher is implemented by caches that can drop every flag entry at once.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Reporter is implemented by caches that keep statistics.
type Reporter interface {
	Stats() Stats
}

// Stats represents cache statistics
type Stats struct {
	Backend string  `json:"backend"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Sets    uint64  `json:"sets"`
	Deletes uint64  `json:"deletes"`
	Errors  uint64  `json:"errors"`
	Ratio   float64 `json:"hit_ratio"`

	// Breaker is set when the cache is wrapped by a GuardedCache
	Breaker *circuit.Stats `json:"breaker,omitempty"`
}

// KeyWithPrefix derives the cache key for a flag name under prefix
func KeyWithPrefix(prefix, name string) string {
	return prefix + name
}

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

func hitRatio(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
