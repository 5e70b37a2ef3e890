// internal/storage/storage.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
)

// ErrNotFound is returned by Get and Delete when no flag has the name.
var ErrNotFound = errors.New("flag not found")

// Store is the authoritative home of every flag. Exactly one copy per name.
type Store interface {
	// Get retrieves a flag by name
	Get(ctx context.Context, name string) (*domain.FeatureFlag, error)

	// Put creates or replaces a flag
	Put(ctx context.Context, flag domain.FeatureFlag) error

	// Delete removes a flag
	Delete(ctx context.Context, name string) error

	// Exists reports whether a flag with the name is stored
	Exists(ctx context.Context, name string) (bool, error)

	// List returns all stored flags, in no particular order
	List(ctx context.Context) ([]domain.FeatureFlag, error)

	// Close releases the underlying resources
	Close() error
}

// Reporter is implemented by stores that keep operation counters.
type Reporter interface {
	Metrics() Metrics
}

// Metrics represents storage metrics
type Metrics struct {
	Gets    uint64 `json:"gets"`
	Misses  uint64 `json:"misses"`
	Puts    uint64 `json:"puts"`
	Deletes uint64 `json:"deletes"`
	Errors  uint64 `json:"errors"`
	Size    int64  `json:"size"`
}

// Encode serializes a flag into the wire form shared by stores and caches.
func Encode(flag domain.FeatureFlag) ([]byte, error) {
	data, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("encode flag %s: %w", flag.Name, err)
	}
	return data, nil
}

// Decode parses a flag written by Encode.
func Decode(data []byte) (*domain.FeatureFlag, error) {
	var flag domain.FeatureFlag
	if err := json.Unmarshal(data, &flag); err != nil {
		return nil, fmt.Errorf("decode flag: %w", err)
	}
	if flag.Name == "" {
		return nil, errors.New("decode flag: missing name")
	}
	return &flag, nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// counters are atomic so read paths can update them under a read lock.
type counters struct {
	gets, misses, puts, deletes, errors atomic.Uint64
}

func (c *counters) snapshot(size int64) Metrics {
	return Metrics{
		Gets:    c.gets.Load(),
		Misses:  c.misses.Load(),
		Puts:    c.puts.Load(),
		Deletes: c.deletes.Load(),
		Errors:  c.errors.Load(),
		Size:    size,
	}
}
