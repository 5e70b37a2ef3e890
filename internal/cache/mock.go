package cache

import (
	"context"
	"sync"
	"time"
)

// MockCache is a Cache for tests. Entries never expire; TTLs are recorded.
type MockCache struct {
	mu      sync.Mutex
	entries map[string][]byte

	// Mock behaviors
	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error

	// Call tracking
	GetCalls    int
	SetCalls    int
	DeleteCalls int
	FlushCalls  int
	CloseCalls  int
	LastTTL     time.Duration
}

// NewMockCache creates a new mock cache
func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string][]byte)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	m.GetCalls++
	fn := m.GetFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.SetCalls++
	m.LastTTL = ttl
	fn := m.SetFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, key, value, ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), value...)
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.DeleteCalls++
	fn := m.DeleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MockCache) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FlushCalls++
	m.entries = make(map[string][]byte)
	return nil
}

func (m *MockCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// Entry returns the raw value under key without counting a call
func (m *MockCache) Entry(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Put stores a raw value without counting a call
func (m *MockCache) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

// Reset clears call counters
func (m *MockCache) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls, m.SetCalls, m.DeleteCalls, m.FlushCalls, m.CloseCalls = 0, 0, 0, 0, 0
}
