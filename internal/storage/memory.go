package storage

import (
	"context"
	"sync"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
)

// MemoryStore keeps flags in a map. Data does not survive a restart, so it
// is meant for tests and single-process development.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string]domain.FeatureFlag

	counters
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[string]domain.FeatureFlag)}
}

func (m *MemoryStore) Get(ctx context.Context, name string) (*domain.FeatureFlag, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	flag, ok := m.flags[name]
	m.mu.RUnlock()

	m.gets.Add(1)
	if !ok {
		m.misses.Add(1)
		return nil, ErrNotFound
	}
	return &flag, nil
}

func (m *MemoryStore) Put(ctx context.Context, flag domain.FeatureFlag) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.flags[flag.Name] = flag
	m.mu.Unlock()

	m.puts.Add(1)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flags[name]; !ok {
		return ErrNotFound
	}
	delete(m.flags, name)
	m.deletes.Add(1)
	return nil
}

func (m *MemoryStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	m.mu.RLock()
	_, ok := m.flags[name]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]domain.FeatureFlag, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	flags := make([]domain.FeatureFlag, 0, len(m.flags))
	for _, f := range m.flags {
		flags = append(flags, f)
	}
	return flags, nil
}

func (m *MemoryStore) Metrics() Metrics {
	m.mu.RLock()
	size := len(m.flags)
	m.mu.RUnlock()

	return m.snapshot(int64(size))
}

func (m *MemoryStore) Close() error { return nil }
