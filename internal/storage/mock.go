package storage

import (
	"context"
	"sync"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
)

// MockStore is a Store for tests. It stores flags in memory unless an
// XxxFunc override is set, and counts every call.
type MockStore struct {
	mu    sync.Mutex
	flags map[string]domain.FeatureFlag

	// Mock behaviors
	GetFunc    func(ctx context.Context, name string) (*domain.FeatureFlag, error)
	PutFunc    func(ctx context.Context, flag domain.FeatureFlag) error
	DeleteFunc func(ctx context.Context, name string) error
	ExistsFunc func(ctx context.Context, name string) (bool, error)
	ListFunc   func(ctx context.Context) ([]domain.FeatureFlag, error)

	// Call tracking
	GetCalls    int
	PutCalls    int
	DeleteCalls int
	ExistsCalls int
	ListCalls   int
	CloseCalls  int
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{flags: make(map[string]domain.FeatureFlag)}
}

func (m *MockStore) Get(ctx context.Context, name string) (*domain.FeatureFlag, error) {
	m.mu.Lock()
	m.GetCalls++
	fn := m.GetFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	flag, ok := m.flags[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &flag, nil
}

func (m *MockStore) Put(ctx context.Context, flag domain.FeatureFlag) error {
	m.mu.Lock()
	m.PutCalls++
	fn := m.PutFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, flag)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[flag.Name] = flag
	return nil
}

func (m *MockStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	m.DeleteCalls++
	fn := m.DeleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flags[name]; !ok {
		return ErrNotFound
	}
	delete(m.flags, name)
	return nil
}

func (m *MockStore) Exists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	m.ExistsCalls++
	fn := m.ExistsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.flags[name]
	return ok, nil
}

func (m *MockStore) List(ctx context.Context) ([]domain.FeatureFlag, error) {
	m.mu.Lock()
	m.ListCalls++
	fn := m.ListFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	flags := make([]domain.FeatureFlag, 0, len(m.flags))
	for _, f := range m.flags {
		flags = append(flags, f)
	}
	return flags, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	return nil
}

// Seed stores flags directly without counting calls
func (m *MockStore) Seed(flags ...domain.FeatureFlag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range flags {
		m.flags[f.Name] = f
	}
}

// Reset clears call counters
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls, m.PutCalls, m.DeleteCalls, m.ExistsCalls, m.ListCalls, m.CloseCalls = 0, 0, 0, 0, 0, 0
}
