package flagstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/cache"
	"github.com/OrlandoBitencourt/bandeira/internal/domain"
	"github.com/OrlandoBitencourt/bandeira/internal/storage"
	"github.com/OrlandoBitencourt/bandeira/internal/telemetry"
)

const resourceFlag = "flag"

// ErrFlushUnsupported is returned by InvalidateAll when the cache cannot flush.
var ErrFlushUnsupported = errors.New("cache does not support flushing")

// Store keeps an expiring cache in front of the authoritative store.
//
// The store is always written first. Cache failures degrade to a miss or a
// no-op and are logged, never returned; the only exceptions are Invalidate
// and InvalidateAll, whose whole purpose is the cache. Store failures other
// than not-found surface as *domain.StoreUnavailableError.
type Store struct {
	storage   storage.Store
	cache     cache.Cache
	logger    *zap.Logger
	telemetry telemetry.Provider
	config    Config
}

// New creates a new Store with the given options
func New(opts ...Option) (*Store, error) {
	s := &Store{
		config: DefaultConfig(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if s.cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.telemetry == nil {
		s.telemetry = telemetry.NewNoOp()
	}

	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return s, nil
}

// Read returns the flag, preferring the cache. A hit never touches the store.
func (s *Store) Read(ctx context.Context, name string) (*domain.FeatureFlag, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "flagstore.Read",
		telemetry.WithAttributes(telemetry.String("flag.name", name)))
	defer span.End()

	if flag, ok := s.cacheGet(ctx, name); ok {
		span.SetAttributes(telemetry.Bool("cache.hit", true))
		return flag, nil
	}
	span.SetAttributes(telemetry.Bool("cache.hit", false))

	flag, err := s.storeGet(ctx, name)
	if err != nil {
		if !domain.IsNotFound(err) {
			span.RecordError(err)
		}
		return nil, err
	}

	s.cacheSet(ctx, flag)
	return flag, nil
}

// ReadAuthoritative returns the flag from the store, bypassing the cache.
func (s *Store) ReadAuthoritative(ctx context.Context, name string) (*domain.FeatureFlag, error) {
	ctx, span := s.telemetry.StartSpan(ctx, "flagstore.ReadAuthoritative",
		telemetry.WithAttributes(telemetry.String("flag.name", name)))
	defer span.End()

	flag, err := s.storeGet(ctx, name)
	if err != nil && !domain.IsNotFound(err) {
		span.RecordError(err)
	}
	return flag, err
}

// Write persists the flag, then replaces its cache entry.
func (s *Store) Write(ctx context.Context, flag domain.FeatureFlag) error {
	ctx, span := s.telemetry.StartSpan(ctx, "flagstore.Write",
		telemetry.WithAttributes(
			telemetry.String("flag.name", flag.Name),
			telemetry.Int64("flag.version", flag.Version),
		))
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	err := s.storage.Put(sctx, flag)
	cancel()
	if err != nil {
		err = s.storeFailure(ctx, "put", flag.Name, err)
		span.RecordError(err)
		return err
	}

	// evict before refilling so a failed refill leaves no stale entry
	s.cacheDelete(ctx, flag.Name)
	s.cacheSet(ctx, &flag)
	return nil
}

// Remove deletes the flag from the store, then evicts it from the cache.
// An absent flag yields *domain.NotFoundError and leaves the cache alone.
func (s *Store) Remove(ctx context.Context, name string) error {
	ctx, span := s.telemetry.StartSpan(ctx, "flagstore.Remove",
		telemetry.WithAttributes(telemetry.String("flag.name", name)))
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	err := s.storage.Delete(sctx, name)
	cancel()
	if errors.Is(err, storage.ErrNotFound) {
		return domain.NewNotFoundError(resourceFlag, name)
	}
	if err != nil {
		err = s.storeFailure(ctx, "delete", name, err)
		span.RecordError(err)
		return err
	}

	s.cacheDelete(ctx, name)
	return nil
}

// Exists asks the store only. A cache could answer with a stale presence.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	sctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	ok, err := s.storage.Exists(sctx, name)
	if err != nil {
		return false, s.storeFailure(ctx, "exists", name, err)
	}
	return ok, nil
}

// List returns every stored flag sorted by name
func (s *Store) List(ctx context.Context) ([]domain.FeatureFlag, error) {
	sctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	flags, err := s.storage.List(sctx)
	if err != nil {
		return nil, s.storeFailure(ctx, "list", "", err)
	}

	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
	return flags, nil
}

// Invalidate evicts one cache entry and reports cache errors.
func (s *Store) Invalidate(ctx context.Context, name string) error {
	cctx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()

	if err := s.cache.Delete(cctx, s.key(name)); err != nil {
		s.telemetry.RecordCacheError(ctx, "delete")
		return fmt.Errorf("invalidate %s: %w", name, err)
	}

	s.logger.Info("Cache entry invalidated", zap.String("flag", name))
	return nil
}

// InvalidateAll drops every cached flag.
func (s *Store) InvalidateAll(ctx context.Context) error {
	f, ok := s.cache.(cache.Flusher)
	if !ok {
		return ErrFlushUnsupported
	}

	cctx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()

	if err := f.Flush(cctx); err != nil {
		s.telemetry.RecordCacheError(ctx, "flush")
		return fmt.Errorf("invalidate all: %w", err)
	}

	s.logger.Info("Cache flushed")
	return nil
}

// CacheStats returns cache statistics when the cache keeps them
func (s *Store) CacheStats() (cache.Stats, bool) {
	r, ok := s.cache.(cache.Reporter)
	if !ok {
		return cache.Stats{}, false
	}
	return r.Stats(), true
}

// StorageMetrics returns store metrics when the store keeps them
func (s *Store) StorageMetrics() (storage.Metrics, bool) {
	r, ok := s.storage.(storage.Reporter)
	if !ok {
		return storage.Metrics{}, false
	}
	return r.Metrics(), true
}

// Config returns the active configuration
func (s *Store) Config() Config {
	return s.config
}

func (s *Store) key(name string) string {
	return cache.KeyWithPrefix(s.config.KeyPrefix, name)
}

func (s *Store) storeGet(ctx context.Context, name string) (*domain.FeatureFlag, error) {
	sctx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	flag, err := s.storage.Get(sctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NewNotFoundError(resourceFlag, name)
	}
	if err != nil {
		return nil, s.storeFailure(ctx, "get", name, err)
	}
	return flag, nil
}

func (s *Store) storeFailure(ctx context.Context, op, name string, err error) error {
	s.telemetry.RecordStoreError(ctx, op)
	s.logger.Error("Store operation failed",
		zap.String("op", op),
		zap.String("flag", name),
		zap.Error(err),
	)
	return domain.NewStoreUnavailableError(op, name, err)
}

// cacheGet reports a hit only for an entry that decodes cleanly.
func (s *Store) cacheGet(ctx context.Context, name string) (*domain.FeatureFlag, bool) {
	cctx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()

	data, err := s.cache.Get(cctx, s.key(name))
	switch {
	case err == nil:
	case cache.IsMiss(err):
		s.logger.Debug("Cache miss", zap.String("flag", name))
		s.telemetry.RecordCacheMiss(ctx, name)
		return nil, false
	default:
		s.cacheFailure(ctx, "get", name, err)
		s.telemetry.RecordCacheMiss(ctx, name)
		return nil, false
	}

	flag, err := storage.Decode(data)
	if err != nil || flag.Name != name {
		if err == nil {
			err = fmt.Errorf("cached entry holds flag %q", flag.Name)
		}
		s.cacheFailure(ctx, "decode", name, err)
		s.telemetry.RecordCacheMiss(ctx, name)
		return nil, false
	}

	s.logger.Debug("Cache hit", zap.String("flag", name))
	s.telemetry.RecordCacheHit(ctx, name)
	return flag, true
}

func (s *Store) cacheSet(ctx context.Context, flag *domain.FeatureFlag) {
	data, err := storage.Encode(*flag)
	if err != nil {
		s.cacheFailure(ctx, "encode", flag.Name, err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()

	if err := s.cache.Set(cctx, s.key(flag.Name), data, s.config.CacheTTL); err != nil {
		s.cacheFailure(ctx, "set", flag.Name, err)
	}
}

func (s *Store) cacheDelete(ctx context.Context, name string) {
	cctx, cancel := context.WithTimeout(ctx, s.config.CacheTimeout)
	defer cancel()

	if err := s.cache.Delete(cctx, s.key(name)); err != nil {
		s.cacheFailure(ctx, "delete", name, err)
	}
}

func (s *Store) cacheFailure(ctx context.Context, op, name string, err error) {
	s.telemetry.RecordCacheError(ctx, op)
	s.logger.Warn("Cache operation failed, continuing without cache",
		zap.String("op", op),
		zap.String("flag", name),
		zap.Error(err),
	)
}
