package flagstore

import (
	"time"

	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/cache"
	"github.com/OrlandoBitencourt/bandeira/internal/storage"
	"github.com/OrlandoBitencourt/bandeira/internal/telemetry"
)

// Option is a functional option for configuring Store
type Option func(*Store)

// WithStorage sets the authoritative store
func WithStorage(s storage.Store) Option {
	return func(fs *Store) {
		fs.storage = s
	}
}

// WithCache sets the expiring cache
func WithCache(c cache.Cache) Option {
	return func(fs *Store) {
		fs.cache = c
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(fs *Store) {
		fs.logger = l
	}
}

// WithTelemetry sets the telemetry provider
func WithTelemetry(p telemetry.Provider) Option {
	return func(fs *Store) {
		fs.telemetry = p
	}
}

// WithConfig sets the configuration
func WithConfig(config Config) Option {
	return func(fs *Store) {
		fs.config = config
	}
}

// WithCacheTTL sets the TTL applied to cache writes
func WithCacheTTL(ttl time.Duration) Option {
	return func(fs *Store) {
		fs.config.CacheTTL = ttl
	}
}

// WithTimeouts sets the per-call cache and store timeouts
func WithTimeouts(cacheTimeout, storeTimeout time.Duration) Option {
	return func(fs *Store) {
		fs.config.CacheTimeout = cacheTimeout
		fs.config.StoreTimeout = storeTimeout
	}
}
