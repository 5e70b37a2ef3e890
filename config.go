package bandeira

import (
	"time"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreDisk   = "disk"
	StoreBolt   = "bolt"
)

// Cache backends
const (
	CacheRedis  = "redis"
	CacheMemory = "memory"
	CacheNone   = "none"
)

// Config holds all configuration for a bandeira server.
type Config struct {
	// HTTPAddr is the listen address of the HTTP API
	// Example: ":8080"
	HTTPAddr string

	// ShutdownTimeout bounds graceful shutdown of in-flight requests
	ShutdownTimeout time.Duration

	// Store configures the authoritative flag store
	Store StoreConfig

	// Cache configures the read-through cache in front of the store
	Cache CacheConfig

	// WebhookSecret is the shared HMAC-SHA256 secret for POST /webhook.
	// If empty, signature validation is disabled.
	WebhookSecret string

	// Telemetry configures OpenTelemetry metrics and traces
	Telemetry TelemetryConfig
}

// StoreConfig configures the authoritative store.
type StoreConfig struct {
	// Backend is one of "memory", "disk" or "bolt"
	Backend string

	// Path is a directory for "disk" and a database file for "bolt"
	Path string

	// Timeout bounds every store call
	Timeout time.Duration
}

// CacheConfig configures the cache.
type CacheConfig struct {
	// Backend is one of "redis", "memory" or "none"
	Backend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// KeyPrefix is prepended to flag names to form cache keys
	KeyPrefix string

	// TTL is applied to every cache entry
	TTL time.Duration

	// Timeout bounds every cache call. A slow cache is treated as a miss.
	Timeout time.Duration

	// BreakerThreshold is the number of consecutive cache failures
	// before calls to the cache are skipped
	BreakerThreshold int

	// BreakerTimeout is how long the cache is skipped before a probe
	BreakerTimeout time.Duration
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
}

// DefaultConfig returns recommended default configuration.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		ShutdownTimeout: 15 * time.Second,
		Store: StoreConfig{
			Backend: StoreMemory,
			Timeout: 2 * time.Second,
		},
		Cache: CacheConfig{
			Backend:          CacheMemory,
			RedisAddr:        "localhost:6379",
			KeyPrefix:        "flag:",
			TTL:              300 * time.Second,
			Timeout:          100 * time.Millisecond,
			BreakerThreshold: 5,
			BreakerTimeout:   10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			ServiceName: "bandeira",
		},
	}
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return &ConfigError{Field: "http_addr", Message: "must not be empty"}
	}
	if c.ShutdownTimeout <= 0 {
		return &ConfigError{Field: "shutdown_timeout", Message: "must be positive"}
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreDisk, StoreBolt:
		if c.Store.Path == "" {
			return &ConfigError{Field: "store.path", Message: "required for the " + c.Store.Backend + " backend"}
		}
	default:
		return &ConfigError{Field: "store.backend", Message: "unknown backend " + c.Store.Backend}
	}
	if c.Store.Timeout <= 0 {
		return &ConfigError{Field: "store.timeout", Message: "must be positive"}
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return &ConfigError{Field: "cache.redis_addr", Message: "required for the redis backend"}
		}
		if c.Cache.RedisDB < 0 {
			return &ConfigError{Field: "cache.redis_db", Message: "must not be negative"}
		}
	default:
		return &ConfigError{Field: "cache.backend", Message: "unknown backend " + c.Cache.Backend}
	}
	if c.Cache.KeyPrefix == "" {
		return &ConfigError{Field: "cache.key_prefix", Message: "must not be empty"}
	}
	if c.Cache.TTL <= 0 {
		return &ConfigError{Field: "cache.ttl", Message: "must be positive"}
	}
	if c.Cache.Timeout <= 0 {
		return &ConfigError{Field: "cache.timeout", Message: "must be positive"}
	}
	if c.Cache.BreakerThreshold < 0 {
		return &ConfigError{Field: "cache.breaker_threshold", Message: "must not be negative"}
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return &ConfigError{Field: "telemetry.service_name", Message: "must not be empty"}
	}
	return nil
}
