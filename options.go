package bandeira

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/telemetry"
)

// Option configures an App.
type Option func(*options) error

// options holds internal configuration.
type options struct {
	config  Config
	logger  *zap.Logger
	version string

	// extra span processors, for exporters and tests
	sdkOptions []telemetry.SDKOption
}

func defaultOptions() *options {
	return &options{
		config:  DefaultConfig(),
		logger:  zap.NewNop(),
		version: "dev",
	}
}

// WithConfig replaces the whole configuration.
// Options applied after it still override individual fields.
func WithConfig(cfg Config) Option {
	return func(o *options) error {
		o.config = cfg
		return nil
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithVersion sets the version reported by GET / and telemetry resources.
func WithVersion(version string) Option {
	return func(o *options) error {
		o.version = version
		return nil
	}
}

// WithHTTPAddr sets the listen address.
//
// Example: bandeira.WithHTTPAddr("127.0.0.1:0")
func WithHTTPAddr(addr string) Option {
	return func(o *options) error {
		if addr == "" {
			return fmt.Errorf("http address cannot be empty")
		}
		o.config.HTTPAddr = addr
		return nil
	}
}

// WithMemoryStore keeps flags in process memory. Flags are lost on exit.
func WithMemoryStore() Option {
	return func(o *options) error {
		o.config.Store.Backend = StoreMemory
		o.config.Store.Path = ""
		return nil
	}
}

// WithDiskStore keeps one JSON file per flag under dir.
func WithDiskStore(dir string) Option {
	return func(o *options) error {
		o.config.Store.Backend = StoreDisk
		o.config.Store.Path = dir
		return nil
	}
}

// WithBoltStore keeps flags in a bbolt database file.
func WithBoltStore(path string) Option {
	return func(o *options) error {
		o.config.Store.Backend = StoreBolt
		o.config.Store.Path = path
		return nil
	}
}

// WithRedisCache caches flags in Redis.
func WithRedisCache(addr, password string, db int) Option {
	return func(o *options) error {
		o.config.Cache.Backend = CacheRedis
		o.config.Cache.RedisAddr = addr
		o.config.Cache.RedisPassword = password
		o.config.Cache.RedisDB = db
		return nil
	}
}

// WithMemoryCache caches flags in process memory.
func WithMemoryCache() Option {
	return func(o *options) error {
		o.config.Cache.Backend = CacheMemory
		return nil
	}
}

// WithoutCache sends every read to the store.
func WithoutCache() Option {
	return func(o *options) error {
		o.config.Cache.Backend = CacheNone
		return nil
	}
}

// WithCacheTTL sets the TTL of cached flags.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) error {
		if ttl <= 0 {
			return fmt.Errorf("cache ttl must be positive")
		}
		o.config.Cache.TTL = ttl
		return nil
	}
}

// WithCircuitBreaker configures the breaker in front of the cache.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(o *options) error {
		o.config.Cache.BreakerThreshold = threshold
		o.config.Cache.BreakerTimeout = timeout
		return nil
	}
}

// WithWebhookSecret enables HMAC-SHA256 validation of webhook requests.
func WithWebhookSecret(secret string) Option {
	return func(o *options) error {
		o.config.WebhookSecret = secret
		return nil
	}
}

// WithTelemetry turns OpenTelemetry on or off.
func WithTelemetry(enabled bool) Option {
	return func(o *options) error {
		o.config.Telemetry.Enabled = enabled
		return nil
	}
}

// WithSDKOptions passes options to the telemetry SDK, such as span exporters.
func WithSDKOptions(opts ...telemetry.SDKOption) Option {
	return func(o *options) error {
		o.sdkOptions = append(o.sdkOptions, opts...)
		return nil
	}
}
