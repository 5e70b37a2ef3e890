package flagstore

import (
	"fmt"
	"time"

	"github.com/OrlandoBitencourt/bandeira/internal/cache"
)

// Config holds cache-aside configuration
type Config struct {
	// CacheTTL is applied to every cache write
	CacheTTL time.Duration

	// CacheTimeout bounds each cache call
	CacheTimeout time.Duration

	// StoreTimeout bounds each authoritative store call
	StoreTimeout time.Duration

	// KeyPrefix namespaces cache keys
	KeyPrefix string
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		CacheTTL:     300 * time.Second,
		CacheTimeout: 100 * time.Millisecond,
		StoreTimeout: 2 * time.Second,
		KeyPrefix:    cache.DefaultKeyPrefix,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	if c.CacheTimeout <= 0 {
		return fmt.Errorf("cache timeout must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("key prefix must not be empty")
	}
	return nil
}
