// Package bandeira serves boolean feature flags with percentage rollouts.
// Flags live in an authoritative store with a cache in front of it, and
// evaluation buckets users deterministically by flag name and user id.
package bandeira

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/cache"
	"github.com/OrlandoBitencourt/bandeira/internal/flagstore"
	"github.com/OrlandoBitencourt/bandeira/internal/server"
	"github.com/OrlandoBitencourt/bandeira/internal/service"
	"github.com/OrlandoBitencourt/bandeira/internal/storage"
	"github.com/OrlandoBitencourt/bandeira/internal/telemetry"
	"github.com/OrlandoBitencourt/bandeira/pkg/circuit"
)

// App owns every process-wide handle: store, cache, telemetry and the HTTP
// server. Build it with New, run it with Start and release it with Stop.
type App struct {
	config  Config
	logger  *zap.Logger
	version string

	store     storage.Store
	cache     cache.Cache
	telemetry telemetry.Provider
	flags     *flagstore.Store
	service   *service.Service
	handler   *server.Server
	http      *http.Server

	mu       sync.Mutex
	listener net.Listener
	serveErr chan error
	stopped  bool
}

// New creates an App with the given options. The store is opened here; the
// HTTP listener is not bound until Start.
//
// Example:
//
//	app, err := bandeira.New(ctx,
//	    bandeira.WithBoltStore("/var/lib/bandeira/flags.db"),
//	    bandeira.WithRedisCache("localhost:6379", "", 0),
//	)
func New(ctx context.Context, opts ...Option) (*App, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		config:  o.config,
		logger:  o.logger,
		version: o.version,
	}

	var sdk *telemetry.SDK
	if a.config.Telemetry.Enabled {
		var err error
		sdk, err = telemetry.Setup(a.config.Telemetry.ServiceName, a.version, o.sdkOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to set up telemetry: %w", err)
		}
		a.telemetry = sdk
	} else {
		a.telemetry = telemetry.NewNoOp()
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, multierr.Append(err, a.telemetry.Shutdown(ctx))
	}
	a.store = store
	a.cache = a.openCache(ctx)

	a.flags, err = flagstore.New(
		flagstore.WithStorage(a.store),
		flagstore.WithCache(a.cache),
		flagstore.WithLogger(a.logger.Named("flagstore")),
		flagstore.WithTelemetry(a.telemetry),
		flagstore.WithConfig(flagstore.Config{
			CacheTTL:     a.config.Cache.TTL,
			CacheTimeout: a.config.Cache.Timeout,
			StoreTimeout: a.config.Store.Timeout,
			KeyPrefix:    a.config.Cache.KeyPrefix,
		}),
	)
	if err != nil {
		return nil, multierr.Append(err, a.close(ctx))
	}

	a.service = service.New(a.flags,
		service.WithLogger(a.logger.Named("service")),
		service.WithTelemetry(a.telemetry),
	)

	serverOpts := []server.Option{
		server.WithLogger(a.logger.Named("http")),
		server.WithTelemetry(a.telemetry),
		server.WithWebhookSecret(a.config.WebhookSecret),
		server.WithServiceInfo("bandeira", a.version),
	}
	if sdk != nil {
		serverOpts = append(serverOpts, server.WithMetrics(sdk))
	}
	a.handler = server.New(a.service, a.flags, serverOpts...)

	a.http = &http.Server{
		Addr:              a.config.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, error) {
	switch a.config.Store.Backend {
	case StoreDisk:
		return storage.NewDiskStore(a.config.Store.Path, a.logger.Named("storage"))
	case StoreBolt:
		s := storage.NewBoltStore(a.config.Store.Path)
		s.WithLogger(a.logger.Named("storage"))
		if err := s.Open(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

// openCache never fails: an unreachable cache only costs latency, so it is
// logged and used anyway behind the breaker.
func (a *App) openCache(ctx context.Context) cache.Cache {
	var inner cache.Cache

	switch a.config.Cache.Backend {
	case CacheNone:
		return cache.NewNoopCache()
	case CacheRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:                 []string{a.config.Cache.RedisAddr},
			Password:              a.config.Cache.RedisPassword,
			DB:                    a.config.Cache.RedisDB,
			ContextTimeoutEnabled: true,
		})
		rc := cache.NewRedisCache(client, a.config.Cache.KeyPrefix)

		pctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := rc.Ping(pctx); err != nil {
			a.logger.Warn("Redis unreachable, serving from store until it recovers",
				zap.String("addr", a.config.Cache.RedisAddr),
				zap.Error(err),
			)
		}
		inner = rc
	default:
		mc, err := cache.NewMemoryCache(cache.DefaultMemoryConfig())
		if err != nil {
			a.logger.Warn("Memory cache unavailable, running without cache", zap.Error(err))
			return cache.NewNoopCache()
		}
		inner = mc
	}

	return cache.NewGuardedCache(inner, circuit.Config{
		MaxFailures: a.config.Cache.BreakerThreshold,
		Timeout:     a.config.Cache.BreakerTimeout,
		OnStateChange: func(from, to circuit.State) {
			a.logger.Warn("Cache circuit state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			a.telemetry.RecordCircuitState(context.Background(), to.String())
		},
	})
}

// Start binds the listener and serves in the background.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return errors.New("bandeira: app is stopped")
	}
	if a.listener != nil {
		return ErrAlreadyStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.HTTPAddr, err)
	}
	a.listener = ln
	a.serveErr = make(chan error, 1)

	go func() {
		err := a.http.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		a.serveErr <- err
	}()

	a.logger.Info("HTTP server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("store", a.config.Store.Backend),
		zap.String("cache", a.config.Cache.Backend),
		zap.String("version", a.version),
	)
	return nil
}

// Stop drains in-flight requests, then closes the cache, the store and
// telemetry. It is safe to call more than once.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return nil
	}
	a.stopped = true

	var err error
	if a.listener != nil {
		sctx, cancel := context.WithTimeout(ctx, a.config.ShutdownTimeout)
		err = multierr.Append(err, a.http.Shutdown(sctx))
		cancel()
		err = multierr.Append(err, <-a.serveErr)
	}

	err = multierr.Append(err, a.close(ctx))
	a.logger.Info("Stopped", zap.Error(err))
	return err
}

func (a *App) close(ctx context.Context) error {
	var err error
	if a.cache != nil {
		err = multierr.Append(err, a.cache.Close())
	}
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	return multierr.Append(err, a.telemetry.Shutdown(ctx))
}

// Addr returns the bound listen address, or the configured one before Start.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.config.HTTPAddr
}

// Handler returns the HTTP handler, for embedding in another server.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Service returns the flag service.
func (a *App) Service() *service.Service {
	return a.service
}

// Config returns the active configuration.
func (a *App) Config() Config {
	return a.config
}
