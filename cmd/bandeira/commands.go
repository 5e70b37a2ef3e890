package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OrlandoBitencourt/bandeira"
)

type serveFlags struct {
	config   bandeira.Config
	logLevel string
	dev      bool
}

func (f *serveFlags) opts() []opt {
	d := bandeira.DefaultConfig()
	c := &f.config
	return []opt{
		{&c.HTTPAddr, "http-addr", d.HTTPAddr, "HTTP listen address"},
		{&c.ShutdownTimeout, "shutdown-timeout", d.ShutdownTimeout, "grace period for in-flight requests"},
		{&c.Store.Backend, "store-backend", d.Store.Backend, "flag store: memory, disk or bolt"},
		{&c.Store.Path, "store-path", d.Store.Path, "directory (disk) or database file (bolt)"},
		{&c.Store.Timeout, "store-timeout", d.Store.Timeout, "timeout for each store call"},
		{&c.Cache.Backend, "cache-backend", d.Cache.Backend, "cache: redis, memory or none"},
		{&c.Cache.RedisAddr, "redis-addr", d.Cache.RedisAddr, "redis address"},
		{&c.Cache.RedisPassword, "redis-password", d.Cache.RedisPassword, "redis password"},
		{&c.Cache.RedisDB, "redis-db", d.Cache.RedisDB, "redis database number"},
		{&c.Cache.KeyPrefix, "cache-key-prefix", d.Cache.KeyPrefix, "prefix of cache keys"},
		{&c.Cache.TTL, "cache-ttl", d.Cache.TTL, "ttl of cached flags"},
		{&c.Cache.Timeout, "cache-timeout", d.Cache.Timeout, "timeout for each cache call"},
		{&c.Cache.BreakerThreshold, "cache-breaker-threshold", d.Cache.BreakerThreshold, "consecutive cache failures before the cache is skipped"},
		{&c.Cache.BreakerTimeout, "cache-breaker-timeout", d.Cache.BreakerTimeout, "how long the cache is skipped after tripping"},
		{&c.WebhookSecret, "webhook-secret", d.WebhookSecret, "HMAC-SHA256 secret for /webhook; empty disables verification"},
		{&c.Telemetry.Enabled, "telemetry", d.Telemetry.Enabled, "collect OpenTelemetry metrics and traces"},
		{&c.Telemetry.ServiceName, "service-name", d.Telemetry.ServiceName, "telemetry service name"},
		{&f.logLevel, "log-level", "info", "debug, info, warn or error"},
		{&f.dev, "dev", false, "human readable development logging"},
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bandeira",
		Short:         "Feature flag server with percentage rollouts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand(runServer), newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bandeira %s (commit %s)\n", version, commit)
		},
	}
}

func newServeCommand(run func(ctx context.Context, f *serveFlags) error) *cobra.Command {
	v := newViper()
	f := &serveFlags{}
	opts := f.opts()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loadOptions(v, opts)
			return run(cmd.Context(), f)
		},
	}
	bindOptions(v, cmd, opts)
	return cmd
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func runServer(ctx context.Context, f *serveFlags) error {
	logger, err := newLogger(f.logLevel, f.dev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bandeira.New(ctx,
		bandeira.WithConfig(f.config),
		bandeira.WithLogger(logger),
		bandeira.WithVersion(version),
	)
	if err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return multierr.Append(err, app.Stop(context.Background()))
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	return app.Stop(context.Background())
}
