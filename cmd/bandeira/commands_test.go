package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/OrlandoBitencourt/bandeira"
)

func resolve(t *testing.T, args ...string) *serveFlags {
	t.Helper()

	var got *serveFlags
	cmd := newServeCommand(func(_ context.Context, f *serveFlags) error {
		got = f
		return nil
	})
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	require.NotNil(t, got)
	return got
}

func TestServe_Defaults(t *testing.T) {
	f := resolve(t)

	assert.Equal(t, bandeira.DefaultConfig(), f.config)
	assert.Equal(t, "info", f.logLevel)
	assert.False(t, f.dev)
}

func TestServe_FlagsAndEnv(t *testing.T) {
	t.Setenv("BANDEIRA_CACHE_BACKEND", "none")
	t.Setenv("BANDEIRA_CACHE_TTL", "1m")
	t.Setenv("BANDEIRA_REDIS_DB", "3")
	t.Setenv("BANDEIRA_TELEMETRY", "false")

	f := resolve(t,
		"--store-backend", "bolt",
		"--store-path", "/var/lib/bandeira/flags.db",
		"--cache-ttl", "2m",
		"--webhook-secret", "s3cret",
		"--dev",
	)

	assert.Equal(t, bandeira.StoreBolt, f.config.Store.Backend)
	assert.Equal(t, "/var/lib/bandeira/flags.db", f.config.Store.Path)
	assert.Equal(t, bandeira.CacheNone, f.config.Cache.Backend)
	assert.Equal(t, 3, f.config.Cache.RedisDB)
	assert.False(t, f.config.Telemetry.Enabled)
	assert.Equal(t, "s3cret", f.config.WebhookSecret)
	assert.True(t, f.dev)

	// the command line wins over the environment
	assert.Equal(t, 2*time.Minute, f.config.Cache.TTL)
}

func TestServe_UnknownFlag(t *testing.T) {
	cmd := newServeCommand(func(context.Context, *serveFlags) error { return nil })
	cmd.SetArgs([]string{"--nope"})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "bandeira dev (commit none)\n", out.String())
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := newLogger(level, false)
		require.NoError(t, err, level)
		assert.True(t, logger.Core().Enabled(zapLevel(t, level)))
	}

	_, err := newLogger("loud", false)
	assert.Error(t, err)

	_, err = newLogger("debug", true)
	assert.NoError(t, err)
}

func TestRunServer(t *testing.T) {
	f := resolve(t, "--http-addr", "127.0.0.1:0", "--log-level", "error")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, f) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunServer_InvalidConfig(t *testing.T) {
	f := resolve(t, "--store-backend", "disk", "--log-level", "error")
	assert.True(t, bandeira.IsConfigError(runServer(context.Background(), f)))
}

func zapLevel(t *testing.T, name string) zapcore.Level {
	t.Helper()
	var lvl zapcore.Level
	require.NoError(t, lvl.UnmarshalText([]byte(name)))
	return lvl
}
