package bandeira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OrlandoBitencourt/bandeira/internal/evaluator"
	"github.com/OrlandoBitencourt/bandeira/internal/service"
)

func startApp(t *testing.T, opts ...Option) *App {
	t.Helper()

	opts = append([]Option{WithHTTPAddr("127.0.0.1:0")}, opts...)
	app, err := New(testContext(t), opts...)
	require.NoError(t, err)
	require.NoError(t, app.Start(testContext(t)))
	t.Cleanup(func() { _ = app.Stop(context.Background()) })
	return app
}

func call(t *testing.T, app *App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequestWithContext(testContext(t), method, "http://"+app.Addr()+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func TestApp_BoltAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	dbPath := filepath.Join(t.TempDir(), "flags.db")

	app := startApp(t,
		WithBoltStore(dbPath),
		WithRedisCache(mr.Addr(), "", 0),
		WithVersion("1.2.3"),
	)

	code, _ := call(t, app, http.MethodPost, "/flags", `{"name":"checkout_v2","enabled":true,"rolloutPercentage":25}`)
	require.Equal(t, http.StatusCreated, code)

	// written through to the cache with the configured ttl
	assert.True(t, mr.Exists("flag:checkout_v2"))
	assert.Equal(t, 300*time.Second, mr.TTL("flag:checkout_v2"))

	for i := 0; i < 10; i++ {
		user := fmt.Sprintf("user-%d", i)
		code, body := call(t, app, http.MethodGet, "/flags/checkout_v2/evaluate?userId="+user, "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, evaluator.Bucket("checkout_v2", user) < 25, body["enabled"])
	}

	code, body := call(t, app, http.MethodPatch, "/flags/checkout_v2", `{"rolloutPercentage":50}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["version"])

	code, body = call(t, app, http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, code)
	cacheStats := body["cache"].(map[string]interface{})
	assert.Equal(t, "redis", cacheStats["backend"])
	assert.Equal(t, "closed", cacheStats["breaker"].(map[string]interface{})["state"])

	code, body = call(t, app, http.MethodGet, "/admin/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(10), body["bandeira.evaluations"])

	code, body = call(t, app, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1.2.3", body["version"])

	require.NoError(t, app.Stop(testContext(t)))

	// the bolt file outlives the process, the cache does not matter
	mr.FlushAll()
	reopened := startApp(t, WithBoltStore(dbPath), WithoutCache())

	code, body = call(t, reopened, http.MethodGet, "/flags/checkout_v2", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["version"])
	assert.Equal(t, float64(50), body["rolloutPercentage"])
}

func TestApp_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	core, logs := observer.New(zapcore.InfoLevel)
	app := startApp(t,
		WithRedisCache(addr, "", 0),
		WithCircuitBreaker(2, time.Minute),
		WithLogger(zap.New(core)),
	)
	assert.Equal(t, 1, logs.FilterMessage("Redis unreachable, serving from store until it recovers").Len())

	// every operation still succeeds from the store
	code, _ := call(t, app, http.MethodPost, "/flags", `{"name":"a","enabled":true,"rolloutPercentage":100}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := call(t, app, http.MethodGet, "/flags/a/evaluate?userId=u1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["enabled"])

	code, body = call(t, app, http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, code)
	breaker := body["cache"].(map[string]interface{})["breaker"].(map[string]interface{})
	assert.Equal(t, "open", breaker["state"])

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Cache circuit state changed").Len() > 0
	}, time.Second, 10*time.Millisecond)

	code, _ = call(t, app, http.MethodDelete, "/flags/a", "")
	assert.Equal(t, http.StatusNoContent, code)
}

func TestApp_DiskStore(t *testing.T) {
	dir := t.TempDir()
	app := startApp(t, WithDiskStore(dir), WithTelemetry(false))

	code, _ := call(t, app, http.MethodPost, "/flags", `{"name":"a","enabled":false,"rolloutPercentage":0}`)
	require.Equal(t, http.StatusCreated, code)

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// no telemetry, no metrics route
	code, _ = call(t, app, http.MethodGet, "/admin/metrics", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestApp_Lifecycle(t *testing.T) {
	app, err := New(testContext(t), WithHTTPAddr("127.0.0.1:0"))
	require.NoError(t, err)

	// the handler works without a listener
	w := httptest.NewRecorder()
	app.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, app.Start(testContext(t)))
	assert.ErrorIs(t, app.Start(testContext(t)), ErrAlreadyStarted)
	assert.NotEqual(t, "127.0.0.1:0", app.Addr())

	require.NoError(t, app.Stop(testContext(t)))
	require.NoError(t, app.Stop(testContext(t)))
	assert.Error(t, app.Start(testContext(t)))
}

func TestApp_StopWithoutStart(t *testing.T) {
	app, err := New(testContext(t), WithBoltStore(filepath.Join(t.TempDir(), "flags.db")))
	require.NoError(t, err)
	assert.NoError(t, app.Stop(testContext(t)))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(testContext(t), WithDiskStore(""))
	assert.True(t, IsConfigError(err))

	_, err = New(testContext(t), WithCacheTTL(-time.Second))
	assert.Error(t, err)

	// a directory is not a bolt file
	_, err = New(testContext(t), WithBoltStore(t.TempDir()), WithTelemetry(false))
	assert.Error(t, err)
}

func TestApp_Service(t *testing.T) {
	app, err := New(testContext(t), WithTelemetry(false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(context.Background()) })

	_, err = app.Service().Create(testContext(t), service.CreateRequest{Name: "direct"})
	require.NoError(t, err)

	flag, err := app.Service().Get(testContext(t), "direct")
	require.NoError(t, err)
	assert.Equal(t, int64(1), flag.Version)
}

// testContext stands in for testing.T.Context (Go 1.24+): a context that is
// canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
