package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestSDK(t *testing.T) (*SDK, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	sdk, err := Setup("bandeira-test", "dev", WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sdk.Shutdown(context.Background()) })
	return sdk, recorder
}

func TestSetup_ImplementsProvider(t *testing.T) {
	sdk, _ := setupTestSDK(t)

	var p Provider = sdk
	assert.NotNil(t, p)
}

func TestSDK_Snapshot(t *testing.T) {
	sdk, _ := setupTestSDK(t)
	ctx := context.Background()

	sdk.RecordCacheHit(ctx, "a")
	sdk.RecordCacheHit(ctx, "b")
	sdk.RecordCacheMiss(ctx, "a")
	sdk.RecordCacheError(ctx, "get")
	sdk.RecordStoreError(ctx, "put")
	sdk.RecordEvaluation(ctx, "a", "percentage", true, 2*time.Millisecond)
	sdk.RecordEvaluation(ctx, "a", "percentage", false, time.Millisecond)
	sdk.RecordCircuitState(ctx, "open")

	snap, err := sdk.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2.0, snap["bandeira.cache.hits"])
	assert.Equal(t, 1.0, snap["bandeira.cache.misses"])
	assert.Equal(t, 1.0, snap["bandeira.cache.errors"])
	assert.Equal(t, 1.0, snap["bandeira.store.errors"])
	assert.Equal(t, 2.0, snap["bandeira.evaluations"])
	assert.Equal(t, 2.0, snap["bandeira.evaluation.duration"])
	assert.Equal(t, 1.0, snap["bandeira.cache.circuit.state"])

	names := MetricNames(snap)
	assert.Contains(t, names, "bandeira.cache.hits")
	assert.IsIncreasing(t, names)
}

func TestCircuitStateValue(t *testing.T) {
	tests := []struct {
		state    string
		expected int64
	}{
		{"closed", 0},
		{"open", 1},
		{"half-open", 2},
		{"unknown", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.expected, circuitStateValue(tt.state))
		})
	}
}

func TestOTelProvider_Spans(t *testing.T) {
	sdk, recorder := setupTestSDK(t)
	ctx := context.Background()

	newCtx, span := sdk.StartSpan(ctx, "flagstore.Read", WithAttributes(
		String("flag.name", "checkout_v2"),
		Int("attempt", 1),
		Int64("version", 3),
		Bool("cached", false),
		Duration("elapsed", 5*time.Millisecond),
	))
	assert.NotEqual(t, ctx, newCtx)

	span.AddEvent("cache.miss", String("key", "flag:checkout_v2"))
	span.SetAttributes(Bool("found", true))
	span.RecordError(errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)

	s := ended[0]
	assert.Equal(t, "flagstore.Read", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Contains(t, s.Attributes(), attribute.String("flag.name", "checkout_v2"))
	assert.Contains(t, s.Attributes(), attribute.Int64("elapsed", 5))
	assert.Contains(t, s.Attributes(), attribute.Bool("found", true))
	require.NotEmpty(t, s.Events())
	assert.Equal(t, "cache.miss", s.Events()[0].Name)
}

func TestConvertAttribute(t *testing.T) {
	tests := []struct {
		name string
		attr Attribute
		want attribute.Type
	}{
		{"string", String("key", "value"), attribute.STRING},
		{"int", Int("key", 42), attribute.INT64},
		{"int64", Int64("key", 123), attribute.INT64},
		{"bool", Bool("key", true), attribute.BOOL},
		{"float64", Attribute{Key: "key", Value: 3.14}, attribute.FLOAT64},
		{"unknown", Attribute{Key: "key", Value: struct{}{}}, attribute.STRING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := convertAttribute(tt.attr)
			assert.Equal(t, "key", string(kv.Key))
			assert.Equal(t, tt.want, kv.Value.Type())
		})
	}
}

func TestNewOTel_GlobalProviders(t *testing.T) {
	p, err := NewOTel()
	require.NoError(t, err)

	ctx := context.Background()
	// global providers are no-ops unless configured
	p.RecordCacheHit(ctx, "a")
	_, span := p.StartSpan(ctx, "noop")
	span.End()
	assert.NoError(t, p.Shutdown(ctx))
}

func TestNoOpProvider(t *testing.T) {
	var p Provider = NewNoOp()
	ctx := context.Background()

	newCtx, span := p.StartSpan(ctx, "x", WithAttributes(String("a", "b")))
	assert.Equal(t, ctx, newCtx)
	span.SetAttributes(Int("n", 1))
	span.AddEvent("e")
	span.RecordError(errors.New("x"))
	span.End()

	p.RecordCacheHit(ctx, "a")
	p.RecordCacheMiss(ctx, "a")
	p.RecordCacheError(ctx, "get")
	p.RecordStoreError(ctx, "get")
	p.RecordEvaluation(ctx, "a", "disabled", false, time.Millisecond)
	p.RecordCircuitState(ctx, "open")
	assert.NoError(t, p.Shutdown(ctx))
}
