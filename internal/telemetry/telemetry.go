package telemetry

import (
	"context"
	"time"
)

// Provider defines the interface for telemetry providers
type Provider interface {
	// Tracer operations
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// Cache-aside metrics
	RecordCacheHit(ctx context.Context, flagName string)
	RecordCacheMiss(ctx context.Context, flagName string)
	RecordCacheError(ctx context.Context, op string)
	RecordStoreError(ctx context.Context, op string)

	// Evaluation metrics
	RecordEvaluation(ctx context.Context, flagName, strategy string, enabled bool, duration time.Duration)

	// RecordCircuitState records the cache circuit breaker state
	RecordCircuitState(ctx context.Context, state string)

	// Lifecycle
	Shutdown(ctx context.Context) error
}

// Span represents a trace span
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	RecordError(err error)
	AddEvent(name string, attrs ...Attribute)
}

// SpanOption configures span creation
type SpanOption func(*SpanConfig)

// SpanConfig holds span configuration
type SpanConfig struct {
	Attributes []Attribute
}

// Attribute represents a key-value attribute
type Attribute struct {
	Key   string
	Value interface{}
}

// WithAttributes adds attributes to a span
func WithAttributes(attrs ...Attribute) SpanOption {
	return func(c *SpanConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration is recorded in milliseconds
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}
