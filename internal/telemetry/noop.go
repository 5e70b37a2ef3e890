package telemetry

import (
	"context"
	"time"
)

// NoOpProvider is a telemetry provider that does nothing.
// It is the default when telemetry is disabled.
type NoOpProvider struct{}

// NewNoOp creates a new no-op telemetry provider
func NewNoOp() *NoOpProvider {
	return &NoOpProvider{}
}

func (n *NoOpProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return ctx, NoOpSpan{}
}

func (n *NoOpProvider) RecordCacheHit(ctx context.Context, flagName string) {}

func (n *NoOpProvider) RecordCacheMiss(ctx context.Context, flagName string) {}

func (n *NoOpProvider) RecordCacheError(ctx context.Context, op string) {}

func (n *NoOpProvider) RecordStoreError(ctx context.Context, op string) {}

func (n *NoOpProvider) RecordEvaluation(ctx context.Context, flagName, strategy string, enabled bool, duration time.Duration) {
}

func (n *NoOpProvider) RecordCircuitState(ctx context.Context, state string) {}

func (n *NoOpProvider) Shutdown(ctx context.Context) error { return nil }

// NoOpSpan is a span that does nothing
type NoOpSpan struct{}

func (NoOpSpan) End()                                     {}
func (NoOpSpan) SetAttributes(attrs ...Attribute)         {}
func (NoOpSpan) RecordError(err error)                    {}
func (NoOpSpan) AddEvent(name string, attrs ...Attribute) {}
