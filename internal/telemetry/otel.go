package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/OrlandoBitencourt/bandeira"

// OTelProvider implements Provider using OpenTelemetry
type OTelProvider struct {
	tracer trace.Tracer
	meter  metric.Meter

	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
	cacheErrors        metric.Int64Counter
	storeErrors        metric.Int64Counter
	evaluations        metric.Int64Counter
	evaluationDuration metric.Float64Histogram
	circuitState       metric.Int64ObservableGauge

	currentCircuitState atomic.Int64
}

// NewOTel creates a provider on the global tracer and meter providers
func NewOTel() (*OTelProvider, error) {
	return NewOTelWithProviders(otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewOTelWithProviders creates a provider on explicit tracer and meter providers
func NewOTelWithProviders(tp trace.TracerProvider, mp metric.MeterProvider) (*OTelProvider, error) {
	provider := &OTelProvider{
		tracer: tp.Tracer(instrumentationName),
		meter:  mp.Meter(instrumentationName),
	}

	if err := provider.initMetrics(); err != nil {
		return nil, err
	}
	return provider, nil
}

func (o *OTelProvider) initMetrics() error {
	var err error

	o.cacheHits, err = o.meter.Int64Counter(
		"bandeira.cache.hits",
		metric.WithDescription("Number of flag reads served from the cache"),
	)
	if err != nil {
		return err
	}

	o.cacheMisses, err = o.meter.Int64Counter(
		"bandeira.cache.misses",
		metric.WithDescription("Number of flag reads that fell through to the store"),
	)
	if err != nil {
		return err
	}

	o.cacheErrors, err = o.meter.Int64Counter(
		"bandeira.cache.errors",
		metric.WithDescription("Number of cache operations that failed and were degraded"),
	)
	if err != nil {
		return err
	}

	o.storeErrors, err = o.meter.Int64Counter(
		"bandeira.store.errors",
		metric.WithDescription("Number of authoritative store operations that failed"),
	)
	if err != nil {
		return err
	}

	o.evaluations, err = o.meter.Int64Counter(
		"bandeira.evaluations",
		metric.WithDescription("Number of flag evaluations"),
	)
	if err != nil {
		return err
	}

	o.evaluationDuration, err = o.meter.Float64Histogram(
		"bandeira.evaluation.duration",
		metric.WithDescription("Duration of flag evaluations including the flag lookup"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.circuitState, err = o.meter.Int64ObservableGauge(
		"bandeira.cache.circuit.state",
		metric.WithDescription("Cache circuit breaker state (0=closed, 1=open, 2=half-open)"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			observer.Observe(o.currentCircuitState.Load())
			return nil
		}),
	)
	return err
}

func circuitStateValue(state string) int64 {
	switch state {
	case "open":
		return 1
	case "half-open":
		return 2
	default:
		return 0
	}
}

// StartSpan creates a new trace span
func (o *OTelProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	config := &SpanConfig{}
	for _, opt := range opts {
		opt(config)
	}

	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(convertAttributes(config.Attributes)...))
	return ctx, &OTelSpan{span: span}
}

func convertAttribute(attr Attribute) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case float64:
		return attribute.Float64(attr.Key, v)
	default:
		return attribute.String(attr.Key, "")
	}
}

func convertAttributes(attrs []Attribute) []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		out[i] = convertAttribute(attr)
	}
	return out
}

func (o *OTelProvider) RecordCacheHit(ctx context.Context, flagName string) {
	o.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("flag.name", flagName)))
}

func (o *OTelProvider) RecordCacheMiss(ctx context.Context, flagName string) {
	o.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("flag.name", flagName)))
}

func (o *OTelProvider) RecordCacheError(ctx context.Context, op string) {
	o.cacheErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (o *OTelProvider) RecordStoreError(ctx context.Context, op string) {
	o.storeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (o *OTelProvider) RecordEvaluation(ctx context.Context, flagName, strategy string, enabled bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("flag.name", flagName),
		attribute.String("strategy", strategy),
		attribute.Bool("enabled", enabled),
	)
	o.evaluations.Add(ctx, 1, attrs)
	o.evaluationDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (o *OTelProvider) RecordCircuitState(ctx context.Context, state string) {
	o.currentCircuitState.Store(circuitStateValue(state))
}

// Shutdown is a no-op; the SDK providers are shut down by their owner
func (o *OTelProvider) Shutdown(ctx context.Context) error {
	return nil
}

// OTelSpan wraps an OpenTelemetry span
type OTelSpan struct {
	span trace.Span
}

func (s *OTelSpan) End() {
	s.span.End()
}

func (s *OTelSpan) SetAttributes(attrs ...Attribute) {
	s.span.SetAttributes(convertAttributes(attrs)...)
}

// RecordError records err and marks the span as failed
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *OTelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(convertAttributes(attrs)...))
}
