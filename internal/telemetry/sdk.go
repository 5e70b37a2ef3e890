package telemetry

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"
)

// SDK owns in-process OpenTelemetry providers. Metrics are pulled through a
// manual reader so the admin API can report them without an exporter.
type SDK struct {
	*OTelProvider

	reader         *sdkmetric.ManualReader
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// SDKOption configures Setup
type SDKOption func(*sdkConfig)

type sdkConfig struct {
	spanProcessors []sdktrace.SpanProcessor
}

// WithSpanProcessor registers a span processor, such as an exporter pipeline
func WithSpanProcessor(sp sdktrace.SpanProcessor) SDKOption {
	return func(c *sdkConfig) {
		c.spanProcessors = append(c.spanProcessors, sp)
	}
}

// Setup builds meter and tracer providers tagged with serviceName
func Setup(serviceName, version string, opts ...SDKOption) (*SDK, error) {
	cfg := &sdkConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, sp := range cfg.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	provider, err := NewOTelWithProviders(tp, mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry provider: %w", err)
	}

	return &SDK{
		OTelProvider:   provider,
		reader:         reader,
		meterProvider:  mp,
		tracerProvider: tp,
	}, nil
}

// Snapshot collects current metric values, summed across attribute sets.
// Histograms report their observation count.
func (s *SDK) Snapshot(ctx context.Context) (map[string]float64, error) {
	var rm metricdata.ResourceMetrics
	if err := s.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += float64(dp.Value)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = float64(dp.Value)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += float64(dp.Count)
				}
			}
		}
	}
	return out, nil
}

// MetricNames returns the sorted names present in a snapshot
func MetricNames(snapshot map[string]float64) []string {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown flushes and stops both providers
func (s *SDK) Shutdown(ctx context.Context) error {
	return multierr.Combine(
		s.tracerProvider.Shutdown(ctx),
		s.meterProvider.Shutdown(ctx),
	)
}
