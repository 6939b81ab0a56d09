package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/tripwise/tripwise/internal/telemetry"

// ProviderMetrics records outbound provider calls and the caches in front
// of them. A nil *ProviderMetrics records nothing.
type ProviderMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	lookups  metric.Int64Counter
}

// NewProviderMetrics registers the provider instruments on the global meter.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(instrumentationName)

	duration, errDuration := meter.Float64Histogram("provider.request.duration",
		metric.WithDescription("Duration of provider requests"),
		metric.WithUnit("s"))
	requests, errRequests := meter.Int64Counter("provider.request.total",
		metric.WithDescription("Provider requests by outcome"),
		metric.WithUnit("{request}"))
	lookups, errLookups := meter.Int64Counter("provider.cache.lookups",
		metric.WithDescription("Provider cache lookups, split by cache.hit"),
		metric.WithUnit("{lookup}"))

	if err := errors.Join(errDuration, errRequests, errLookups); err != nil {
		return nil, err
	}
	return &ProviderMetrics{duration: duration, requests: requests, lookups: lookups}, nil
}

func providerAttrs(provider, operation string, extra ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(append([]attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}, extra...)...)
}

// RecordRequest records one provider call. It uses a background context so
// calls abandoned by a cancelled request are still counted.
func (m *ProviderMetrics) RecordRequest(provider, operation string, took time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := providerAttrs(provider, operation, attribute.Bool("error", err != nil))
	m.duration.Record(context.Background(), took.Seconds(), attrs)
	m.requests.Add(context.Background(), 1, attrs)
}

// RecordCacheLookup records whether a cached provider answer was found.
func (m *ProviderMetrics) RecordCacheLookup(provider, operation string, hit bool) {
	if m == nil {
		return
	}
	m.lookups.Add(context.Background(), 1, providerAttrs(provider, operation, attribute.Bool("cache.hit", hit)))
}

// StartSpan starts an internal span on the global tracer.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
