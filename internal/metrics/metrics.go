package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests       metric.Int64Counter
	HTTPDuration       metric.Float64Histogram
	AdapterFetches     metric.Int64Counter
	DegradedPlatforms  metric.Int64Counter
	InsightGenerations metric.Int64Counter
	InsightFallbacks   metric.Int64Counter
	CacheHits          metric.Int64Counter
	CacheMisses        metric.Int64Counter
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"sp_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"sp_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.AdapterFetches, err = meter.Int64Counter(
		"sp_adapter_fetches_total",
		metric.WithDescription("Platform adapter fetch attempts by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DegradedPlatforms, err = meter.Int64Counter(
		"sp_degraded_platforms_total",
		metric.WithDescription("Aggregations that lost at least one platform to adapter failure"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.InsightGenerations, err = meter.Int64Counter(
		"sp_insight_generations_total",
		metric.WithDescription("AI insight generations by type"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.InsightFallbacks, err = meter.Int64Counter(
		"sp_insight_fallbacks_total",
		metric.WithDescription("Insight generations that fell back to defaults"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheHits, err = meter.Int64Counter(
		"sp_cache_hits_total",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"sp_cache_misses_total",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordAdapterFetch(ctx context.Context, platform string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.AdapterFetches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordDegradedPlatforms(ctx context.Context, count int) {
	if count > 0 {
		m.DegradedPlatforms.Add(ctx, int64(count))
	}
}

func (m *Metrics) RecordInsightGeneration(ctx context.Context, insightType string, fallback bool) {
	labels := metric.WithAttributes(attribute.String("type", insightType))
	m.InsightGenerations.Add(ctx, 1, labels)
	if fallback {
		m.InsightFallbacks.Add(ctx, 1, labels)
	}
}

func (m *Metrics) RecordCacheHit(ctx context.Context, key string) {
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) RecordCacheMiss(ctx context.Context, key string) {
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}
