package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

/* Recorder provides OpenTelemetry metrics for the capture/replay pipeline,
 * exported in Prometheus format
 * A nil Recorder is valid and records nothing, so components can take it
 * as an optional dependency
 */
type Recorder struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	webhooksReceived metric.Int64Counter
	webhooksRejected metric.Int64Counter
	replayAttempts   metric.Int64Counter
	replaysCompleted metric.Int64Counter
	analysisCache    metric.Int64Counter
	analysisFallback metric.Int64Counter
}

// NewRecorder creates a metrics recorder backed by a Prometheus exporter
func NewRecorder() (*Recorder, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(
		"tymbug",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	r := &Recorder{
		meterProvider: meterProvider,
		meter:         meter,
	}

	if err := r.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return r, nil
}

// registerInstruments creates all metric instruments
func (r *Recorder) registerInstruments() error {
	var err error

	r.webhooksReceived, err = r.meter.Int64Counter(
		"webhook.received",
		metric.WithDescription("Webhooks captured, by provider"),
		metric.WithUnit("{webhooks}"),
	)
	if err != nil {
		return fmt.Errorf("creating received counter: %w", err)
	}

	r.webhooksRejected, err = r.meter.Int64Counter(
		"webhook.rejected",
		metric.WithDescription("Webhooks rejected at validation, by provider"),
		metric.WithUnit("{webhooks}"),
	)
	if err != nil {
		return fmt.Errorf("creating rejected counter: %w", err)
	}

	r.replayAttempts, err = r.meter.Int64Counter(
		"replay.attempts",
		metric.WithDescription("Outbound replay attempts, including retries"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return fmt.Errorf("creating replay attempts counter: %w", err)
	}

	r.replaysCompleted, err = r.meter.Int64Counter(
		"replay.completed",
		metric.WithDescription("Replays that reached a terminal outcome"),
		metric.WithUnit("{replays}"),
	)
	if err != nil {
		return fmt.Errorf("creating replays completed counter: %w", err)
	}

	r.analysisCache, err = r.meter.Int64Counter(
		"analysis.cache",
		metric.WithDescription("Analysis cache lookups, by outcome"),
		metric.WithUnit("{lookups}"),
	)
	if err != nil {
		return fmt.Errorf("creating analysis cache counter: %w", err)
	}

	r.analysisFallback, err = r.meter.Int64Counter(
		"analysis.fallback",
		metric.WithDescription("Analyses that degraded to the fallback prompt or empty result"),
		metric.WithUnit("{analyses}"),
	)
	if err != nil {
		return fmt.Errorf("creating analysis fallback counter: %w", err)
	}

	return nil
}

// WebhookReceived counts a captured webhook
func (r *Recorder) WebhookReceived(ctx context.Context, provider string) {
	if r == nil {
		return
	}
	r.webhooksReceived.Add(ctx, 1, metric.WithAttributes(
		attribute.String("webhook.provider", provider),
	))
}

// WebhookRejected counts a webhook rejected during validation
func (r *Recorder) WebhookRejected(ctx context.Context, provider string) {
	if r == nil {
		return
	}
	r.webhooksRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("webhook.provider", provider),
	))
}

// ReplayAttempt counts one outbound replay attempt
func (r *Recorder) ReplayAttempt(ctx context.Context) {
	if r == nil {
		return
	}
	r.replayAttempts.Add(ctx, 1)
}

// ReplayCompleted counts a replay reaching a terminal outcome
func (r *Recorder) ReplayCompleted(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.replaysCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("replay.outcome", outcome),
	))
}

// AnalysisCacheLookup counts a cache hit or miss
func (r *Recorder) AnalysisCacheLookup(ctx context.Context, hit bool) {
	if r == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.analysisCache.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.outcome", outcome),
	))
}

// AnalysisFallback counts a degraded analysis
func (r *Recorder) AnalysisFallback(ctx context.Context) {
	if r == nil {
		return
	}
	r.analysisFallback.Add(ctx, 1)
}

// Handler serves Prometheus-formatted metrics
func (r *Recorder) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil || r.meterProvider == nil {
		return nil
	}
	return r.meterProvider.Shutdown(ctx)
}
