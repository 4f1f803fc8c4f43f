package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry holds the metric instruments for the finder. Every recorder is
// nil-safe so a disabled instance can be passed around freely.
type Telemetry struct {
	meterProvider metric.MeterProvider
	meter         metric.Meter
	exporter      *prometheus.Exporter

	searchesTotal      metric.Int64Counter
	searchDuration     metric.Float64Histogram
	dispatchesTotal    metric.Int64Counter
	notificationsTotal metric.Int64Counter
	watcherErrors      metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool
	ServiceName string
}

// New creates a new telemetry instance backed by a prometheus exporter.
func New(cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		meterProvider: meterProvider,
		meter:         otel.Meter(cfg.ServiceName),
		exporter:      exporter,
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

// RecordSearch records one feed search with its outcome and duration.
func (t *Telemetry) RecordSearch(outcome string, duration time.Duration) {
	if t.searchesTotal != nil {
		t.searchesTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("outcome", outcome)),
		)
	}

	if t.searchDuration != nil {
		t.searchDuration.Record(context.Background(), duration.Seconds(),
			metric.WithAttributes(attribute.String("outcome", outcome)),
		)
	}
}

// RecordDispatch records one backend add attempt.
func (t *Telemetry) RecordDispatch(outcome string) {
	if t.dispatchesTotal != nil {
		t.dispatchesTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("outcome", outcome)),
		)
	}
}

// RecordNotification records one completion notification sent to a chat.
func (t *Telemetry) RecordNotification() {
	if t.notificationsTotal != nil {
		t.notificationsTotal.Add(context.Background(), 1)
	}
}

// RecordWatcherError records a failed watcher poll cycle.
func (t *Telemetry) RecordWatcherError() {
	if t.watcherErrors != nil {
		t.watcherErrors.Add(context.Background(), 1)
	}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if t.exporter == nil {
		return http.NotFoundHandler()
	}

	return promhttp.Handler()
}

// Shutdown gracefully shuts down the telemetry system.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		return mp.Shutdown(ctx)
	}

	return nil
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	t.searchesTotal, err = t.meter.Int64Counter(
		"searches_total",
		metric.WithDescription("Total number of feed searches"),
	)
	if err != nil {
		return err
	}

	t.searchDuration, err = t.meter.Float64Histogram(
		"search_duration_seconds",
		metric.WithDescription("Feed search duration in seconds"),
	)
	if err != nil {
		return err
	}

	t.dispatchesTotal, err = t.meter.Int64Counter(
		"dispatches_total",
		metric.WithDescription("Total number of transfers handed to the backend"),
	)
	if err != nil {
		return err
	}

	t.notificationsTotal, err = t.meter.Int64Counter(
		"notifications_total",
		metric.WithDescription("Total number of completion notifications sent"),
	)
	if err != nil {
		return err
	}

	t.watcherErrors, err = t.meter.Int64Counter(
		"watcher_errors_total",
		metric.WithDescription("Total number of failed completion poll operations"),
	)

	return err
}
