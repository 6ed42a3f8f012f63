// Package observe provides application-wide observability primitives for
// Voxboard: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Voxboard metrics.
const meterName = "github.com/voxboard/voxboard"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// PlaybackDuration tracks audio playback time per segment.
	PlaybackDuration metric.Float64Histogram

	// AnnounceDuration tracks full announcement latency from enqueue to the
	// final segment finishing.
	AnnounceDuration metric.Float64Histogram

	// SymbolLookupDuration tracks symbol search latency.
	SymbolLookupDuration metric.Float64Histogram

	// --- Counters ---

	// Announcements counts narration requests. Use with attributes:
	//   attribute.String("target", ...), attribute.String("status", ...)
	Announcements metric.Int64Counter

	// ScanSteps counts highlight advances across all scan sessions.
	ScanSteps metric.Int64Counter

	// Activations counts item activations. Use with attribute:
	//   attribute.String("kind", ...)
	Activations metric.Int64Counter

	// --- Error counters ---

	// ServiceErrors counts outbound service errors. Use with attribute:
	//   attribute.String("service", ...)
	ServiceErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks announcements waiting in the queue.
	QueueDepth metric.Int64UpDownCounter

	// ActiveScans tracks the number of running scan sessions.
	ActiveScans metric.Int64UpDownCounter

	// CachedSymbols tracks entries held by the symbol cache.
	CachedSymbols metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for narration-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("voxboard.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("voxboard.playback.duration",
		metric.WithDescription("Audio playback time per narrated segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnnounceDuration, err = m.Float64Histogram("voxboard.announce.duration",
		metric.WithDescription("Announcement latency from enqueue to completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SymbolLookupDuration, err = m.Float64Histogram("voxboard.symbol_lookup.duration",
		metric.WithDescription("Latency of symbol search lookups."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Announcements, err = m.Int64Counter("voxboard.announcements",
		metric.WithDescription("Total narration requests by routing target and status."),
	); err != nil {
		return nil, err
	}
	if met.ScanSteps, err = m.Int64Counter("voxboard.scan.steps",
		metric.WithDescription("Total highlight advances across all scan sessions."),
	); err != nil {
		return nil, err
	}
	if met.Activations, err = m.Int64Counter("voxboard.activations",
		metric.WithDescription("Total item activations by item kind."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ServiceErrors, err = m.Int64Counter("voxboard.service.errors",
		metric.WithDescription("Total outbound service errors by service name."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("voxboard.queue.depth",
		metric.WithDescription("Announcements waiting in the queue."),
	); err != nil {
		return nil, err
	}
	if met.ActiveScans, err = m.Int64UpDownCounter("voxboard.active_scans",
		metric.WithDescription("Number of running scan sessions."),
	); err != nil {
		return nil, err
	}
	if met.CachedSymbols, err = m.Int64UpDownCounter("voxboard.cached_symbols",
		metric.WithDescription("Entries held by the symbol cache."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxboard.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAnnouncement is a convenience method that records an announcement
// counter increment with the standard attribute set.
func (m *Metrics) RecordAnnouncement(ctx context.Context, target, status string) {
	m.Announcements.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("target", target),
			attribute.String("status", status),
		),
	)
}

// RecordActivation is a convenience method that records an item activation
// counter increment.
func (m *Metrics) RecordActivation(ctx context.Context, kind string) {
	m.Activations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordServiceError is a convenience method that records an outbound service
// error counter increment.
func (m *Metrics) RecordServiceError(ctx context.Context, service string) {
	m.ServiceErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("service", service)),
	)
}
