// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, structured logging, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/verbalis/verbalis"

// Metrics holds all OpenTelemetry metric instruments for the translation
// pipeline. All fields are safe for concurrent use — the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranslationDuration tracks per-segment translation latency.
	TranslationDuration metric.Float64Histogram

	// CommitDuration tracks end-to-end segment commit latency (glossary,
	// translation, durable log append).
	CommitDuration metric.Float64Histogram

	// --- Counters ---

	// FramesCaptured counts audio frames enqueued by the capture source.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts frames evicted by the bounded queue's
	// drop-oldest policy.
	FramesDropped metric.Int64Counter

	// RecognitionResults counts recognition events. Use with attribute:
	//   attribute.String("kind", "interim"|"final")
	RecognitionResults metric.Int64Counter

	// SegmentsCommitted counts segments durably written to the session log.
	SegmentsCommitted metric.Int64Counter

	// TranslationFailures counts per-segment translation failures that were
	// replaced with the error marker.
	TranslationFailures metric.Int64Counter

	// ArchiveFailures counts non-fatal segment archive insert failures.
	ArchiveFailures metric.Int64Counter

	// --- Gauges ---

	// QueueDepth records the current frame queue depth.
	QueueDepth metric.Int64Gauge

	// ActiveSessions tracks the number of live translation sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// per-segment translation and commit latencies.
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
	if met.TranslationDuration, err = m.Float64Histogram("verbalis.translation.duration",
		metric.WithDescription("Latency of per-segment translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CommitDuration, err = m.Float64Histogram("verbalis.segment.commit.duration",
		metric.WithDescription("End-to-end segment commit latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("verbalis.audio.frames.captured",
		metric.WithDescription("Total audio frames enqueued by the capture source."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("verbalis.audio.frames.dropped",
		metric.WithDescription("Total frames evicted by the bounded queue."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionResults, err = m.Int64Counter("verbalis.recognition.results",
		metric.WithDescription("Total recognition events by kind (interim, final)."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsCommitted, err = m.Int64Counter("verbalis.segments.committed",
		metric.WithDescription("Total segments durably written to the session log."),
	); err != nil {
		return nil, err
	}
	if met.TranslationFailures, err = m.Int64Counter("verbalis.translation.failures",
		metric.WithDescription("Total per-segment translation failures."),
	); err != nil {
		return nil, err
	}
	if met.ArchiveFailures, err = m.Int64Counter("verbalis.archive.failures",
		metric.WithDescription("Total non-fatal archive insert failures."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.QueueDepth, err = m.Int64Gauge("verbalis.queue.depth",
		metric.WithDescription("Current frame queue depth."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("verbalis.active_sessions",
		metric.WithDescription("Number of live translation sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("verbalis.http.request.duration",
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

// RecordRecognition records one recognition event of the given kind
// ("interim" or "final").
func (m *Metrics) RecordRecognition(ctx context.Context, kind string) {
	m.RecognitionResults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordQueue records queue counters: new enqueued and dropped frames since
// the previous call plus the current depth.
func (m *Metrics) RecordQueue(ctx context.Context, enqueuedDelta, droppedDelta int64, depth int) {
	if enqueuedDelta > 0 {
		m.FramesCaptured.Add(ctx, enqueuedDelta)
	}
	if droppedDelta > 0 {
		m.FramesDropped.Add(ctx, droppedDelta)
	}
	m.QueueDepth.Record(ctx, int64(depth))
}

// RecordSegment records one committed segment and its stage latencies in
// seconds. translationSeconds is ignored when negative (translation disabled).
func (m *Metrics) RecordSegment(ctx context.Context, commitSeconds, translationSeconds float64) {
	m.SegmentsCommitted.Add(ctx, 1)
	m.CommitDuration.Record(ctx, commitSeconds)
	if translationSeconds >= 0 {
		m.TranslationDuration.Record(ctx, translationSeconds)
	}
}
