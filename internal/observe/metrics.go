// Package observe provides application-wide observability primitives for
// VoxPaste: OpenTelemetry metrics, tracing helpers, and structured logging.
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

// meterName is the instrumentation scope name used for all VoxPaste metrics.
const meterName = "github.com/voxpaste/voxpaste"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// PipelineDuration tracks end-to-end recording-to-paste latency.
	PipelineDuration metric.Float64Histogram

	// TranscriptionDuration tracks per-provider transcription latency.
	// Use with attribute.String("provider", ...).
	TranscriptionDuration metric.Float64Histogram

	// PolishDuration tracks LLM polish and fusion latency.
	// Use with attribute.String("operation", "polish"|"fusion").
	PolishDuration metric.Float64Histogram

	// --- Counters ---

	// PipelineRuns counts completed pipeline invocations. Use with
	// attribute.String("outcome", "success"|"rejected"|"error").
	PipelineRuns metric.Int64Counter

	// ProviderRequests counts transcription provider calls. Use with
	// attribute.String("provider", ...), attribute.String("status", ...).
	ProviderRequests metric.Int64Counter

	// Pastes counts paste attempts. Use with
	// attribute.String("status", "simulated"|"clipboard_fallback").
	Pastes metric.Int64Counter

	// CorrectionsLearned counts dictionary entries learned from the
	// correction-detection window.
	CorrectionsLearned metric.Int64Counter

	// --- Gauges ---

	// ActiveRecordings tracks whether a recording is currently in flight
	// (0 or 1 in practice, an UpDownCounter keeps it honest under races).
	ActiveRecordings metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// a pipeline dominated by network transcription calls.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PipelineDuration, err = m.Float64Histogram("voxpaste.pipeline.duration",
		metric.WithDescription("End-to-end recording-to-paste latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("voxpaste.transcription.duration",
		metric.WithDescription("Per-provider transcription latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PolishDuration, err = m.Float64Histogram("voxpaste.polish.duration",
		metric.WithDescription("LLM polish and fusion latency by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.PipelineRuns, err = m.Int64Counter("voxpaste.pipeline.runs",
		metric.WithDescription("Completed pipeline invocations by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("voxpaste.provider.requests",
		metric.WithDescription("Transcription provider calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.Pastes, err = m.Int64Counter("voxpaste.pastes",
		metric.WithDescription("Paste attempts by delivery status."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionsLearned, err = m.Int64Counter("voxpaste.corrections.learned",
		metric.WithDescription("Dictionary corrections learned from post-paste edits."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRecordings, err = m.Int64UpDownCounter("voxpaste.active_recordings",
		metric.WithDescription("Recordings currently being captured."),
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

// RecordCorrectionLearned counts a dictionary entry learned from a
// post-paste edit.
func (m *Metrics) RecordCorrectionLearned(ctx context.Context) {
	m.CorrectionsLearned.Add(ctx, 1)
}

// AddActiveRecordings moves the active-recording gauge by delta.
func (m *Metrics) AddActiveRecordings(ctx context.Context, delta int64) {
	m.ActiveRecordings.Add(ctx, delta)
}

// RecordPipelineRun records a completed pipeline invocation.
func (m *Metrics) RecordPipelineRun(ctx context.Context, outcome string, seconds float64) {
	m.PipelineRuns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	m.PipelineDuration.Record(ctx, seconds)
}

// RecordProviderRequest records a transcription provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string, seconds float64) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	m.TranscriptionDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordPolish records an LLM polish or fusion call.
func (m *Metrics) RecordPolish(ctx context.Context, operation string, seconds float64) {
	m.PolishDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("operation", operation)),
	)
}

// RecordPaste records a paste attempt outcome.
func (m *Metrics) RecordPaste(ctx context.Context, status string) {
	m.Pastes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
