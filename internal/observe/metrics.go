// Package observe provides voicegate's observability primitives: OpenTelemetry
// metric instruments and the SDK provider setup with a Prometheus exporter
// bridge, so metrics are scraped from the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voicegate metrics.
const meterName = "github.com/MrWong99/voicegate"

// Metrics holds all OpenTelemetry metric instruments for the gateway. All
// fields are safe for concurrent use — the underlying OTel types handle their
// own synchronisation.
type Metrics struct {
	// TranscribeDuration tracks wall-clock ASR inference latency.
	TranscribeDuration metric.Float64Histogram

	// SynthesizeDuration tracks wall-clock TTS latency from request to
	// stream exhaustion.
	SynthesizeDuration metric.Float64Histogram

	// TimeToFirstAudio tracks the delay between a synthesize request and the
	// first audio fragment from the backend.
	TimeToFirstAudio metric.Float64Histogram

	// EventsReceived counts inbound protocol events. Use with attribute:
	//   attribute.String("type", ...)
	EventsReceived metric.Int64Counter

	// BackendErrors counts recovered backend invocation failures. Use with
	// attribute: attribute.String("op", "transcribe"|"synthesize")
	BackendErrors metric.Int64Counter

	// AudioBytesIn counts PCM payload bytes accumulated from clients.
	AudioBytesIn metric.Int64Counter

	// AudioBytesOut counts PCM payload bytes streamed to clients.
	AudioBytesOut metric.Int64Counter

	// ActiveSessions tracks the number of live client connections.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// model-inference latencies, which range from tens of milliseconds for a
// short local model to tens of seconds for long utterances.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("voicegate.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesizeDuration, err = m.Float64Histogram("voicegate.synthesize.duration",
		metric.WithDescription("Latency of text-to-speech synthesis, request to last byte."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TimeToFirstAudio, err = m.Float64Histogram("voicegate.synthesize.first_audio",
		metric.WithDescription("Delay from synthesize request to first audio fragment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EventsReceived, err = m.Int64Counter("voicegate.events.received",
		metric.WithDescription("Inbound protocol events by type."),
	); err != nil {
		return nil, err
	}
	if met.BackendErrors, err = m.Int64Counter("voicegate.backend.errors",
		metric.WithDescription("Recovered backend invocation failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesIn, err = m.Int64Counter("voicegate.audio.bytes_in",
		metric.WithDescription("PCM payload bytes received from clients."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesOut, err = m.Int64Counter("voicegate.audio.bytes_out",
		metric.WithDescription("PCM payload bytes streamed to clients."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voicegate.sessions.active",
		metric.WithDescription("Currently connected client sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics instance bound to the
// global OTel meter provider. [InitProvider] should run before the first
// call; instruments created earlier would bind to the no-op global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		// Instrument names above are valid constants, so creation cannot
		// fail against the global provider.
		defaultMetrics, _ = NewMetrics(otel.GetMeterProvider())
	})
	return defaultMetrics
}
