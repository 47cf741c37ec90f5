package observe_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/voicegate/internal/observe"
)

func TestNewMetrics_CreatesAllInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.TranscribeDuration == nil || m.SynthesizeDuration == nil ||
		m.TimeToFirstAudio == nil || m.EventsReceived == nil ||
		m.BackendErrors == nil || m.AudioBytesIn == nil ||
		m.AudioBytesOut == nil || m.ActiveSessions == nil {
		t.Fatal("all instruments must be initialised")
	}
}

func TestMetrics_RecordedValuesAreCollected(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.ActiveSessions.Add(ctx, 1)
	m.TranscribeDuration.Record(ctx, 0.42)
	m.AudioBytesIn.Add(ctx, 32000)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			found[met.Name] = true
		}
	}
	for _, name := range []string{
		"voicegate.sessions.active",
		"voicegate.transcribe.duration",
		"voicegate.audio.bytes_in",
	} {
		if !found[name] {
			t.Errorf("metric %q not collected; got %v", name, found)
		}
	}
}
