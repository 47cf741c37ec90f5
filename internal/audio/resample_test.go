package audio_test

import (
	"testing"

	"github.com/MrWong99/voicegate/internal/audio"
)

func TestSoxrResampler_SameRatePassthrough(t *testing.T) {
	r := audio.NewSoxrResampler()
	in := []float32{0.1, -0.2, 0.3}
	out, err := r.Resample(in, 16000, 16000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d samples, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestSoxrResampler_EmptyInput(t *testing.T) {
	r := audio.NewSoxrResampler()
	out, err := r.Resample(nil, 48000, 16000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d samples, want 0", len(out))
	}
}

func TestSoxrResampler_InvalidRates(t *testing.T) {
	r := audio.NewSoxrResampler()
	if _, err := r.Resample([]float32{0}, 0, 16000); err == nil {
		t.Error("expected error for zero source rate")
	}
	if _, err := r.Resample([]float32{0}, 48000, -1); err == nil {
		t.Error("expected error for negative target rate")
	}
}
