package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts mono float32 samples between sample rates. A session
// whose resampler is nil simply skips conversion: transcription proceeds on
// the original-rate samples with degraded quality rather than failing.
type Resampler interface {
	// Resample converts samples recorded at srcRate Hz to dstRate Hz.
	// srcRate == dstRate returns the input unchanged.
	Resample(samples []float32, srcRate, dstRate int) ([]float32, error)
}

// SoxrResampler implements Resampler with the pure-Go soxr-style resampling
// library. It is stateless across calls; every Resample builds a fresh
// converter for the rate pair, which is cheap next to model inference.
type SoxrResampler struct{}

// Compile-time interface check.
var _ Resampler = (*SoxrResampler)(nil)

// NewSoxrResampler returns a ready Resampler.
func NewSoxrResampler() *SoxrResampler {
	return &SoxrResampler{}
}

// Resample implements Resampler.
func (*SoxrResampler) Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate == dstRate || len(samples) == 0 {
		return samples, nil
	}
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", srcRate, dstRate)
	}

	conv, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resample: create converter: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}

	want := int(math.Round(float64(len(samples)) * float64(dstRate) / float64(srcRate)))
	output, err := drainConverter(conv, input, want)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", srcRate, dstRate, err)
	}

	out := make([]float32, len(output))
	for i, s := range output {
		out[i] = float32(s)
	}
	return out, nil
}

// converter is the part of the resampling library one-shot conversion needs.
type converter interface {
	Process(input []float64) ([]float64, error)
}

// padSamples is one block of silence pushed per drain iteration.
const padSamples = 256

// drainConverter runs input through conv and then feeds silence until want
// output samples have been released. Converters hold the last few samples in
// their filter latency window, so a single Process call would clip the tail
// of the utterance. Output is truncated to want; padding is bounded so a
// converter that stops emitting cannot loop forever.
func drainConverter(conv converter, input []float64, want int) ([]float64, error) {
	output, err := conv.Process(input)
	if err != nil {
		return nil, err
	}

	pad := make([]float64, padSamples)
	for fed := 0; len(output) < want && fed < len(input)+8*padSamples; fed += padSamples {
		more, err := conv.Process(pad)
		if err != nil {
			return nil, err
		}
		output = append(output, more...)
	}
	if len(output) > want {
		output = output[:want]
	}
	return output, nil
}
