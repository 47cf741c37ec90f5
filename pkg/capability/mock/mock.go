// Package mock provides in-memory capability implementations for tests.
package mock

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/MrWong99/voicegate/pkg/capability"
)

// Compile-time interface checks.
var (
	_ capability.Transcriber = (*Transcriber)(nil)
	_ capability.Synthesizer = (*Synthesizer)(nil)
	_ capability.AudioStream = (*Stream)(nil)
)

// Transcriber is a scriptable capability.Transcriber. The zero value returns
// empty text for every call.
type Transcriber struct {
	// TranscribeFunc, when non-nil, handles every Transcribe call.
	TranscribeFunc func(ctx context.Context, samples []float32, sampleRate int, language string) (string, error)

	// Calls counts Transcribe invocations.
	Calls atomic.Int64
}

// Transcribe implements capability.Transcriber.
func (m *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	m.Calls.Add(1)
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, samples, sampleRate, language)
	}
	return "", nil
}

// Synthesizer is a scriptable capability.Synthesizer. The zero value produces
// an empty stream for every call.
type Synthesizer struct {
	// SynthesizeFunc, when non-nil, handles every Synthesize call.
	SynthesizeFunc func(ctx context.Context, text, voice string, speed float64) (capability.AudioStream, error)

	// Fragments, when SynthesizeFunc is nil, is returned one element per
	// Next call, followed by Err (or io.EOF when Err is nil).
	Fragments [][]byte

	// Err terminates the default stream after Fragments are exhausted.
	// Leave nil for a clean end of stream.
	Err error

	// Rate is the advertised output sample rate. Zero defaults to 24000.
	Rate int

	// Calls counts Synthesize invocations.
	Calls atomic.Int64
}

// SampleRate implements capability.Synthesizer.
func (m *Synthesizer) SampleRate() int {
	if m.Rate == 0 {
		return 24000
	}
	return m.Rate
}

// Synthesize implements capability.Synthesizer.
func (m *Synthesizer) Synthesize(ctx context.Context, text, voice string, speed float64) (capability.AudioStream, error) {
	m.Calls.Add(1)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voice, speed)
	}
	return &Stream{Fragments: m.Fragments, Err: m.Err}, nil
}

// Stream plays back a fixed fragment list and then reports Err or io.EOF.
type Stream struct {
	Fragments [][]byte
	Err       error

	pos    int
	closed bool
}

// Next implements capability.AudioStream.
func (s *Stream) Next() ([]byte, error) {
	if s.closed {
		return nil, io.EOF
	}
	if s.pos < len(s.Fragments) {
		f := s.Fragments[s.pos]
		s.pos++
		return f, nil
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return nil, io.EOF
}

// Close implements capability.AudioStream.
func (s *Stream) Close() error {
	s.closed = true
	return nil
}
