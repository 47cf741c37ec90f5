// Package capability defines the backend capability interfaces consumed by the
// voicegate session layer, together with the static descriptor types advertised
// to clients in response to a describe event.
//
// A capability is an externally provided transcription (ASR) or synthesis (TTS)
// function that the gateway invokes but does not implement. Concrete providers
// live in subpackages (whispercpp, openaispeech) and in mock for tests.
//
// Implementations must be safe for concurrent use: after construction a single
// provider instance is shared by every connected session.
package capability

import "context"

// Transcriber is the ASR capability: it turns a complete utterance of
// normalised mono audio into text.
type Transcriber interface {
	// Transcribe converts samples (float32 PCM in [-1, 1], mono) recorded at
	// sampleRate Hz into text. language is a BCP-47 hint and may be empty for
	// auto-detection. The call blocks for the full inference duration and may
	// take seconds; callers must not invoke it from a connection's event loop.
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error)
}

// Synthesizer is the TTS capability: it turns text into a stream of raw
// PCM16 mono audio fragments.
type Synthesizer interface {
	// Synthesize starts speech synthesis for text using the named voice at
	// the given speed multiplier (1.0 = normal). The returned stream produces
	// audio incrementally so the caller can begin forwarding before
	// generation completes. Each call returns a fresh, independent stream.
	Synthesize(ctx context.Context, text, voice string, speed float64) (AudioStream, error)

	// SampleRate returns the fixed output sample rate in Hz. It must be
	// known before any audio exists, because the gateway announces the
	// stream format to clients ahead of the first synthesized byte.
	SampleRate() int
}

// AudioStream is a lazy sequence of PCM16 byte fragments produced by a
// Synthesizer. Fragments have arbitrary sizes; callers reframe them as needed.
type AudioStream interface {
	// Next returns the next audio fragment. It returns io.EOF when the stream
	// is exhausted and any other error when synthesis fails mid-stream.
	// After a non-nil error the stream must not be read again.
	Next() ([]byte, error)

	// Close releases resources held by the stream. It is safe to call Close
	// after Next returned an error, and more than once.
	Close() error
}
