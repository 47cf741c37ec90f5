// Package audio provides the PCM plumbing for voicegate sessions: an
// accumulating frame buffer for inbound utterances, a reframer that slices
// backend output into fixed-size protocol chunks, sample conversions, and an
// optional resampler.
//
// All audio is 16-bit signed little-endian PCM. Other sample widths are an
// extension point, not supported here.
package audio

import "log/slog"

// BytesPerSample is the size of one PCM16 sample.
const BytesPerSample = 2

// Format describes a PCM audio stream.
type Format struct {
	// Rate is the sample rate in Hz.
	Rate int

	// Width is the bytes per sample; always 2 for PCM16.
	Width int

	// Channels is the number of interleaved channels.
	Channels int
}

// FrameBuffer accumulates the raw PCM bytes of one utterance across
// sequential audio-chunk events. The format is captured from the first chunk
// after a Reset and stays fixed for the remainder of the utterance: a later
// chunk declaring a different format is logged as an inconsistency but the
// recorded format wins. Treating the first chunk as authoritative mirrors the
// wire contract, where later chunks may omit format fields entirely; it does
// mean a client that genuinely switches rates mid-utterance gets its audio
// interpreted at the original rate.
//
// FrameBuffer is not safe for concurrent use; each session owns exactly one.
type FrameBuffer struct {
	buf       []byte
	format    Format
	hasFormat bool
}

// NewFrameBuffer returns an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Reset clears the accumulated audio and the recorded format. It is called
// when a new transcribe exchange begins.
func (b *FrameBuffer) Reset() {
	b.buf = b.buf[:0]
	b.format = Format{}
	b.hasFormat = false
}

// Append adds a chunk of PCM bytes. The first Append after a Reset records
// format; later calls compare against it and log a warning on mismatch
// without rejecting the data.
func (b *FrameBuffer) Append(p []byte, format Format) {
	if !b.hasFormat {
		b.format = format
		b.hasFormat = true
		slog.Debug("audio format recorded",
			"rate", format.Rate,
			"width", format.Width,
			"channels", format.Channels,
		)
	} else if format != (Format{}) && format != b.format {
		slog.Warn("audio chunk format differs from first chunk; keeping first",
			"recorded_rate", b.format.Rate,
			"recorded_channels", b.format.Channels,
			"chunk_rate", format.Rate,
			"chunk_channels", format.Channels,
		)
	}
	b.buf = append(b.buf, p...)
}

// Len returns the number of accumulated bytes.
func (b *FrameBuffer) Len() int { return len(b.buf) }

// Format returns the recorded format and whether one has been captured.
func (b *FrameBuffer) Format() (Format, bool) { return b.format, b.hasFormat }

// Finalize converts the accumulated bytes into int16 samples and returns them
// with the recorded format. A dangling odd byte at the end is dropped. The
// buffer contents remain valid until the next Reset.
func (b *FrameBuffer) Finalize() ([]int16, Format) {
	if len(b.buf)%BytesPerSample != 0 {
		slog.Debug("dropping incomplete trailing sample byte", "bytes", len(b.buf))
	}
	return BytesToInt16(b.buf), b.format
}
