// Package session drives one client connection through the framed event
// protocol: it decodes inbound events, tracks the per-connection state
// machine, runs backend calls off the event loop and writes response events
// back in order.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/voicegate/internal/audio"
	"github.com/MrWong99/voicegate/internal/backend"
	"github.com/MrWong99/voicegate/internal/observe"
	"github.com/MrWong99/voicegate/internal/protocol"
	"github.com/MrWong99/voicegate/internal/transcriptlog"
	"github.com/MrWong99/voicegate/pkg/capability"
)

// State is the per-session protocol state.
type State int

const (
	// StateIdle accepts Describe, Transcribe and Synthesize events.
	StateIdle State = iota
	// StateCollecting accumulates AudioChunk payloads for a transcription.
	StateCollecting
	// StateStreaming forwards synthesized audio to the client.
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config carries the shared pieces a session needs. All sessions of one
// server share the same Config value.
type Config struct {
	// ASR resolves the transcription backend. May be nil when the server
	// runs TTS-only.
	ASR *backend.Handle
	// TTS resolves the synthesis backend. May be nil when the server runs
	// ASR-only.
	TTS *backend.Handle

	// Info is the static service descriptor returned for Describe events.
	Info capability.Info

	// TargetRate is the sample rate transcription input is normalized to.
	TargetRate int
	// ChunkSamples is the outbound audio chunk size in samples.
	ChunkSamples int
	// Resampler converts between sample rates. When nil, audio at a
	// non-target rate is passed through unchanged and a warning is logged.
	Resampler audio.Resampler

	// DefaultLanguage is used when a Transcribe event carries none.
	DefaultLanguage string
	// DefaultVoice is used when a Synthesize event carries none.
	DefaultVoice string

	// Metrics may be nil, e.g. in tests.
	Metrics *observe.Metrics
	// Log is the optional transcript audit log. A nil value disables it.
	Log *transcriptlog.Postgres
}

// Session is the state machine for a single client connection. It is not
// safe for concurrent use; Run is its only entry point.
type Session struct {
	id     string
	cfg    Config
	logger *slog.Logger

	state    State
	buf      *audio.FrameBuffer
	language string

	w io.Writer
}

// New creates a session with a fresh ID.
func New(cfg Config) *Session {
	if cfg.TargetRate <= 0 {
		cfg.TargetRate = 16000
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		cfg:    cfg,
		logger: slog.Default().With("session", id),
		state:  StateIdle,
		buf:    audio.NewFrameBuffer(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Run decodes events from rw until the client disconnects, dispatching each
// one in arrival order. It returns nil on a clean disconnect and an error
// when the stream is malformed or a response cannot be written; in both
// cases the caller closes the connection.
func (s *Session) Run(ctx context.Context, rw io.ReadWriter) error {
	s.w = rw
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
		defer s.cfg.Metrics.ActiveSessions.Add(ctx, -1)
	}
	s.logger.Info("session started")

	dec := protocol.NewDecoder(rw)
	for {
		ev, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("session ended")
				return nil
			}
			s.logger.Error("closing session", "error", err)
			return err
		}
		if err := s.handle(ctx, ev); err != nil {
			s.logger.Error("closing session", "error", err)
			return err
		}
	}
}

// handle dispatches one inbound event. A returned error means the transport
// is no longer usable; backend failures never surface here.
func (s *Session) handle(ctx context.Context, ev protocol.Event) error {
	s.countEvent(ctx, ev)
	switch ev := ev.(type) {
	case protocol.Describe:
		return s.writeEvent(protocol.Info{Info: s.cfg.Info})
	case protocol.Transcribe:
		s.buf.Reset()
		s.language = ev.Language
		if s.language == "" {
			s.language = s.cfg.DefaultLanguage
		}
		s.state = StateCollecting
		return nil
	case protocol.AudioChunk:
		if s.state != StateCollecting {
			s.logger.Debug("ignoring audio chunk outside transcription", "state", s.state.String())
			return nil
		}
		s.buf.Append(ev.Audio, audio.Format{Rate: ev.Rate, Width: ev.Width, Channels: ev.Channels})
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.AudioBytesIn.Add(ctx, int64(len(ev.Audio)))
		}
		return nil
	case protocol.AudioStop:
		if s.state != StateCollecting {
			s.logger.Debug("ignoring audio stop outside transcription", "state", s.state.String())
			return nil
		}
		return s.finishTranscription(ctx)
	case protocol.Synthesize:
		if s.state != StateIdle {
			s.logger.Debug("ignoring synthesize request", "state", s.state.String())
			return nil
		}
		return s.synthesize(ctx, ev)
	default:
		// Clients may echo server-side events; drop them without failing
		// the connection.
		s.logger.Debug("ignoring event", "type", string(ev.Kind()))
		return nil
	}
}

// ── transcription ──

// finishTranscription normalizes the collected audio, runs the ASR backend
// off the event loop and answers with exactly one Transcript event. Backend
// failures produce an empty transcript so the client always gets closure.
func (s *Session) finishTranscription(ctx context.Context) error {
	s.state = StateIdle
	samples16, format := s.buf.Finalize()

	floats := audio.ToFloat32(samples16)
	floats = audio.DownmixMono(floats, format.Channels)

	var audioSeconds float64
	if format.Rate > 0 {
		audioSeconds = float64(len(floats)) / float64(format.Rate)
	}

	if format.Rate > 0 && format.Rate != s.cfg.TargetRate {
		if s.cfg.Resampler == nil {
			s.logger.Warn("no resampler configured, passing audio through",
				"rate", format.Rate, "target_rate", s.cfg.TargetRate)
		} else {
			resampled, err := s.cfg.Resampler.Resample(floats, format.Rate, s.cfg.TargetRate)
			if err != nil {
				s.logger.Error("resampling failed, passing audio through", "error", err)
			} else {
				floats = resampled
			}
		}
	}

	start := time.Now()
	text, err := s.transcribe(ctx, floats)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Error("transcription failed", "error", err, "elapsed", elapsed)
		s.recordBackendError(ctx, "transcribe")
	} else {
		s.logger.Info("transcription done",
			"chars", len(text), "audio_seconds", audioSeconds, "elapsed", elapsed,
			"language", s.language)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.TranscribeDuration.Record(ctx, elapsed.Seconds())
		}
	}
	s.cfg.Log.RecordTranscript(ctx, transcriptlog.TranscriptEntry{
		SessionID:    s.id,
		Language:     s.language,
		Text:         text,
		AudioSeconds: audioSeconds,
		Elapsed:      elapsed,
		Failed:       err != nil,
	})

	return s.writeEvent(protocol.Transcript{Text: text})
}

// transcribe resolves the ASR backend and runs the call on its own
// goroutine. The call is never cancelled mid-flight; on disconnect the
// result is simply discarded by the caller.
func (s *Session) transcribe(ctx context.Context, samples []float32) (string, error) {
	if s.cfg.ASR == nil {
		return "", errors.New("no transcription backend configured")
	}
	caps, err := s.cfg.ASR.Get(ctx)
	if err != nil {
		return "", err
	}
	if caps.Transcriber == nil {
		return "", errors.New("backend has no transcription capability")
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := caps.Transcriber.Transcribe(ctx, samples, s.cfg.TargetRate, s.language)
		ch <- result{text, err}
	}()
	res := <-ch
	return res.text, res.err
}

// ── synthesis ──

// synthesize streams TTS audio for one request. The AudioStart/AudioStop
// pair is always emitted, even when the backend fails before or during
// streaming, so clients can rely on the framing to delimit each response.
func (s *Session) synthesize(ctx context.Context, req protocol.Synthesize) error {
	s.state = StateStreaming
	defer func() { s.state = StateIdle }()

	voice := req.Voice.Name
	if voice == "" {
		voice = s.cfg.DefaultVoice
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	synth, resolveErr := s.resolveSynthesizer(ctx)
	rate := s.cfg.TargetRate
	if synth != nil {
		rate = synth.SampleRate()
	}
	start := time.Now()

	if err := s.writeEvent(protocol.AudioStart{Rate: rate, Width: audio.BytesPerSample, Channels: 1}); err != nil {
		return err
	}

	var (
		totalBytes  int
		backendErr  = resolveErr
		firstReport bool
	)
	if synth != nil {
		reframer := audio.NewReframer(s.cfg.ChunkSamples)
		frags, errCh := s.pullAudio(ctx, synth, req.Text, voice, speed)
		var writeErr error
		for frag := range frags {
			if writeErr != nil {
				// The producer blocks on an unbuffered send until the
				// fragment channel is drained; keep consuming so it can
				// finish and close its stream, discarding the audio.
				continue
			}
			if !firstReport {
				firstReport = true
				ttfb := time.Since(start)
				s.logger.Debug("first synthesized audio", "elapsed", ttfb)
				if s.cfg.Metrics != nil {
					s.cfg.Metrics.TimeToFirstAudio.Record(ctx, ttfb.Seconds())
				}
			}
			for _, chunk := range reframer.Push(frag) {
				if err := s.writeChunk(ctx, rate, chunk); err != nil {
					writeErr = err
					break
				}
				totalBytes += len(chunk)
			}
		}
		backendErr = <-errCh
		if writeErr != nil {
			return writeErr
		}
		// A failed stream is truncated as-is; only a clean end flushes the
		// carried remainder.
		if backendErr == nil {
			if tail := reframer.Flush(); len(tail) > 0 {
				if err := s.writeChunk(ctx, rate, tail); err != nil {
					return err
				}
				totalBytes += len(tail)
			}
		}
	}

	if err := s.writeEvent(protocol.AudioStop{}); err != nil {
		return err
	}

	elapsed := time.Since(start)
	if backendErr != nil {
		s.logger.Error("synthesis failed", "error", backendErr, "elapsed", elapsed, "bytes", totalBytes)
		s.recordBackendError(ctx, "synthesize")
	} else {
		audioSeconds := float64(totalBytes) / float64(audio.BytesPerSample) / float64(rate)
		rtf := 0.0
		if audioSeconds > 0 {
			rtf = elapsed.Seconds() / audioSeconds
		}
		s.logger.Info("synthesis done",
			"chars", len(req.Text), "voice", voice, "bytes", totalBytes,
			"audio_seconds", audioSeconds, "elapsed", elapsed, "rtf", rtf)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.SynthesizeDuration.Record(ctx, elapsed.Seconds())
		}
	}
	s.cfg.Log.RecordSynthesis(ctx, transcriptlog.SynthesisEntry{
		SessionID:  s.id,
		Voice:      voice,
		Speed:      speed,
		Text:       req.Text,
		AudioBytes: totalBytes,
		Elapsed:    elapsed,
		Failed:     backendErr != nil,
	})
	return nil
}

func (s *Session) resolveSynthesizer(ctx context.Context) (capability.Synthesizer, error) {
	if s.cfg.TTS == nil {
		return nil, errors.New("no synthesis backend configured")
	}
	caps, err := s.cfg.TTS.Get(ctx)
	if err != nil {
		return nil, err
	}
	if caps.Synthesizer == nil {
		return nil, errors.New("backend has no synthesis capability")
	}
	return caps.Synthesizer, nil
}

// pullAudio consumes the backend stream on a worker goroutine so slow
// generation never blocks inside the synthesizer. The fragment channel is
// closed when the stream ends; the error channel then yields nil or the
// failure that cut it short.
func (s *Session) pullAudio(ctx context.Context, synth capability.Synthesizer, text, voice string, speed float64) (<-chan []byte, <-chan error) {
	frags := make(chan []byte)
	errCh := make(chan error, 1)
	go func() {
		defer close(frags)
		stream, err := synth.Synthesize(ctx, text, voice, speed)
		if err != nil {
			errCh <- err
			return
		}
		defer stream.Close()
		for {
			frag, err := stream.Next()
			if len(frag) > 0 {
				frags <- frag
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					errCh <- nil
				} else {
					errCh <- err
				}
				return
			}
		}
	}()
	return frags, errCh
}

// ── plumbing ──

func (s *Session) writeChunk(ctx context.Context, rate int, chunk []byte) error {
	err := s.writeEvent(protocol.AudioChunk{
		Rate:     rate,
		Width:    audio.BytesPerSample,
		Channels: 1,
		Audio:    chunk,
	})
	if err == nil && s.cfg.Metrics != nil {
		s.cfg.Metrics.AudioBytesOut.Add(ctx, int64(len(chunk)))
	}
	return err
}

func (s *Session) writeEvent(ev protocol.Event) error {
	frame, err := protocol.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Kind(), err)
	}
	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("write %s: %w", ev.Kind(), err)
	}
	return nil
}

func (s *Session) countEvent(ctx context.Context, ev protocol.Event) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.EventsReceived.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", string(ev.Kind()))))
}

func (s *Session) recordBackendError(ctx context.Context, op string) {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.BackendErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)))
}
