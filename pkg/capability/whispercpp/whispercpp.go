// Package whispercpp runs speech-to-text locally through the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voicegate/pkg/capability"
)

// Compile-time assertion that Transcriber satisfies capability.Transcriber.
var _ capability.Transcriber = (*Transcriber)(nil)

// Transcriber transcribes PCM audio with a locally loaded whisper.cpp model.
// The model is loaded once and shared by all calls; each inference creates
// its own whisper context, so calls may run concurrently.
type Transcriber struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the BCP-47 language code used when a transcription
// request carries none (e.g. "en", "de"). Whisper auto-detects when empty.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// New creates a Transcriber that loads the whisper.cpp model from the given
// file path. The caller must call Close when the transcriber is no longer
// needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	t := &Transcriber{model: model}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Transcribe implements capability.Transcriber. Audio must already be mono
// float32 PCM at whisper's native sample rate.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	if sampleRate != whisperlib.SampleRate {
		return "", fmt.Errorf("whisper: requires %d Hz input, got %d Hz", whisperlib.SampleRate, sampleRate)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	lang := language
	if lang == "" {
		lang = t.language
	}
	if lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the whisper model. Must be called when the transcriber is
// no longer needed.
func (t *Transcriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}
