// Package openaispeech provides transcription and synthesis backed by any
// OpenAI-compatible speech API, including self-hosted servers such as
// faster-whisper-server and kokoro-fastapi.
package openaispeech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/voicegate/internal/audio"
	"github.com/MrWong99/voicegate/pkg/capability"
)

// Defaults for the hosted OpenAI API. Self-hosted servers usually override
// the models via options.
const (
	DefaultASRModel = oai.AudioModelWhisper1
	DefaultTTSModel = oai.SpeechModelTTS1

	// DefaultSampleRate is the PCM output rate of the speech endpoint.
	DefaultSampleRate = 24000
)

// Ensure Client implements both speech capabilities.
var (
	_ capability.Transcriber = (*Client)(nil)
	_ capability.Synthesizer = (*Client)(nil)
)

// Client talks to one OpenAI-compatible speech server.
type Client struct {
	api        oai.Client
	asrModel   string
	ttsModel   string
	sampleRate int
}

// config holds optional configuration for the client.
type config struct {
	baseURL    string
	asrModel   string
	ttsModel   string
	sampleRate int
	timeout    time.Duration
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL points the client at a self-hosted OpenAI-compatible server,
// e.g. "http://localhost:8880/v1".
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithASRModel overrides the transcription model name.
func WithASRModel(model string) Option {
	return func(c *config) { c.asrModel = model }
}

// WithTTSModel overrides the synthesis model name.
func WithTTSModel(model string) Option {
	return func(c *config) { c.ttsModel = model }
}

// WithSampleRate declares the server's PCM output rate when it differs from
// the OpenAI default of 24 kHz.
func WithSampleRate(rate int) Option {
	return func(c *config) { c.sampleRate = rate }
}

// WithTimeout sets a per-request HTTP timeout. Synthesis responses stream,
// so the timeout covers the whole body read.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a speech client. apiKey may be empty for self-hosted
// servers that skip authentication.
func New(apiKey string, opts ...Option) (*Client, error) {
	cfg := &config{
		asrModel:   DefaultASRModel,
		ttsModel:   DefaultTTSModel,
		sampleRate: DefaultSampleRate,
	}
	for _, o := range opts {
		o(cfg)
	}
	if apiKey == "" && cfg.baseURL == "" {
		return nil, fmt.Errorf("openaispeech: apiKey or baseURL must be set")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Client{
		api:        oai.NewClient(reqOpts...),
		asrModel:   cfg.asrModel,
		ttsModel:   cfg.ttsModel,
		sampleRate: cfg.sampleRate,
	}, nil
}

// Transcribe implements capability.Transcriber. The samples are wrapped in a
// WAV container and uploaded in one request.
func (c *Client) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	wav, err := encodeWAV(audio.FromFloat32(samples), sampleRate)
	if err != nil {
		return "", fmt.Errorf("openaispeech: encode audio: %w", err)
	}

	params := oai.AudioTranscriptionNewParams{
		Model: c.asrModel,
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
	}
	if language != "" {
		params.Language = param.NewOpt(language)
	}

	resp, err := c.api.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openaispeech: transcribe: %w", err)
	}
	return resp.Text, nil
}

// Synthesize implements capability.Synthesizer. The server's raw PCM
// response body is exposed as the audio stream, so forwarding can begin
// before generation completes.
func (c *Client) Synthesize(ctx context.Context, text, voice string, speed float64) (capability.AudioStream, error) {
	params := oai.AudioSpeechNewParams{
		Model:          c.ttsModel,
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if speed > 0 {
		params.Speed = param.NewOpt(speed)
	}

	resp, err := c.api.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openaispeech: synthesize: %w", err)
	}
	return &pcmStream{body: resp.Body}, nil
}

// SampleRate implements capability.Synthesizer.
func (c *Client) SampleRate() int { return c.sampleRate }

// pcmStream adapts a streaming HTTP response body to capability.AudioStream.
type pcmStream struct {
	body io.ReadCloser
	buf  [4096]byte
}

func (s *pcmStream) Next() ([]byte, error) {
	for {
		n, err := s.body.Read(s.buf[:])
		if n > 0 {
			// Data first; a terminal error resurfaces on the next call.
			return append([]byte(nil), s.buf[:n]...), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *pcmStream) Close() error {
	return s.body.Close()
}
