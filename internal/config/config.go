// Package config provides the configuration schema and loader for the
// voicegate server.
package config

import "github.com/MrWong99/voicegate/pkg/capability"

// LogLevel controls log verbosity for the voicegate server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voicegate. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Audio         AudioConfig         `yaml:"audio"`
	Backends      BackendsConfig      `yaml:"backends"`
	Info          capability.Info     `yaml:"info"`
	TranscriptLog TranscriptLogConfig `yaml:"transcript_log"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving the framed event protocol
	// (e.g., ":10300").
	ListenAddr string `yaml:"listen_addr"`

	// AdminAddr is the HTTP address serving /healthz, /readyz, /metrics and
	// the /ws WebSocket transport for the event protocol. Empty disables
	// the admin listener.
	AdminAddr string `yaml:"admin_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig tunes the gateway's audio handling.
type AudioConfig struct {
	// ChunkSamples is the number of PCM16 samples per outbound audio chunk.
	// Default 1024 (2048 bytes, 64 ms at 16 kHz).
	ChunkSamples int `yaml:"chunk_samples"`

	// TargetRate is the sample rate (Hz) ASR backends expect; inbound audio
	// at other rates is resampled to it. Default 16000.
	TargetRate int `yaml:"target_rate"`

	// DisableResampling turns off sample-rate conversion. Mismatched audio
	// is then passed to the backend unconverted, with degraded quality.
	DisableResampling bool `yaml:"disable_resampling"`
}

// BackendsConfig selects the capability providers.
type BackendsConfig struct {
	ASR BackendEntry `yaml:"asr"`
	TTS BackendEntry `yaml:"tts"`
}

// BackendEntry configures one backend capability provider.
type BackendEntry struct {
	// Name selects the provider implementation: "whispercpp", "openai", or
	// empty to leave the capability unconfigured.
	Name string `yaml:"name"`

	// URL is the base URL for HTTP-backed providers (e.g.,
	// "http://kokoro:8880/v1").
	URL string `yaml:"url"`

	// APIKey authenticates HTTP-backed providers. Self-hosted
	// OpenAI-compatible servers usually accept any value.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier: a file path for whispercpp, a model
	// name for OpenAI-compatible servers.
	Model string `yaml:"model"`

	// Voice is the default TTS voice when a synthesize event names none.
	Voice string `yaml:"voice"`

	// Language is the default ASR language hint.
	Language string `yaml:"language"`
}

// TranscriptLogConfig enables the optional transcript audit log.
type TranscriptLogConfig struct {
	// DSN is a PostgreSQL connection string. Empty disables the log.
	DSN string `yaml:"dsn"`
}
