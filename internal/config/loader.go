package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidBackendNames lists known provider names per capability kind. Used by
// [Validate] to reject unrecognised backend names.
var ValidBackendNames = map[string][]string{
	"asr": {"whispercpp", "openai"},
	"tts": {"openai"},
}

// Defaults applied by [Validate] when fields are unset.
const (
	DefaultListenAddr   = ":10300"
	DefaultChunkSamples = 1024
	DefaultTargetRate   = 16000
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values, filling in
// defaults for unset fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	} else if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Audio.ChunkSamples == 0 {
		cfg.Audio.ChunkSamples = DefaultChunkSamples
	} else if cfg.Audio.ChunkSamples < 0 {
		errs = append(errs, fmt.Errorf("audio.chunk_samples must be positive, got %d", cfg.Audio.ChunkSamples))
	}
	if cfg.Audio.TargetRate == 0 {
		cfg.Audio.TargetRate = DefaultTargetRate
	} else if cfg.Audio.TargetRate < 0 {
		errs = append(errs, fmt.Errorf("audio.target_rate must be positive, got %d", cfg.Audio.TargetRate))
	}

	if err := validateBackend("asr", cfg.Backends.ASR); err != nil {
		errs = append(errs, err)
	}
	if err := validateBackend("tts", cfg.Backends.TTS); err != nil {
		errs = append(errs, err)
	}
	if cfg.Backends.ASR.Name == "" && cfg.Backends.TTS.Name == "" {
		errs = append(errs, errors.New("at least one of backends.asr or backends.tts must be configured"))
	}

	if cfg.Backends.ASR.Name != "" && len(cfg.Info.ASR) == 0 {
		slog.Warn("ASR backend configured but info.asr is empty; describe responses will advertise no models")
	}
	if cfg.Backends.TTS.Name != "" && len(cfg.Info.TTS) == 0 {
		slog.Warn("TTS backend configured but info.tts is empty; describe responses will advertise no voices")
	}

	return errors.Join(errs...)
}

// validateBackend checks one backend entry against the known provider names
// and its per-provider required fields.
func validateBackend(kind string, e BackendEntry) error {
	if e.Name == "" {
		return nil
	}
	if !slices.Contains(ValidBackendNames[kind], e.Name) {
		return fmt.Errorf("backends.%s.name %q is unknown; valid values: %v", kind, e.Name, ValidBackendNames[kind])
	}
	switch e.Name {
	case "whispercpp":
		if e.Model == "" {
			return fmt.Errorf("backends.%s: whispercpp requires model (path to a ggml model file)", kind)
		}
	case "openai":
		if e.URL == "" && e.APIKey == "" {
			return fmt.Errorf("backends.%s: openai requires url (self-hosted) or api_key", kind)
		}
	}
	return nil
}
