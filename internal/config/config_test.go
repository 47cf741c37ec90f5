package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/voicegate/internal/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":10300"
  admin_addr: ":10301"
  log_level: debug

audio:
  chunk_samples: 512
  target_rate: 16000

backends:
  asr:
    name: whispercpp
    model: /models/ggml-base.en.bin
    language: en
  tts:
    name: openai
    url: http://kokoro:8880/v1
    api_key: unused
    model: kokoro
    voice: af_bella

info:
  asr:
    - name: whisper.cpp
      installed: true
      attribution:
        name: ggml-org
        url: https://github.com/ggml-org/whisper.cpp
      models:
        - name: base.en
          languages: [en]
  tts:
    - name: kokoro
      installed: true
      attribution:
        name: hexgrad
        url: https://huggingface.co/hexgrad/Kokoro-82M
      voices:
        - name: af_bella
          languages: [en]

transcript_log:
  dsn: ""
`

func load(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

// ── loading ──────────────────────────────────────────────────────────────────

func TestLoadFromReader_FullConfig(t *testing.T) {
	cfg := load(t, sampleYAML)

	if cfg.Server.ListenAddr != ":10300" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Audio.ChunkSamples != 512 {
		t.Errorf("ChunkSamples = %d", cfg.Audio.ChunkSamples)
	}
	if cfg.Backends.ASR.Name != "whispercpp" || cfg.Backends.ASR.Model != "/models/ggml-base.en.bin" {
		t.Errorf("ASR backend = %+v", cfg.Backends.ASR)
	}
	if cfg.Backends.TTS.Voice != "af_bella" {
		t.Errorf("TTS voice = %q", cfg.Backends.TTS.Voice)
	}
	if len(cfg.Info.ASR) != 1 || cfg.Info.ASR[0].Models[0].Name != "base.en" {
		t.Errorf("Info.ASR = %+v", cfg.Info.ASR)
	}
	if len(cfg.Info.TTS) != 1 || cfg.Info.TTS[0].Voices[0].Name != "af_bella" {
		t.Errorf("Info.TTS = %+v", cfg.Info.TTS)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	cfg := load(t, `
backends:
  asr:
    name: whispercpp
    model: /m/base.bin
`)
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want default %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Audio.ChunkSamples != config.DefaultChunkSamples {
		t.Errorf("ChunkSamples = %d, want %d", cfg.Audio.ChunkSamples, config.DefaultChunkSamples)
	}
	if cfg.Audio.TargetRate != config.DefaultTargetRate {
		t.Errorf("TargetRate = %d, want %d", cfg.Audio.TargetRate, config.DefaultTargetRate)
	}
}

func TestLoadFromReader_UnknownField_Fails(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader(`
backends:
  asr:
    name: whispercpp
    model: /m/base.bin
    gpu_layers: 32
`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

// ── validation ───────────────────────────────────────────────────────────────

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"bad log level",
			"server:\n  log_level: noisy\nbackends:\n  asr:\n    name: whispercpp\n    model: /m/b.bin\n",
			"log_level",
		},
		{
			"no backend at all",
			"server:\n  log_level: info\n",
			"at least one",
		},
		{
			"unknown backend name",
			"backends:\n  asr:\n    name: deepgram\n",
			"unknown",
		},
		{
			"whispercpp without model",
			"backends:\n  asr:\n    name: whispercpp\n",
			"requires model",
		},
		{
			"openai without url or key",
			"backends:\n  tts:\n    name: openai\n",
			"requires url",
		},
		{
			"negative chunk samples",
			"audio:\n  chunk_samples: -1\nbackends:\n  asr:\n    name: whispercpp\n    model: /m/b.bin\n",
			"chunk_samples",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q must be valid", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error("unrecognised level must be invalid")
	}
}
