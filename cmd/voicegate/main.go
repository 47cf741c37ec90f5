// Command voicegate is the main entry point for the voicegate speech
// gateway. It exposes local and remote ASR/TTS backends over a framed,
// bidirectional event protocol on TCP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/voicegate/internal/audio"
	"github.com/MrWong99/voicegate/internal/backend"
	"github.com/MrWong99/voicegate/internal/config"
	"github.com/MrWong99/voicegate/internal/health"
	"github.com/MrWong99/voicegate/internal/observe"
	"github.com/MrWong99/voicegate/internal/server"
	"github.com/MrWong99/voicegate/internal/session"
	"github.com/MrWong99/voicegate/internal/transcriptlog"
	"github.com/MrWong99/voicegate/pkg/capability/openaispeech"
	"github.com/MrWong99/voicegate/pkg/capability/whispercpp"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicegate: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicegate: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicegate starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Backends ──────────────────────────────────────────────────────────────
	cache := backend.NewCache()
	defer func() {
		if err := cache.Close(); err != nil {
			slog.Warn("backend close error", "err", err)
		}
	}()

	asr, err := asrHandle(cache, cfg.Backends.ASR)
	if err != nil {
		slog.Error("invalid asr backend", "err", err)
		return 1
	}
	tts, err := ttsHandle(cache, cfg.Backends.TTS)
	if err != nil {
		slog.Error("invalid tts backend", "err", err)
		return 1
	}

	// ── Transcript audit log (optional) ───────────────────────────────────────
	var tlog *transcriptlog.Postgres
	if cfg.TranscriptLog.DSN != "" {
		tlog, err = transcriptlog.Open(ctx, cfg.TranscriptLog.DSN)
		if err != nil {
			slog.Error("failed to open transcript log", "err", err)
			return 1
		}
		defer tlog.Close()
	}

	// ── Resampler ─────────────────────────────────────────────────────────────
	var resampler audio.Resampler
	if cfg.Audio.DisableResampling {
		slog.Warn("resampling disabled — mismatched sample rates will degrade transcription quality")
	} else {
		resampler = audio.NewSoxrResampler()
	}

	// ── Server ────────────────────────────────────────────────────────────────
	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		AdminAddr:  cfg.Server.AdminAddr,
		Checks:     readinessChecks(asr, tts, tlog),
		Session: session.Config{
			ASR:             asr,
			TTS:             tts,
			Info:            cfg.Info,
			TargetRate:      cfg.Audio.TargetRate,
			ChunkSamples:    cfg.Audio.ChunkSamples,
			Resampler:       resampler,
			DefaultLanguage: cfg.Backends.ASR.Language,
			DefaultVoice:    cfg.Backends.TTS.Voice,
			Metrics:         observe.DefaultMetrics(),
			Log:             tlog,
		},
	})

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// asrHandle builds the lazily initialised transcription backend named in
// entry. The cache deduplicates handles, so an ASR and TTS entry pointing at
// the same server share one client.
func asrHandle(cache *backend.Cache, entry config.BackendEntry) (*backend.Handle, error) {
	switch entry.Name {
	case "":
		return nil, nil
	case "whispercpp":
		key := fmt.Sprintf("whispercpp:%s", entry.Model)
		return cache.Handle(key, entry.Name, func(context.Context) (backend.Capabilities, error) {
			var opts []whispercpp.Option
			if entry.Language != "" {
				opts = append(opts, whispercpp.WithLanguage(entry.Language))
			}
			t, err := whispercpp.New(entry.Model, opts...)
			if err != nil {
				return backend.Capabilities{}, err
			}
			return backend.Capabilities{Transcriber: t, Closer: t}, nil
		}), nil
	case "openai":
		key := fmt.Sprintf("openai:%s", entry.URL)
		return cache.Handle(key, entry.Name, func(context.Context) (backend.Capabilities, error) {
			c, err := newSpeechClient(entry, openaispeech.WithASRModel(entry.Model))
			if err != nil {
				return backend.Capabilities{}, err
			}
			return backend.Capabilities{Transcriber: c}, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown asr backend %q", entry.Name)
	}
}

// ttsHandle builds the lazily initialised synthesis backend named in entry.
func ttsHandle(cache *backend.Cache, entry config.BackendEntry) (*backend.Handle, error) {
	switch entry.Name {
	case "":
		return nil, nil
	case "openai":
		key := fmt.Sprintf("openai-tts:%s:%s", entry.URL, entry.Model)
		return cache.Handle(key, entry.Name, func(context.Context) (backend.Capabilities, error) {
			c, err := newSpeechClient(entry, openaispeech.WithTTSModel(entry.Model))
			if err != nil {
				return backend.Capabilities{}, err
			}
			return backend.Capabilities{Synthesizer: c}, nil
		}), nil
	default:
		return nil, fmt.Errorf("unknown tts backend %q", entry.Name)
	}
}

func newSpeechClient(entry config.BackendEntry, extra ...openaispeech.Option) (*openaispeech.Client, error) {
	opts := extra
	if entry.URL != "" {
		opts = append(opts, openaispeech.WithBaseURL(entry.URL))
	}
	return openaispeech.New(entry.APIKey, opts...)
}

// readinessChecks exposes terminal backend failures and transcript log
// connectivity on /readyz. A backend that has not been used yet passes.
func readinessChecks(asr, tts *backend.Handle, tlog *transcriptlog.Postgres) map[string]health.Check {
	checks := make(map[string]health.Check)
	if asr != nil {
		checks["asr"] = func(context.Context) error { return asr.Ready() }
	}
	if tts != nil {
		checks["tts"] = func(context.Context) error { return tts.Ready() }
	}
	if tlog != nil {
		checks["transcript_log"] = tlog.Ping
	}
	return checks
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voicegate — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printBackend("ASR", cfg.Backends.ASR.Name, cfg.Backends.ASR.Model)
	printBackend("TTS", cfg.Backends.TTS.Name, cfg.Backends.TTS.Model)
	fmt.Printf("║  Listen addr  : %-22s ║\n", cfg.Server.ListenAddr)
	if cfg.Server.AdminAddr != "" {
		fmt.Printf("║  Admin addr   : %-22s ║\n", cfg.Server.AdminAddr)
	} else {
		fmt.Printf("║  Admin addr   : %-22s ║\n", "(disabled)")
	}
	if cfg.TranscriptLog.DSN != "" {
		fmt.Printf("║  Audit log    : %-22s ║\n", "postgres")
	} else {
		fmt.Printf("║  Audit log    : %-22s ║\n", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printBackend(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 22 {
		value = value[:19] + "…"
	}
	fmt.Printf("║  %-12s : %-22s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
