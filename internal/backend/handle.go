// Package backend manages the shared, lazily constructed handles to model
// backends. Model construction is expensive (weights are loaded into memory
// or onto an accelerator), so a handle is built at most once per
// (kind, config) pair and shared read-only by every session afterwards.
//
// A failed construction is terminal: the same error is returned to every
// subsequent caller until the process restarts. Silently retrying would mask
// what is almost always a fixable environment problem (missing model file,
// unreachable inference server) behind repeated multi-second stalls.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/voicegate/pkg/capability"
)

// Capabilities bundles what one backend instance can do. Either field may be
// nil when the backend only covers one direction.
type Capabilities struct {
	Transcriber capability.Transcriber
	Synthesizer capability.Synthesizer

	// Closer, when non-nil, releases backend resources at process shutdown.
	Closer io.Closer
}

// Builder constructs a backend's capabilities. It is invoked at most once per
// handle, under the handle's lock, by whichever session needs the backend
// first.
type Builder func(ctx context.Context) (Capabilities, error)

// Handle is the shared access point to one backend instance. The zero value
// is not usable; create handles with [NewHandle].
type Handle struct {
	kind  string
	build Builder

	mu    sync.Mutex
	built bool
	caps  Capabilities
	err   error
}

// NewHandle creates an unbuilt handle for the named backend kind. kind is
// used only for logging and error messages.
func NewHandle(kind string, build Builder) *Handle {
	return &Handle{kind: kind, build: build}
}

// Get returns the backend capabilities, constructing them on first use.
// Concurrent first users block until the single construction attempt
// completes. After a failed attempt every call returns the same error.
func (h *Handle) Get(ctx context.Context) (Capabilities, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.built {
		return h.caps, h.err
	}

	slog.Info("initialising backend", "kind", h.kind)
	start := time.Now()
	caps, err := h.build(ctx)

	h.built = true
	h.caps = caps
	if err != nil {
		h.err = fmt.Errorf("backend %s: init: %w", h.kind, err)
		slog.Error("backend initialisation failed; handle is now terminal",
			"kind", h.kind, "err", err)
		return Capabilities{}, h.err
	}

	slog.Info("backend ready",
		"kind", h.kind,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"asr", caps.Transcriber != nil,
		"tts", caps.Synthesizer != nil,
	)
	return h.caps, nil
}

// Ready reports the handle's state without triggering construction: nil when
// built successfully or not yet attempted, the terminal error otherwise. It
// backs the readiness probe.
func (h *Handle) Ready() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close releases the backend's resources if it was built and exposes a
// closer. It is called once at process shutdown.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.built && h.err == nil && h.caps.Closer != nil {
		return h.caps.Closer.Close()
	}
	return nil
}
