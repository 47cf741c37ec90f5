// Package server accepts client connections and runs one protocol session
// per connection. The primary listener speaks the framed event protocol over
// raw TCP; an optional admin listener serves health probes, Prometheus
// metrics and a WebSocket bridge to the same protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicegate/internal/health"
	"github.com/MrWong99/voicegate/internal/session"
)

// shutdownTimeout bounds the admin server drain on shutdown.
const shutdownTimeout = 10 * time.Second

// Config describes one server instance.
type Config struct {
	// ListenAddr is the TCP address of the protocol listener, e.g. ":10300".
	ListenAddr string

	// AdminAddr is the address of the HTTP admin listener. Empty disables
	// the admin endpoints entirely.
	AdminAddr string

	// Session is the shared configuration handed to every new session.
	Session session.Config

	// Checks are the readiness probes exposed on the admin listener.
	Checks map[string]health.Check
}

// Server owns the listeners and the set of live connections.
type Server struct {
	cfg Config

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}

	ready chan struct{}
}

// New creates an unstarted server.
func New(cfg Config) *Server {
	return &Server{
		cfg:   cfg,
		conns: make(map[net.Conn]struct{}),
		ready: make(chan struct{}),
	}
}

// Run listens and serves until ctx is cancelled, then closes the listeners
// and every live connection. It returns the first listener error, or nil on
// a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	close(s.ready)
	slog.Info("protocol listener ready", "addr", ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.acceptLoop(ctx, ln)
	})

	var admin *http.Server
	if s.cfg.AdminAddr != "" {
		admin = &http.Server{
			Addr:        s.cfg.AdminAddr,
			Handler:     s.adminMux(),
			BaseContext: func(net.Listener) context.Context { return ctx },
		}
		g.Go(func() error {
			slog.Info("admin listener ready", "addr", s.cfg.AdminAddr)
			if err := admin.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin listener: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		if admin != nil {
			drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := admin.Shutdown(drainCtx); err != nil {
				slog.Warn("admin shutdown", "error", err)
			}
		}
		s.closeConns()
		return nil
	})

	return g.Wait()
}

// Addr returns the bound protocol listener address. It blocks until Run has
// opened the listener.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln.Addr()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.track(conn)
		go func() {
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	sess := session.New(s.cfg.Session)
	if err := sess.Run(ctx, conn); err != nil {
		slog.Debug("connection closed with error",
			"session", sess.ID(), "remote", conn.RemoteAddr().String(), "error", err)
	}
}

func (s *Server) adminMux() *http.ServeMux {
	mux := http.NewServeMux()
	health.New(s.cfg.Checks).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}
