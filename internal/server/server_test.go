package server_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicegate/internal/health"
	"github.com/MrWong99/voicegate/internal/protocol"
	"github.com/MrWong99/voicegate/internal/server"
	"github.com/MrWong99/voicegate/internal/session"
	"github.com/MrWong99/voicegate/pkg/capability"
)

func TestServer_TCPDescribeRoundTrip(t *testing.T) {
	srv, cancel := startServer(t, server.Config{
		ListenAddr: "127.0.0.1:0",
		Session: session.Config{
			Info: capability.Info{TTS: []capability.TTSProgram{{Name: "kokoro"}}},
		},
	})
	defer cancel()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	info := describeOver(t, conn)
	if len(info.TTS) != 1 || info.TTS[0].Name != "kokoro" {
		t.Errorf("descriptor not served: %+v", info)
	}
}

func TestServer_ConcurrentConnections(t *testing.T) {
	srv, cancel := startServer(t, server.Config{
		ListenAddr: "127.0.0.1:0",
		Session:    session.Config{Info: capability.Info{ASR: []capability.ASRProgram{{Name: "whisper"}}}},
	})
	defer cancel()

	done := make(chan error, 4)
	for range 4 {
		go func() {
			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()
			info := describeOver(t, conn)
			if len(info.ASR) != 1 {
				done <- errors.New("bad descriptor")
				return
			}
			done <- nil
		}()
	}
	for range 4 {
		if err := <-done; err != nil {
			t.Fatalf("connection failed: %v", err)
		}
	}
}

func TestServer_MalformedFrameClosesConnection(t *testing.T) {
	srv, cancel := startServer(t, server.Config{ListenAddr: "127.0.0.1:0"})
	defer cancel()

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("this is not a frame\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, io.EOF) {
		t.Errorf("expected server to close the connection, read err = %v", err)
	}
}

func TestServer_AdminHealthAndReadiness(t *testing.T) {
	adminAddr := freeAddr(t)
	_, cancel := startServer(t, server.Config{
		ListenAddr: "127.0.0.1:0",
		AdminAddr:  adminAddr,
		Checks: map[string]health.Check{
			"static": func(context.Context) error { return nil },
		},
	})
	defer cancel()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := getEventually(t, "http://"+adminAddr+path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := getEventually(t, "http://"+adminAddr+"/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", resp.StatusCode)
	}
}

func TestServer_WebSocketDescribeRoundTrip(t *testing.T) {
	adminAddr := freeAddr(t)
	_, cancel := startServer(t, server.Config{
		ListenAddr: "127.0.0.1:0",
		AdminAddr:  adminAddr,
		Session: session.Config{
			Info: capability.Info{TTS: []capability.TTSProgram{{Name: "kokoro"}}},
		},
	})
	defer cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ctxCancel()

	var c *websocket.Conn
	var err error
	for range 50 {
		c, _, err = websocket.Dial(ctx, "ws://"+adminAddr+"/ws", nil)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	conn := websocket.NetConn(ctx, c, websocket.MessageBinary)
	defer conn.Close()

	info := describeOver(t, conn)
	if len(info.TTS) != 1 || info.TTS[0].Name != "kokoro" {
		t.Errorf("descriptor not served over websocket: %+v", info)
	}
}

// ---- helpers ----

// startServer runs srv.Run in the background and returns a cancel func that
// stops it and waits for a clean exit.
func startServer(t *testing.T, cfg server.Config) (*server.Server, func()) {
	t.Helper()
	srv := server.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	srv.Addr()

	return srv, func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down in time")
		}
	}
}

// describeOver sends a Describe frame on conn and decodes the Info reply.
func describeOver(t *testing.T, conn io.ReadWriter) capability.Info {
	t.Helper()
	frame, err := protocol.Marshal(protocol.Describe{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	ev, err := protocol.NewDecoder(conn).Next()
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	info, ok := ev.(protocol.Info)
	if !ok {
		t.Fatalf("expected Info reply, got %T", ev)
	}
	return info.Info
}

// freeAddr reserves a loopback port for a listener started by the server.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// getEventually retries a GET until the admin listener comes up.
func getEventually(t *testing.T, url string) (*http.Response, error) {
	t.Helper()
	var resp *http.Response
	var err error
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			return resp, nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil, err
}
