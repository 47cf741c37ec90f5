package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/MrWong99/voicegate/internal/session"
)

// handleWS bridges a WebSocket connection onto the framed event protocol.
// Frames are carried in binary messages; the adapted connection behaves like
// any TCP client from the session's point of view.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := websocket.NetConn(r.Context(), c, websocket.MessageBinary)
	defer conn.Close()

	sess := session.New(s.cfg.Session)
	if err := sess.Run(r.Context(), conn); err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("websocket session closed with error",
			"session", sess.ID(), "remote", r.RemoteAddr, "error", err)
		c.Close(websocket.StatusInternalError, "protocol error")
		return
	}
	c.Close(websocket.StatusNormalClosure, "")
}
