package gateway

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"nimbus-ai/internal/domain"
)

// handleWS upgrades the connection and forwards every bus event to the
// client. Read-only feed: inbound messages are drained and ignored so
// pings and close frames get processed.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	email, err := s.authenticateToken(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	s.logger.Info("event feed client connected", "user", email)

	sendCh := make(chan Frame, 64)
	unsub := s.bus.SubscribeAll(func(_ context.Context, event domain.Event) {
		frame, err := eventFrame(event)
		if err != nil {
			return
		}
		select {
		case sendCh <- frame:
		default:
			s.logger.Warn("event feed: dropped event for slow client", "user", email)
		}
	})
	defer unsub()

	ctx := r.Context()
	go func() {
		// Drain reads; exits when the connection closes.
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			ws.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case frame := <-sendCh:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, ws, frame)
			cancel()
			if err != nil {
				s.logger.Info("event feed client disconnected", "user", email)
				return
			}
		}
	}
}
