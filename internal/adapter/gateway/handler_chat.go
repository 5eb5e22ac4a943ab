package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"nimbus-ai/internal/domain"
	"nimbus-ai/internal/usecase"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// handleChat streams one reasoning run as SSE. The run itself is
// decoupled from the connection: a client that goes away mid-stream
// detaches the consumer, the run completes, and the session history
// still gets the final answer.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput, "malformed request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput, "query is required")
		return
	}
	if req.SessionID == "" {
		// Sessions are implicit; a client that doesn't care gets a
		// per-user default.
		req.SessionID = "default:" + domain.UserEmailFrom(r.Context())
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err, "streaming unsupported")
		return
	}

	runID := usecase.NewRunID()
	s.logger.Info("chat run started",
		"run_id", runID,
		"session_id", req.SessionID,
		"user", domain.UserEmailFrom(r.Context()),
	)

	runCtx := context.WithoutCancel(r.Context())
	enc := s.loop.Stream(runCtx, runID, req.SessionID, req.Query)

	clientGone := r.Context().Done()
	for {
		select {
		case <-clientGone:
			enc.Detach()
			s.logger.Info("chat client disconnected mid-stream",
				"run_id", runID, "session_id", req.SessionID)
			// Drain so the producer goroutine is never stuck; Detach
			// drops anything still coming.
			for range enc.Events() {
			}
			return
		case ev, ok := <-enc.Events():
			if !ok {
				if err := sse.WriteDone(); err != nil {
					s.logger.Debug("done frame write failed", "run_id", runID, "error", err)
				}
				return
			}
			if err := sse.WriteJSON(ev); err != nil {
				enc.Detach()
				s.logger.Info("chat stream write failed, detaching",
					"run_id", runID, "error", err)
				for range enc.Events() {
				}
				return
			}
		}
	}
}
