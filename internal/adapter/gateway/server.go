package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"nimbus-ai/internal/domain"
	"nimbus-ai/internal/infra/config"
	"nimbus-ai/internal/infra/middleware"
	"nimbus-ai/internal/usecase"
)

// Server is the HTTP gateway: account endpoints, the streaming chat
// endpoint and the WebSocket event feed.
type Server struct {
	loop      *usecase.Loop
	bus       domain.EventBus
	users     domain.UserStore
	blacklist domain.TokenBlacklist
	issuer    *TokenIssuer
	audit     domain.AuditLogger
	logger    *slog.Logger

	cfg        config.ServerConfig
	rateCfg    config.RateLimitConfig
	bcryptCost int

	httpSrv   *http.Server
	boundAddr string
}

// ServerDeps carries the gateway's collaborators.
type ServerDeps struct {
	Loop      *usecase.Loop
	Bus       domain.EventBus
	Users     domain.UserStore
	Blacklist domain.TokenBlacklist
	Issuer    *TokenIssuer
	Audit     domain.AuditLogger
	Logger    *slog.Logger
}

// NewServer creates the gateway server.
func NewServer(deps ServerDeps, cfg config.ServerConfig, rateCfg config.RateLimitConfig, bcryptCost int) *Server {
	return &Server{
		loop:       deps.Loop,
		bus:        deps.Bus,
		users:      deps.Users,
		blacklist:  deps.Blacklist,
		issuer:     deps.Issuer,
		audit:      deps.Audit,
		logger:     deps.Logger,
		cfg:        cfg,
		rateCfg:    rateCfg,
		bcryptCost: bcryptCost,
	}
}

// Handler builds the routed, middleware-wrapped handler. Split from
// Start so tests can drive the mux through httptest.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.Handle("POST /auth/logout", s.RequireAuth(http.HandlerFunc(s.handleLogout)))
	mux.Handle("POST /agent/chat", s.RequireAuth(http.HandlerFunc(s.handleChat)))
	mux.HandleFunc("GET /ws", s.handleWS)

	var h http.Handler = mux
	if s.rateCfg.Enabled {
		h = middleware.RateLimit(ctx, s.rateCfg.RequestsPerSec, s.rateCfg.Burst)(h)
	}
	h = middleware.SecurityHeaders(h)
	h = middleware.RequestLog(s.logger)(h)
	h = middleware.RequestID(h)
	return h
}

// Start begins serving. Blocks until the context is cancelled or the
// listener fails. WriteTimeout stays 0: SSE responses are open-ended.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{
		Handler:     s.Handler(ctx),
		ReadTimeout: s.cfg.ReadTimeout,
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg, Code: domain.ErrorCodeOf(err)})
}
