package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"nimbus-ai/internal/domain"
)

const minPasswordLen = 8

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput, "malformed request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		s.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLen {
		s.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput, "password must be at least 8 characters")
		return
	}

	hash, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		s.logger.Error("password hash failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err, "registration failed")
		return
	}

	u := domain.User{
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			s.writeError(w, http.StatusBadRequest, err, "email already registered")
			return
		}
		s.logger.Error("create user failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err, "registration failed")
		return
	}

	s.publishAuthEvent(r, domain.EventUserRegistered, req.Email)
	s.auditAuth(r, domain.AuditAuthRegister, req.Email)
	s.logger.Info("user registered", "email", req.Email)
	s.writeJSON(w, http.StatusCreated, map[string]string{"email": req.Email})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput, "malformed request body")
		return
	}

	u, err := s.users.GetUser(r.Context(), req.Email)
	if err != nil || !CheckPassword(u.PasswordHash, req.Password) {
		// Same response either way; don't leak which accounts exist.
		s.writeError(w, http.StatusUnauthorized, domain.ErrAuthInvalid, "invalid credentials")
		return
	}

	token, err := s.issuer.Issue(u.Email)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err, "login failed")
		return
	}

	s.publishAuthEvent(r, domain.EventUserLoggedIn, u.Email)
	s.auditAuth(r, domain.AuditAuthLogin, u.Email)
	s.logger.Info("user logged in", "email", u.Email)
	s.writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	_, remaining, err := s.issuer.Verify(token)
	if err != nil {
		// RequireAuth already vetted the token; a failure here means it
		// expired in between, which is a logout in itself.
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
		return
	}

	if err := s.blacklist.Revoke(r.Context(), token, remaining); err != nil {
		s.logger.Error("token revoke failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, err, "logout failed")
		return
	}

	email := domain.UserEmailFrom(r.Context())
	s.publishAuthEvent(r, domain.EventUserLoggedOut, email)
	s.auditAuth(r, domain.AuditAuthLogout, email)
	s.logger.Info("user logged out", "email", email)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) publishAuthEvent(r *http.Request, typ domain.EventType, email string) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"email": email})
	s.bus.Publish(r.Context(), domain.Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

func (s *Server) auditAuth(r *http.Request, typ, email string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(domain.AuditEvent{
		Type:      typ,
		RequestID: domain.RequestIDFrom(r.Context()),
		User:      email,
	}); err != nil {
		s.logger.Warn("audit write failed", "error", err)
	}
}
