package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"nimbus-ai/internal/domain"
	"nimbus-ai/internal/infra/config"
)

// TokenIssuer mints and verifies HS256 bearer tokens. Subject is the
// account email; expiry is the configured TTL.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer from auth config.
func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a signed token for the account.
func (t *TokenIssuer) Issue(email string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the subject email and
// remaining lifetime. The remaining lifetime is what a logout needs to
// blacklist the token for.
func (t *TokenIssuer) Verify(tokenString string) (email string, remaining time.Duration, err error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !parsed.Valid {
		return "", 0, domain.NewDomainError("TokenIssuer.Verify", domain.ErrAuthInvalid, "invalid token")
	}
	if claims.Subject == "" {
		return "", 0, domain.NewDomainError("TokenIssuer.Verify", domain.ErrAuthInvalid, "token missing subject")
	}

	remaining = 0
	if claims.ExpiresAt != nil {
		remaining = claims.ExpiresAt.Time.Sub(t.now())
	}
	return claims.Subject, remaining, nil
}

// HashPassword produces a bcrypt digest at the configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a clear-text password with a stored digest.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// RequireAuth rejects requests without a valid, unrevoked bearer token.
// The account email ends up in the request context.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, domain.ErrAuthInvalid, "missing bearer token")
			return
		}

		email, _, err := s.issuer.Verify(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, domain.ErrAuthInvalid, "invalid token")
			return
		}

		revoked, err := s.blacklist.IsRevoked(r.Context(), token)
		if err != nil {
			s.logger.Error("blacklist check failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, domain.ErrStoreFailure, "auth backend unavailable")
			return
		}
		if revoked {
			s.writeError(w, http.StatusUnauthorized, domain.ErrTokenRevoked, "token revoked")
			return
		}

		ctx := domain.WithUserEmail(r.Context(), email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticateToken is the query-param variant used by the WebSocket
// upgrade, where browsers cannot set an Authorization header.
func (s *Server) authenticateToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.NewDomainError("gateway.authenticateToken", domain.ErrAuthInvalid, "missing token")
	}
	email, _, err := s.issuer.Verify(token)
	if err != nil {
		return "", err
	}
	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", domain.NewDomainError("gateway.authenticateToken", domain.ErrTokenRevoked, "token revoked")
	}
	return email, nil
}
