package domain

import (
	"context"
	"time"
)

// User is a registered account. PasswordHash is a bcrypt digest; the
// clear-text password never leaves the gateway handler.
type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserStore persists accounts keyed by email.
type UserStore interface {
	// CreateUser stores a new account. Returns ErrDuplicateUser if the
	// email is already registered.
	CreateUser(ctx context.Context, u User) error
	// GetUser returns the account, or ErrUserNotFound.
	GetUser(ctx context.Context, email string) (*User, error)
}

// TokenBlacklist tracks revoked bearer tokens until they would have
// expired anyway.
type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}
