package domain

import (
	"context"
	"time"
)

// ConversationStore persists bounded per-session history. Sessions are
// created implicitly: loading an unknown session yields an empty slice,
// and the first append creates it.
type ConversationStore interface {
	// Load returns the session's exchanges, oldest first. The result
	// holds at most the store's configured bound.
	Load(ctx context.Context, sessionID string) ([]Exchange, error)
	// Append adds one exchange, evicting the oldest beyond the bound.
	Append(ctx context.Context, sessionID string, ex Exchange) error
}

// SessionReaper removes sessions idle beyond maxAge. Backends with
// native expiry don't need one.
type SessionReaper interface {
	ReapStaleSessions(ctx context.Context, maxAge time.Duration) (int, error)
}
