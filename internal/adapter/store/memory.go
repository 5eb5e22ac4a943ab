package store

import (
	"context"
	"sync"
	"time"

	"nimbus-ai/internal/domain"
)

// Compile-time interface assertions.
var (
	_ domain.UserStore         = (*MemoryStore)(nil)
	_ domain.TokenBlacklist    = (*MemoryStore)(nil)
	_ domain.ConversationStore = (*MemoryStore)(nil)
	_ domain.SessionReaper     = (*MemoryStore)(nil)
)

type memorySession struct {
	exchanges []domain.Exchange
	lastSeen  time.Time
}

// MemoryStore is the single-process backend: accounts, token revocation
// and conversation history in maps. Unlike Redis it has no native key
// expiry, so a scheduled reaper removes stale sessions and expired
// blacklist entries.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	revoked    map[string]time.Time // token -> expiry
	sessions   map[string]*memorySession
	maxHistory int
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &MemoryStore{
		users:      make(map[string]domain.User),
		revoked:    make(map[string]time.Time),
		sessions:   make(map[string]*memorySession),
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// CreateUser implements domain.UserStore.
func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Email]; exists {
		return domain.NewDomainError("MemoryStore.CreateUser", domain.ErrDuplicateUser, u.Email)
	}
	s.users[u.Email] = u
	return nil
}

// GetUser implements domain.UserStore.
func (s *MemoryStore) GetUser(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, domain.NewDomainError("MemoryStore.GetUser", domain.ErrUserNotFound, email)
	}
	return &u, nil
}

// Revoke implements domain.TokenBlacklist.
func (s *MemoryStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = s.now().Add(ttl)
	return nil
}

// IsRevoked implements domain.TokenBlacklist.
func (s *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.revoked[token]
	if !ok {
		return false, nil
	}
	return s.now().Before(expiry), nil
}

// Load implements domain.ConversationStore.
func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []domain.Exchange{}, nil
	}
	out := make([]domain.Exchange, len(sess.exchanges))
	copy(out, sess.exchanges)
	return out, nil
}

// Append implements domain.ConversationStore.
func (s *MemoryStore) Append(_ context.Context, sessionID string, ex domain.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}

	sess.exchanges = append(sess.exchanges, ex)
	if len(sess.exchanges) > s.maxHistory {
		// Evict oldest; copy so the backing array doesn't pin evicted entries.
		trimmed := make([]domain.Exchange, s.maxHistory)
		copy(trimmed, sess.exchanges[len(sess.exchanges)-s.maxHistory:])
		sess.exchanges = trimmed
	}
	sess.lastSeen = s.now()
	return nil
}

// ReapStaleSessions implements domain.SessionReaper. Expired blacklist
// entries ride along in the same sweep.
func (s *MemoryStore) ReapStaleSessions(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-maxAge)

	reaped := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			reaped++
		}
	}

	for token, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, token)
		}
	}
	return reaped, nil
}
