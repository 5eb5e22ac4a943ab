package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"nimbus-ai/internal/domain"
)

// Redis key prefixes.
const (
	userKeyPrefix      = "user:"
	blacklistKeyPrefix = "blacklist:"
	historyKeyPrefix   = "history:"
)

// Compile-time interface assertions.
var (
	_ domain.UserStore         = (*RedisStore)(nil)
	_ domain.TokenBlacklist    = (*RedisStore)(nil)
	_ domain.ConversationStore = (*RedisStore)(nil)
)

// RedisStore backs accounts, token revocation and conversation history
// with Redis. History lists are bounded server-side: each append runs
// RPUSH+LTRIM in one pipeline, so concurrent appends cannot grow a
// session past the bound and the newest entry always wins the tail.
type RedisStore struct {
	client     *redis.Client
	maxHistory int64
	logger     *slog.Logger
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string, maxHistory int, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if maxHistory <= 0 {
		maxHistory = 20
	}

	logger.Info("connected to redis", "addr", opts.Addr, "db", opts.DB)
	return &RedisStore{
		client:     client,
		maxHistory: int64(maxHistory),
		logger:     logger,
	}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// CreateUser implements domain.UserStore.
func (s *RedisStore) CreateUser(ctx context.Context, u domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return domain.NewDomainError("RedisStore.CreateUser", domain.ErrStoreFailure, err.Error())
	}

	ok, err := s.client.SetNX(ctx, userKeyPrefix+u.Email, data, 0).Result()
	if err != nil {
		return domain.NewDomainError("RedisStore.CreateUser", domain.ErrStoreFailure, err.Error())
	}
	if !ok {
		return domain.NewDomainError("RedisStore.CreateUser", domain.ErrDuplicateUser, u.Email)
	}
	return nil
}

// GetUser implements domain.UserStore.
func (s *RedisStore) GetUser(ctx context.Context, email string) (*domain.User, error) {
	data, err := s.client.Get(ctx, userKeyPrefix+email).Bytes()
	if err == redis.Nil {
		return nil, domain.NewDomainError("RedisStore.GetUser", domain.ErrUserNotFound, email)
	}
	if err != nil {
		return nil, domain.NewDomainError("RedisStore.GetUser", domain.ErrStoreFailure, err.Error())
	}

	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, domain.NewDomainError("RedisStore.GetUser", domain.ErrStoreFailure, err.Error())
	}
	return &u, nil
}

// Revoke implements domain.TokenBlacklist. The entry expires with the
// token itself, keeping the blacklist from growing without bound.
func (s *RedisStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // already expired, nothing to revoke
	}
	if err := s.client.Set(ctx, blacklistKeyPrefix+token, "1", ttl).Err(); err != nil {
		return domain.NewDomainError("RedisStore.Revoke", domain.ErrStoreFailure, err.Error())
	}
	return nil
}

// IsRevoked implements domain.TokenBlacklist.
func (s *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistKeyPrefix+token).Result()
	if err != nil {
		return false, domain.NewDomainError("RedisStore.IsRevoked", domain.ErrStoreFailure, err.Error())
	}
	return n > 0, nil
}

// Load implements domain.ConversationStore.
func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]domain.Exchange, error) {
	items, err := s.client.LRange(ctx, historyKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, domain.NewDomainError("RedisStore.Load", domain.ErrStoreFailure, err.Error())
	}

	exchanges := make([]domain.Exchange, 0, len(items))
	for _, item := range items {
		var ex domain.Exchange
		if err := json.Unmarshal([]byte(item), &ex); err != nil {
			s.logger.Warn("skipping corrupt history entry",
				"session_id", sessionID, "error", err)
			continue
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, nil
}

// Append implements domain.ConversationStore. RPUSH and LTRIM run in
// one pipeline so the bound holds under concurrent appends.
func (s *RedisStore) Append(ctx context.Context, sessionID string, ex domain.Exchange) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return domain.NewDomainError("RedisStore.Append", domain.ErrStoreFailure, err.Error())
	}

	key := historyKeyPrefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -s.maxHistory, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.NewDomainError("RedisStore.Append", domain.ErrStoreFailure, err.Error())
	}
	return nil
}
