package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks which issued token ids are still active
type SessionStore interface {
	// Save records the token id as active until expiresAt
	Save(ctx context.Context, id string, expiresAt time.Time) error

	// Active reports whether the token id was saved, has not expired and has not been revoked
	Active(ctx context.Context, id string) (bool, error)

	// Revoke removes the token id
	Revoke(ctx context.Context, id string) error
}

// MemoryStore is an in-process SessionStore. Sessions do not survive restarts.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]time.Time), now: time.Now}
}

// Save implements SessionStore
func (s *MemoryStore) Save(_ context.Context, id string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.sessions {
		if !exp.After(now) {
			delete(s.sessions, k)
		}
	}
	s.sessions[id] = expiresAt
	return nil
}

// Active implements SessionStore
func (s *MemoryStore) Active(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.sessions[id]
	if !ok {
		return false, nil
	}
	if !exp.After(s.now()) {
		delete(s.sessions, id)
		return false, nil
	}
	return true, nil
}

// Revoke implements SessionStore
func (s *MemoryStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// RedisStore implements SessionStore on Redis keys with a TTL
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and verifies the connection
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "site-admin-session:"}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Save implements SessionStore
func (s *RedisStore) Save(ctx context.Context, id string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.key(id), expiresAt.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Active implements SessionStore
func (s *RedisStore) Active(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return n == 1, nil
}

// Revoke implements SessionStore
func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
