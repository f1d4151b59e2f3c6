package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrFlowNotFound means no pending authorization exists for a state value:
// it was never issued, already used, or expired.
var ErrFlowNotFound = errors.New("pending authorization not found")

// FlowStore keeps the PKCE verifier of a pending authorization between the
// authorize redirect and the callback. Take is one-shot.
type FlowStore interface {
	Put(ctx context.Context, state, verifier string) error
	Take(ctx context.Context, state string) (string, error)
}

type memoryEntry struct {
	verifier  string
	expiresAt time.Time
}

// MemoryFlowStore is a process-local FlowStore for single-instance deployments.
type MemoryFlowStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryFlowStore creates the store.
func NewMemoryFlowStore(ttl time.Duration) *MemoryFlowStore {
	return &MemoryFlowStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryFlowStore) Put(_ context.Context, state, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.entries[state] = memoryEntry{verifier: verifier, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryFlowStore) Take(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[state]
	if !ok {
		return "", ErrFlowNotFound
	}
	delete(s.entries, state)
	if s.now().After(entry.expiresAt) {
		return "", ErrFlowNotFound
	}
	return entry.verifier, nil
}

// RedisFlowStore shares pending authorizations between instances.
type RedisFlowStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisFlowStore creates the store.
func NewRedisFlowStore(client *redis.Client, ttl time.Duration) *RedisFlowStore {
	return &RedisFlowStore{client: client, ttl: ttl, prefix: "oauth:flow:"}
}

func (s *RedisFlowStore) Put(ctx context.Context, state, verifier string) error {
	return s.client.Set(ctx, s.prefix+state, verifier, s.ttl).Err()
}

func (s *RedisFlowStore) Take(ctx context.Context, state string) (string, error) {
	verifier, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrFlowNotFound
	}
	if err != nil {
		return "", err
	}
	return verifier, nil
}
