package mpesa

import (
	"context"
	"sync"
	"time"
)

// TokenStore caches gateway access tokens.
type TokenStore interface {
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string, ttl time.Duration) error
	Invalidate(ctx context.Context)
}

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{now: time.Now}
}

func (s *MemoryTokenStore) Get(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" || !s.now().Before(s.expiresAt) {
		return "", false, nil
	}
	return s.token, true, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.expiresAt = s.now().Add(ttl)
	return nil
}

func (s *MemoryTokenStore) Invalidate(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
}
