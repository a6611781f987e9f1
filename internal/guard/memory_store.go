package guard

import (
	"context"
	"sync"
	"time"
)

type memoryLock struct {
	token     string
	expiresAt time.Time
}

// MemoryStore is a single-process LockStore.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[string]memoryLock), now: time.Now}
}

func (m *MemoryStore) TryLock(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[key]; ok && m.now().Before(l.expiresAt) {
		return false, nil
	}
	m.locks[key] = memoryLock{token: token, expiresAt: m.now().Add(ttl)}
	return true, nil
}

func (m *MemoryStore) Unlock(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[key]; ok && l.token == token {
		delete(m.locks, key)
	}
	return nil
}

func (m *MemoryStore) Locked(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	return ok && m.now().Before(l.expiresAt), nil
}
