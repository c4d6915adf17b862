package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and by throwaway client
// instances that should not leave a session file behind.
type MemoryStore struct {
	mu      sync.Mutex
	current *Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.current = &cp
	return nil
}

func (m *MemoryStore) Load(ctx context.Context) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, false, nil
	}
	cp := *m.current
	return &cp, true, nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}
