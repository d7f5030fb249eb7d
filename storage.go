package authstate

import (
	"context"
	"sync"
)

// MemorySessionStorage keeps the session in process memory.
type MemorySessionStorage struct {
	mu      sync.RWMutex
	session *Session
}

// NewMemorySessionStorage returns an empty in memory storage
func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{}
}

// Load returns a copy of the stored session, nil when there is none
func (m *MemorySessionStorage) Load(_ context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Clone(), nil
}

// Save stores a copy of session
func (m *MemorySessionStorage) Save(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = session.Clone()
	return nil
}

// Clear removes the stored session
func (m *MemorySessionStorage) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
