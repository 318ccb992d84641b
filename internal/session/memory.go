package session

import (
	"context"
	"sync"

	"expensetracker/internal/core"
)

// MemoryStore keeps session state for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	session *core.Session
	token   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadSession(context.Context) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

func (s *MemoryStore) SaveSession(_ context.Context, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &sess
	return nil
}

func (s *MemoryStore) ClearSession(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

func (s *MemoryStore) LoadToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) SaveToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) ClearToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
