// Package session keeps the authenticated identity and its bearer token.
//
// The identity and the token are persisted separately: the identity drives
// route gating and views, the token is attached to every API request.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

var ErrInvalidSession = errors.New("session needs a user id and a token")

// Store persists session state between runs.
type Store interface {
	LoadSession(ctx context.Context) (*core.Session, error)
	SaveSession(ctx context.Context, s core.Session) error
	ClearSession(ctx context.Context) error
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Manager is the in-process view of the session, backed by a Store.
type Manager struct {
	mu      sync.RWMutex
	store   Store
	current *core.Session
	token   string
	logger  *log.Logger
	now     func() time.Time
}

func NewManager(store Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		store:  store,
		logger: logger.WithComponent(log.ComponentSession),
		now:    time.Now,
	}
}

// Hydrate restores persisted state. A session whose JWT has expired is
// cleared instead of restored.
func (m *Manager) Hydrate(ctx context.Context) (*core.Session, error) {
	s, err := m.store.LoadSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("hydrate session: %w", err)
	}
	token, err := m.store.LoadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("hydrate token: %w", err)
	}

	if s != nil {
		if token == "" {
			token = s.Token
		}
		s.Token = token
	}

	switch {
	case s == nil || !s.Valid():
		m.set(nil, "")
		m.logger.DebugContext(ctx, "No stored session", log.FieldOperation, log.OpHydrate)
		return nil, nil
	case s.Expired(m.now()):
		m.logger.InfoContext(ctx, "Stored session expired, logging out",
			log.FieldOperation, log.OpHydrate,
			log.FieldUserID, s.UserID)
		return nil, m.Clear(ctx)
	}

	m.set(s, token)
	m.logger.DebugContext(ctx, "Session restored",
		log.FieldOperation, log.OpHydrate,
		log.FieldUserID, s.UserID)
	return m.Current(), nil
}

// Set persists a freshly authenticated session.
func (m *Manager) Set(ctx context.Context, s core.Session) error {
	s.UserID = strings.TrimSpace(s.UserID)
	if !s.Valid() {
		return ErrInvalidSession
	}
	if err := m.store.SaveSession(ctx, s); err != nil {
		return err
	}
	if err := m.store.SaveToken(ctx, s.Token); err != nil {
		return err
	}
	m.set(&s, s.Token)
	m.logger.InfoContext(ctx, "Session started",
		log.FieldOperation, log.OpLogin,
		log.FieldUserID, s.UserID)
	return nil
}

// Clear tears down identity and token, in memory first so a storage error
// never leaves the process logged in.
func (m *Manager) Clear(ctx context.Context) error {
	m.set(nil, "")
	err := errors.Join(m.store.ClearSession(ctx), m.store.ClearToken(ctx))
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.logger.InfoContext(ctx, "Session cleared", log.FieldOperation, log.OpLogout)
	return nil
}

// SetPremium records a premium upgrade on the current session.
func (m *Manager) SetPremium(ctx context.Context, premium bool) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrInvalidSession
	}
	m.current.IsPremium = premium
	s := *m.current
	m.mu.Unlock()
	return m.store.SaveSession(ctx, s)
}

func (m *Manager) set(s *core.Session, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s != nil {
		cp := *s
		s = &cp
	}
	m.current = s
	m.token = token
}

// Current returns a copy of the session, or nil when logged out.
func (m *Manager) Current() *core.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

// Token is the bearer token for API requests; it satisfies api.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// UserID returns "" when logged out.
func (m *Manager) UserID() string {
	if s := m.Current(); s != nil {
		return s.UserID
	}
	return ""
}

func (m *Manager) Authenticated() bool {
	return m.Current().Valid()
}
