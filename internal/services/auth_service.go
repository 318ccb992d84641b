package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"expensetracker/internal/api"
	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/session"
)

var (
	ErrEmptyName        = errors.New("name is required")
	ErrInvalidEmail     = errors.New("a valid email is required")
	ErrEmptyPassword    = errors.New("password is required")
	ErrPasswordMismatch = errors.New("passwords don't match")
	ErrMissingToken     = errors.New("reset token is required")
)

type AuthAPI interface {
	Register(ctx context.Context, req api.RegisterRequest) (core.Session, error)
	Login(ctx context.Context, req api.LoginRequest) (core.Session, error)
	Profile(ctx context.Context) (api.Profile, error)
	ForgotPassword(ctx context.Context, email string) (api.MessageResponse, error)
	ResetPassword(ctx context.Context, token, password string) (api.MessageResponse, error)
}

// AuthService authenticates against the remote service and owns the session
// lifecycle. Every identity change resets the data cache, so one user's
// cached data is never shown to another.
type AuthService struct {
	api     AuthAPI
	session *session.Manager
	cache   *cache.Store
	logger  *log.Logger
}

func NewAuthService(api AuthAPI, sessions *session.Manager, store *cache.Store, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuthService{
		api:     api,
		session: sessions,
		cache:   store,
		logger:  logger.WithComponent(log.ComponentAuth),
	}
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (core.Session, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	switch {
	case name == "":
		return core.Session{}, ErrEmptyName
	case !validEmail(email):
		return core.Session{}, ErrInvalidEmail
	case password == "":
		return core.Session{}, ErrEmptyPassword
	}

	sess, err := s.api.Register(ctx, api.RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return core.Session{}, fmt.Errorf("signup: %w", err)
	}
	return sess, s.start(ctx, sess)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (core.Session, error) {
	email = strings.TrimSpace(email)
	switch {
	case !validEmail(email):
		return core.Session{}, ErrInvalidEmail
	case password == "":
		return core.Session{}, ErrEmptyPassword
	}

	sess, err := s.api.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		s.logger.WarnContext(ctx, "Login failed", log.FieldOperation, log.OpLogin, log.FieldError, err.Error())
		return core.Session{}, fmt.Errorf("login: %w", err)
	}
	return sess, s.start(ctx, sess)
}

func (s *AuthService) start(ctx context.Context, sess core.Session) error {
	s.cache.Reset()
	if err := s.session.Set(ctx, sess); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Logout clears the session and every cached query.
func (s *AuthService) Logout(ctx context.Context) error {
	s.cache.Reset()
	return s.session.Clear(ctx)
}

// Profile refreshes name, email and premium flag from the service.
func (s *AuthService) Profile(ctx context.Context) (core.Session, error) {
	cur := s.session.Current()
	if !cur.Valid() {
		return core.Session{}, session.ErrInvalidSession
	}
	p, err := s.api.Profile(ctx)
	if err != nil {
		return *cur, fmt.Errorf("profile: %w", err)
	}
	if p.Name != "" {
		cur.Name = p.Name
	}
	if p.Email != "" {
		cur.Email = p.Email
	}
	if p.IsPremium && !cur.IsPremium {
		if err := s.session.SetPremium(ctx, true); err != nil {
			return *cur, err
		}
		cur.IsPremium = true
	}
	return *cur, nil
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return "", ErrInvalidEmail
	}
	res, err := s.api.ForgotPassword(ctx, email)
	if err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}
	if res.Message == "" {
		res.Message = "Password reset link sent to your email"
	}
	return res.Message, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (string, error) {
	switch {
	case strings.TrimSpace(token) == "":
		return "", ErrMissingToken
	case password == "":
		return "", ErrEmptyPassword
	case password != confirm:
		return "", ErrPasswordMismatch
	}
	res, err := s.api.ResetPassword(ctx, token, password)
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	if res.Message == "" {
		res.Message = "Password has been reset"
	}
	return res.Message, nil
}
