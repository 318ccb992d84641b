package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"expensetracker/internal/core"
	"expensetracker/internal/log"

	_ "modernc.org/sqlite"
)

const (
	keySession = "session"
	keyToken   = "auth_token"
)

// SessionRepository persists the session identity and the auth token as two
// independent rows, so either can be cleared without the other.
type SessionRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSessionRepository(dbPath string, logger *log.Logger) (*SessionRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := MigrateSessionSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	r := &SessionRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}
	r.logger.Debug("Session schema ready", "db_path", dbPath, "schema_version", version)
	return r, nil
}

func (r *SessionRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadSession returns nil without error when nothing is stored.
func (r *SessionRepository) LoadSession(ctx context.Context) (*core.Session, error) {
	raw, err := r.queries.GetValue(ctx, keySession)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s core.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		// A corrupt row is treated as logged out.
		r.logger.WarnContext(ctx, "Discarding unreadable session", log.FieldError, err.Error())
		return nil, nil
	}
	return &s, nil
}

func (r *SessionRepository) SaveSession(ctx context.Context, s core.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.queries.PutValue(ctx, PutValueParams{Key: keySession, Value: string(raw)}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	r.logger.DebugContext(ctx, "Session saved", log.FieldUserID, s.UserID)
	return nil
}

func (r *SessionRepository) ClearSession(ctx context.Context) error {
	if err := r.queries.DeleteValue(ctx, keySession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// LoadToken returns "" without error when no token is stored.
func (r *SessionRepository) LoadToken(ctx context.Context) (string, error) {
	tok, err := r.queries.GetValue(ctx, keyToken)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return tok, nil
}

func (r *SessionRepository) SaveToken(ctx context.Context, token string) error {
	if err := r.queries.PutValue(ctx, PutValueParams{Key: keyToken, Value: token}); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (r *SessionRepository) ClearToken(ctx context.Context) error {
	if err := r.queries.DeleteValue(ctx, keyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
