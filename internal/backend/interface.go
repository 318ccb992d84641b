// Package backend picks where the signed-in session is kept between runs.
package backend

import (
	"context"

	"expensetracker/internal/session"
)

// CleanupFunc releases whatever the session store holds open.
type CleanupFunc func() error

// BackendResult is a ready session store. Cleanup is nil when the store
// owns nothing.
type BackendResult struct {
	Store   session.Store
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config selects the session store. SQLiteDBPath is only read by the sqlite
// store.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
}

// BackendType names a session store: SESSION_BACKEND=sqlite|memory.
type BackendType string

const (
	// SQLiteBackend keeps the session across runs.
	SQLiteBackend BackendType = "sqlite"
	// MemoryBackend forgets the session when the process exits.
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	return bt == SQLiteBackend || bt == MemoryBackend
}
