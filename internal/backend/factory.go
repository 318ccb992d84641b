package backend

import (
	"context"
	"fmt"

	"expensetracker/internal/log"
	"expensetracker/internal/session"
	"expensetracker/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSessionRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite session store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite session store",
		log.FieldBackend, SQLiteBackend,
		"db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	f.logger.InfoContext(ctx, "Initialized memory session store", log.FieldBackend, MemoryBackend)

	return &BackendResult{
		Store:   session.NewMemoryStore(),
		Cleanup: nil, // Nothing to release
	}, nil
}
