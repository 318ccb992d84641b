package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getValue = `-- name: GetValue :one
SELECT value FROM session_kv WHERE key = ?
`

func (q *Queries) GetValue(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getValue, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const putValue = `-- name: PutValue :exec
INSERT INTO session_kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

type PutValueParams struct {
	Key   string
	Value string
}

func (q *Queries) PutValue(ctx context.Context, arg PutValueParams) error {
	_, err := q.db.ExecContext(ctx, putValue, arg.Key, arg.Value)
	return err
}

const deleteValue = `-- name: DeleteValue :exec
DELETE FROM session_kv WHERE key = ?
`

func (q *Queries) DeleteValue(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteValue, key)
	return err
}
