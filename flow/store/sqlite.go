package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite-backed Store, suitable for single-process
// durable workflows and local development ahead of migrating to a
// distributed backend.
//
// It enables WAL mode and keeps a single pooled connection, so a load
// waits for any save in progress; each save runs in one transaction, and
// a reader observes either the prior row or the new one, never a torn
// write, satisfying the store contract's atomicity requirement.
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path
// and ensures the checkpoint table exists. Pass ":memory:" for an
// ephemeral database useful in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable wal: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flow_checkpoints (
			flow_id         TEXT PRIMARY KEY,
			idempotency_key TEXT NOT NULL,
			data            BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, blob Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var existingKey string
	err = tx.QueryRowContext(ctx,
		`SELECT idempotency_key FROM flow_checkpoints WHERE flow_id = ?`, blob.FlowID,
	).Scan(&existingKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: check idempotency: %w", err)
	}
	if err == nil && blob.IdempotencyKey != "" && existingKey == blob.IdempotencyKey {
		return ErrIdempotencyViolation
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO flow_checkpoints (flow_id, idempotency_key, data)
		VALUES (?, ?, ?)
		ON CONFLICT(flow_id) DO UPDATE SET idempotency_key = excluded.idempotency_key, data = excluded.data
	`, blob.FlowID, blob.IdempotencyKey, blob.Data); err != nil {
		return fmt.Errorf("store: save checkpoint: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context, flowID string) (Blob, error) {
	var blob Blob
	blob.FlowID = flowID
	err := s.db.QueryRowContext(ctx,
		`SELECT idempotency_key, data FROM flow_checkpoints WHERE flow_id = ?`, flowID,
	).Scan(&blob.IdempotencyKey, &blob.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, ErrNotFound
	}
	if err != nil {
		return Blob{}, fmt.Errorf("store: load checkpoint: %w", err)
	}
	return blob, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, flowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_checkpoints WHERE flow_id = ?`, flowID)
	if err != nil {
		return fmt.Errorf("store: delete checkpoint: %w", err)
	}
	return nil
}
