package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL-backed Store, the second illustrative durable
// backend alongside SQLiteStore. Schema and transaction shape mirror
// SQLiteStore; only the driver and upsert syntax differ.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against dsn and ensures the
// checkpoint table exists. dsn follows the go-sql-driver/mysql DSN
// format, e.g. "user:pass@tcp(127.0.0.1:3306)/dbname?parseTime=true".
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS flow_checkpoints (
			flow_id         VARCHAR(255) PRIMARY KEY,
			idempotency_key VARCHAR(255) NOT NULL,
			data            LONGBLOB NOT NULL
		) ENGINE=InnoDB
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) Save(ctx context.Context, blob Blob) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var existingKey string
	err = tx.QueryRowContext(ctx,
		`SELECT idempotency_key FROM flow_checkpoints WHERE flow_id = ? FOR UPDATE`, blob.FlowID,
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
		ON DUPLICATE KEY UPDATE idempotency_key = VALUES(idempotency_key), data = VALUES(data)
	`, blob.FlowID, blob.IdempotencyKey, blob.Data); err != nil {
		return fmt.Errorf("store: save checkpoint: %w", err)
	}

	return tx.Commit()
}

func (s *MySQLStore) Load(ctx context.Context, flowID string) (Blob, error) {
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

func (s *MySQLStore) Delete(ctx context.Context, flowID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flow_checkpoints WHERE flow_id = ?`, flowID)
	if err != nil {
		return fmt.Errorf("store: delete checkpoint: %w", err)
	}
	return nil
}
