package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store persists batches of records.
type Store interface {
	InsertBatch(ctx context.Context, records []Record) (int, error)
}

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ws_messages (
	id             BIGSERIAL PRIMARY KEY,
	received_at    TIMESTAMPTZ NOT NULL,
	msg_type       TEXT NOT NULL,
	correlation_id TEXT,
	backend_ts     BIGINT,
	payload        JSONB
);
CREATE INDEX IF NOT EXISTS ws_messages_type_received_idx
	ON ws_messages (msg_type, received_at);
`

const insertSQL = `
	INSERT INTO ws_messages (received_at, msg_type, correlation_id, backend_ts, payload)
	VALUES ($1, $2, $3, $4, $5)
`

// PostgresStore writes records to the ws_messages table.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the ws_messages table and index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create ws_messages: %w", err)
	}
	return nil
}

// InsertBatch inserts records using pgx.Batch and returns the number of rows
// written.
func (s *PostgresStore) InsertBatch(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertSQL, r.ReceivedAt, r.Type, nullable(r.ID), timestamp(r.Timestamp), payload(r))
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range records {
		ct, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert ws_messages: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}

	return inserted, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timestamp(ts int64) any {
	if ts == 0 {
		return nil
	}
	return ts
}

// payload returns the JSON bytes or nil for SQL NULL.
func payload(r Record) any {
	if len(r.Data) == 0 {
		return nil
	}
	return []byte(r.Data)
}
