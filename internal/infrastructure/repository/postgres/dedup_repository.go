package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

type DedupRepository struct {
	db *sql.DB
}

func NewDedupRepository(db *sql.DB) *DedupRepository {
	return &DedupRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DedupRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/cli startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2024120901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS dedup_records (
	seq BIGSERIAL,
	email_id TEXT PRIMARY KEY,
	hash TEXT NOT NULL,
	request_type TEXT NOT NULL,
	date TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dedup_records_hash ON dedup_records(hash, seq);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DedupRepository) FindByHash(ctx context.Context, hash string) (*domain.DedupRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT email_id, hash, request_type, date
FROM dedup_records
WHERE hash = $1
ORDER BY seq ASC
LIMIT 1
`, hash)

	var rec domain.DedupRecord
	if err := row.Scan(&rec.DocumentID, &rec.ContentHash, &rec.RequestType, &rec.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.WrapError(domain.ErrTemporary, "find dedup record", err)
	}
	return &rec, nil
}

func (r *DedupRepository) Insert(ctx context.Context, record domain.DedupRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO dedup_records (email_id, hash, request_type, date)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email_id) DO UPDATE
SET hash = EXCLUDED.hash, request_type = EXCLUDED.request_type, date = EXCLUDED.date
`, record.DocumentID, record.ContentHash, record.RequestType, record.Date)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "insert dedup record", err)
	}
	return nil
}

func (r *DedupRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dedup_records`); err != nil {
		return domain.WrapError(domain.ErrTemporary, "clear dedup records", err)
	}
	return nil
}

func (r *DedupRepository) Close() error {
	return r.db.Close()
}
