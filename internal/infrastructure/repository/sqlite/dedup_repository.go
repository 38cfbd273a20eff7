package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS dedup_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	email_id TEXT NOT NULL UNIQUE,
	hash TEXT NOT NULL,
	request_type TEXT NOT NULL,
	date TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dedup_records_hash ON dedup_records(hash, seq);
`

// DedupRepository stores the duplicate cache in a local SQLite database.
type DedupRepository struct {
	db *sql.DB
}

func Open(path string) (*DedupRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DedupRepository{db: db}, nil
}

func (r *DedupRepository) FindByHash(ctx context.Context, hash string) (*domain.DedupRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT email_id, hash, request_type, date
FROM dedup_records
WHERE hash = ?
ORDER BY seq ASC
LIMIT 1`, hash)

	var rec domain.DedupRecord
	if err := row.Scan(&rec.DocumentID, &rec.ContentHash, &rec.RequestType, &rec.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan dedup record: %w", err)
	}
	return &rec, nil
}

func (r *DedupRepository) Insert(ctx context.Context, record domain.DedupRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO dedup_records (email_id, hash, request_type, date)
VALUES (?, ?, ?, ?)
ON CONFLICT(email_id) DO UPDATE
SET hash = excluded.hash, request_type = excluded.request_type, date = excluded.date`,
		record.DocumentID, record.ContentHash, record.RequestType, record.Date)
	if err != nil {
		return fmt.Errorf("insert dedup record: %w", err)
	}
	return nil
}

func (r *DedupRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dedup_records`); err != nil {
		return fmt.Errorf("clear dedup records: %w", err)
	}
	return nil
}

func (r *DedupRepository) Close() error {
	return r.db.Close()
}
