package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

// DedupRepository keeps the duplicate cache in one JSON file that is read
// and rewritten whole on every operation. Records are stored as an ordered
// array; a legacy object keyed by document id is also accepted on read and
// its key order is preserved.
type DedupRepository struct {
	path string
	mu   sync.Mutex
}

func NewDedupRepository(path string) (*DedupRepository, error) {
	if path == "" {
		path = "./data/outputs/dedup_cache.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DedupRepository{path: path}, nil
}

func (r *DedupRepository) FindByHash(_ context.Context, hash string) (*domain.DedupRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ContentHash == hash {
			rec := records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (r *DedupRepository) Insert(_ context.Context, record domain.DedupRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		slog.Warn("dedup_cache_unreadable", "path", r.path, "error", err)
		records = nil
	}

	replaced := false
	for i := range records {
		if records[i].DocumentID == record.DocumentID {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}
	return r.save(records)
}

func (r *DedupRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save([]domain.DedupRecord{})
}

func (r *DedupRepository) Close() error {
	return nil
}

func (r *DedupRepository) load() ([]domain.DedupRecord, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	records, err := decodeRecords(raw)
	if err != nil {
		slog.Warn("dedup_cache_corrupt", "path", r.path, "error", err)
		return nil, nil
	}
	return records, nil
}

func (r *DedupRepository) save(records []domain.DedupRecord) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

func decodeRecords(raw []byte) ([]domain.DedupRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var records []domain.DedupRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode cache array: %w", err)
		}
		return records, nil
	}
	return decodeLegacyObject(trimmed)
}

// legacyEntry is one value of the id-keyed cache object. Older files name
// the digest "body_hash"; "hash" is accepted as well.
type legacyEntry struct {
	RequestType string `json:"request_type"`
	Date        string `json:"date"`
	BodyHash    string `json:"body_hash"`
	Hash        string `json:"hash"`
}

func (e legacyEntry) digest() string {
	if e.BodyHash != "" {
		return e.BodyHash
	}
	return e.Hash
}

func decodeLegacyObject(raw []byte) ([]domain.DedupRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode cache object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode cache object: unexpected token %v", tok)
	}

	var records []domain.DedupRecord
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode cache key: %w", err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("decode cache key: unexpected token %v", keyTok)
		}
		var entry legacyEntry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decode cache entry %s: %w", id, err)
		}
		records = append(records, domain.DedupRecord{
			DocumentID:  id,
			ContentHash: entry.digest(),
			RequestType: entry.RequestType,
			Date:        entry.Date,
		})
	}
	return records, nil
}
