package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

func newRepo(t *testing.T) (*DedupRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "dedup_cache.json")
	repo, err := NewDedupRepository(path)
	if err != nil {
		t.Fatalf("NewDedupRepository() error = %v", err)
	}
	return repo, path
}

func TestInsertThenFindReturnsFirstInInsertionOrder(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	for _, rec := range []domain.DedupRecord{
		{DocumentID: "a", ContentHash: "h1", RequestType: "Drawdown", Date: "2024-01-01"},
		{DocumentID: "b", ContentHash: "h2"},
		{DocumentID: "c", ContentHash: "h1"},
	} {
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert(%s) error = %v", rec.DocumentID, err)
		}
	}

	got, err := repo.FindByHash(ctx, "h1")
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if got == nil || got.DocumentID != "a" || got.RequestType != "Drawdown" {
		t.Fatalf("expected first record a, got %+v", got)
	}

	missing, err := repo.FindByHash(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected no match, got %+v, %v", missing, err)
	}
}

func TestCorruptFileIsTreatedAsEmpty(t *testing.T) {
	repo, path := newRepo(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	got, err := repo.FindByHash(context.Background(), "h1")
	if err != nil || got != nil {
		t.Fatalf("expected empty cache, got %+v, %v", got, err)
	}
	if err := repo.Insert(context.Background(), domain.DedupRecord{DocumentID: "x", ContentHash: "h1"}); err != nil {
		t.Fatalf("Insert() over corrupt file error = %v", err)
	}
	got, _ = repo.FindByHash(context.Background(), "h1")
	if got == nil || got.DocumentID != "x" {
		t.Fatalf("expected rewritten cache, got %+v", got)
	}
}

func TestLegacyObjectFormatKeepsKeyOrder(t *testing.T) {
	repo, path := newRepo(t)
	legacy := `{"zeta":{"request_type":"Others","date":"unknown","hash":"same"},"alpha":{"request_type":"Drawdown","date":"unknown","hash":"same"}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	got, err := repo.FindByHash(context.Background(), "same")
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if got == nil || got.DocumentID != "zeta" {
		t.Fatalf("expected first legacy key, got %+v", got)
	}
}

func TestLegacyBodyHashFileMatches(t *testing.T) {
	repo, path := newRepo(t)
	const digest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	legacy := `{
  "email_1": {"request_type": "Others", "date": "unknown", "body_hash": "` + digest + `"}
}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	got, err := repo.FindByHash(context.Background(), digest)
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if got == nil || got.DocumentID != "email_1" || got.RequestType != "Others" || got.Date != "unknown" {
		t.Fatalf("expected email_1 from body_hash file, got %+v", got)
	}
}

func TestClearEmptiesCache(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	_ = repo.Insert(ctx, domain.DedupRecord{DocumentID: "a", ContentHash: "h"})

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got, _ := repo.FindByHash(ctx, "h"); got != nil {
		t.Fatalf("expected empty cache after clear, got %+v", got)
	}
}
