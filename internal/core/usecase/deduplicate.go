package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

// Deduplicator detects exact resubmissions by content hash. The lookup and
// insert happen under one mutex so concurrent documents observe a total
// insertion order.
type Deduplicator struct {
	store  ports.DedupStore
	policy domain.DedupPolicy
	mu     sync.Mutex
}

func NewDeduplicator(store ports.DedupStore, policy domain.DedupPolicy) *Deduplicator {
	if policy.NearDuplicateConfigured() {
		slog.Info("near_duplicate_policy_not_enforced",
			"similarity_threshold", policy.SimilarityThreshold,
			"date_window_days", policy.DateWindowDays,
		)
	}
	return &Deduplicator{store: store, policy: policy}
}

// ContentHash is the hex SHA-256 digest of normalized body text.
func ContentHash(normalizedText string) string {
	sum := sha256.Sum256([]byte(normalizedText))
	return hex.EncodeToString(sum[:])
}

func (d *Deduplicator) Check(ctx context.Context, documentID, normalizedText, requestType, date string) (domain.DuplicationVerdict, error) {
	hash := ContentHash(normalizedText)

	d.mu.Lock()
	defer d.mu.Unlock()

	match, findErr := d.store.FindByHash(ctx, hash)
	if findErr != nil {
		findErr = domain.WrapError(domain.ErrDeduplication, "lookup cache", findErr)
		slog.Warn("dedup_lookup_failed", "email_id", documentID, "error", findErr)
		match = nil
	}
	if match != nil {
		return domain.ExactDuplicate(match.DocumentID), nil
	}

	insertErr := d.store.Insert(ctx, domain.DedupRecord{
		DocumentID:  documentID,
		ContentHash: hash,
		RequestType: requestType,
		Date:        date,
	})
	if insertErr != nil {
		insertErr = domain.WrapError(domain.ErrDeduplication, "persist cache", insertErr)
		return domain.DegradedVerdict(insertErr), insertErr
	}
	if findErr != nil {
		return domain.DegradedVerdict(findErr), findErr
	}
	return domain.UniqueVerdict(), nil
}

// ResetCache empties the store.
func (d *Deduplicator) ResetCache(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.Clear(ctx); err != nil {
		return domain.WrapError(domain.ErrDeduplication, "clear cache", err)
	}
	return nil
}
