package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

// BatchUseCase processes every document from a source with bounded
// concurrency. One document failing never cancels the others.
type BatchUseCase struct {
	source       ports.DocumentSource
	processor    ports.DocumentProcessor
	cache        ports.CacheAdmin
	resetOnStart bool
	concurrency  int
}

func NewBatchUseCase(
	source ports.DocumentSource,
	processor ports.DocumentProcessor,
	cache ports.CacheAdmin,
	resetOnStart bool,
	concurrency int,
) *BatchUseCase {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &BatchUseCase{
		source:       source,
		processor:    processor,
		cache:        cache,
		resetOnStart: resetOnStart,
		concurrency:  concurrency,
	}
}

type batchOutcome struct {
	record *domain.OutputRecord
	failed *domain.ErrorRecord
}

func (uc *BatchUseCase) Run(ctx context.Context) (domain.BatchReport, error) {
	report := domain.BatchReport{
		RunID:   uuid.NewString(),
		Records: []domain.OutputRecord{},
		Errors:  []domain.ErrorRecord{},
	}
	logger := slog.With("run_id", report.RunID)

	if uc.resetOnStart && uc.cache != nil {
		if err := uc.cache.ResetCache(ctx); err != nil {
			return report, fmt.Errorf("reset dedup cache: %w", err)
		}
		logger.Info("dedup_cache_reset")
	}

	refs, err := uc.source.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list documents: %w", err)
	}
	logger.Info("batch_started", "documents", len(refs), "concurrency", uc.concurrency)
	started := time.Now()

	outcomes := make([]batchOutcome, len(refs))
	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			outcomes[i] = uc.processOne(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		switch {
		case out.record != nil:
			report.Records = append(report.Records, *out.record)
		case out.failed != nil:
			report.Errors = append(report.Errors, *out.failed)
		}
	}

	logger.Info("batch_finished",
		"processed", len(report.Records),
		"failed", len(report.Errors),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

func (uc *BatchUseCase) processOne(ctx context.Context, ref domain.SourceRef) batchOutcome {
	if err := ctx.Err(); err != nil {
		return failedOutcome(ref.ID, err)
	}

	doc, err := uc.source.Load(ctx, ref)
	if err != nil {
		slog.Warn("document_ingest_failed", "email_id", ref.ID, "location", ref.Location, "error", err)
		return failedOutcome(ref.ID, err)
	}

	record, err := uc.processor.Process(ctx, doc)
	if err != nil {
		slog.Error("document_failed", "email_id", ref.ID, "error", err)
		return failedOutcome(ref.ID, err)
	}
	return batchOutcome{record: &record}
}

func failedOutcome(id string, err error) batchOutcome {
	return batchOutcome{failed: &domain.ErrorRecord{EmailID: id, Error: err.Error()}}
}
