package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

// WatchUseCase polls a mailbox and processes each unseen message in arrival
// order. A message is marked seen only once it has a record, or when it can
// never be parsed.
type WatchUseCase struct {
	source    ports.MailSource
	processor ports.DocumentProcessor
}

func NewWatchUseCase(source ports.MailSource, processor ports.DocumentProcessor) *WatchUseCase {
	return &WatchUseCase{source: source, processor: processor}
}

// Poll runs one pass over the unseen messages.
func (uc *WatchUseCase) Poll(ctx context.Context) (domain.BatchReport, error) {
	report := domain.BatchReport{
		RunID:   uuid.NewString(),
		Records: []domain.OutputRecord{},
		Errors:  []domain.ErrorRecord{},
	}
	logger := slog.With("run_id", report.RunID)

	refs, err := uc.source.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list unseen messages: %w", err)
	}
	if len(refs) == 0 {
		logger.Debug("watch_no_new_messages")
		return report, nil
	}
	logger.Info("watch_poll_started", "messages", len(refs))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		record, err := uc.handle(ctx, logger, ref)
		if err != nil {
			report.Errors = append(report.Errors, domain.ErrorRecord{EmailID: ref.ID, Error: err.Error()})
			continue
		}
		report.Records = append(report.Records, record)
	}

	logger.Info("watch_poll_finished", "processed", len(report.Records), "failed", len(report.Errors))
	return report, nil
}

func (uc *WatchUseCase) handle(ctx context.Context, logger *slog.Logger, ref domain.SourceRef) (domain.OutputRecord, error) {
	doc, err := uc.source.Load(ctx, ref)
	if err != nil {
		logger.Warn("document_ingest_failed", "email_id", ref.ID, "location", ref.Location, "error", err)
		if domain.IsKind(err, domain.ErrParse) {
			uc.markSeen(ctx, logger, ref)
		}
		return domain.OutputRecord{}, err
	}

	record, err := uc.processor.Process(ctx, doc)
	if err != nil {
		logger.Error("document_failed", "email_id", ref.ID, "error", err)
		return domain.OutputRecord{}, err
	}
	uc.markSeen(ctx, logger, ref)
	return record, nil
}

// markSeen failures are logged only; the next poll sees the message again and
// the duplicate cache catches it.
func (uc *WatchUseCase) markSeen(ctx context.Context, logger *slog.Logger, ref domain.SourceRef) {
	if err := uc.source.MarkSeen(ctx, ref); err != nil {
		logger.Warn("mark_seen_failed", "email_id", ref.ID, "error", err)
	}
}

// Run polls immediately and then every interval until ctx is done. Failed
// polls are logged and retried on the next tick. onReport may be nil.
func (uc *WatchUseCase) Run(ctx context.Context, interval time.Duration, onReport func(domain.BatchReport)) error {
	if interval <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "watch mailbox", errors.New("interval must be positive"))
	}
	slog.Info("watch_started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		report, err := uc.Poll(ctx)
		switch {
		case ctx.Err() != nil:
			slog.Info("watch_stopped")
			return nil
		case err != nil:
			slog.Error("watch_poll_failed", "error", err)
		case onReport != nil && (len(report.Records) > 0 || len(report.Errors) > 0):
			onReport(report)
		}

		select {
		case <-ctx.Done():
			slog.Info("watch_stopped")
			return nil
		case <-ticker.C:
		}
	}
}
