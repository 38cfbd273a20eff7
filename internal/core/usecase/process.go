package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

// ProcessDocumentUseCase turns one Document into an OutputRecord.
type ProcessDocumentUseCase struct {
	normalizer ports.TextNormalizer
	extractor  ports.FieldExtractor
	classifier *ClassifyUseCase
	dedup      *Deduplicator
	router     ports.TeamRouter
	storage    ports.ObjectStorage
	deliverer  ports.Deliverer
	observer   ports.PipelineObserver
	now        func() time.Time
}

// NewProcessDocumentUseCase wires the pipeline. deliverer and observer may be
// nil.
func NewProcessDocumentUseCase(
	normalizer ports.TextNormalizer,
	extractor ports.FieldExtractor,
	classifier *ClassifyUseCase,
	dedup *Deduplicator,
	router ports.TeamRouter,
	storage ports.ObjectStorage,
	deliverer ports.Deliverer,
	observer ports.PipelineObserver,
) *ProcessDocumentUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ProcessDocumentUseCase{
		normalizer: normalizer,
		extractor:  extractor,
		classifier: classifier,
		dedup:      dedup,
		router:     router,
		storage:    storage,
		deliverer:  deliverer,
		observer:   observer,
		now:        time.Now,
	}
}

func (uc *ProcessDocumentUseCase) Process(ctx context.Context, doc domain.Document) (record domain.OutputRecord, err error) {
	if doc.ID == "" {
		return domain.OutputRecord{}, domain.WrapError(domain.ErrInvalidInput, "process document", errors.New("document id is empty"))
	}

	started := time.Now()
	uc.observer.DocumentStarted()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("document_panic", "email_id", doc.ID, "panic", r, "stack", string(debug.Stack()))
			record = domain.OutputRecord{}
			err = fmt.Errorf("process document %s: panic: %v", doc.ID, r)
		}
		uc.observer.DocumentFinished(err, time.Since(started))
	}()

	normalizedBody := uc.normalizer.Normalize(doc.BodyText)
	combinedText := doc.CombinedText(uc.normalizer.Normalize)

	fields, classification, err := uc.analyze(ctx, doc, normalizedBody, combinedText)
	if err != nil {
		return domain.OutputRecord{}, err
	}
	uc.observer.ObserveClassification(classification.Source)

	requestType := classification.PrimaryRequest.RequestType
	verdict, dedupErr := uc.dedup.Check(ctx, doc.ID, normalizedBody, requestType, doc.DateOrUnknown())
	if dedupErr != nil {
		slog.Warn("dedup_degraded", "email_id", doc.ID, "error", dedupErr)
	}
	uc.observer.ObserveDuplicate(verdict.IsDuplicate)

	record = domain.OutputRecord{
		EmailID:         doc.ID,
		Subject:         doc.Subject,
		From:            doc.Sender,
		To:              doc.Recipient,
		Date:            doc.SentAt,
		Classification:  classification,
		ExtractedFields: fields,
		AssignedTeam:    uc.router.Route(requestType),
		Duplication:     verdict,
		ProcessedAt:     uc.now().UTC(),
	}

	if err := uc.persist(ctx, record); err != nil {
		return domain.OutputRecord{}, err
	}
	uc.deliver(ctx, record)

	slog.Info("document_processed",
		"email_id", record.EmailID,
		"request_type", requestType,
		"source", classification.Source,
		"assigned_team", record.AssignedTeam,
		"is_duplicate", verdict.IsDuplicate,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return record, nil
}

// analyze runs extraction and classification concurrently. Neither stage
// fails the document; their errors are only logged.
func (uc *ProcessDocumentUseCase) analyze(
	ctx context.Context,
	doc domain.Document,
	normalizedBody, combinedText string,
) (domain.ExtractedFields, domain.ClassificationResult, error) {
	var (
		fields         domain.ExtractedFields
		classification domain.ClassificationResult
	)

	var g errgroup.Group
	g.Go(func() error {
		return recoverStage("extract", func() {
			var err error
			fields, err = uc.extractor.Extract(ctx, combinedText)
			if err != nil {
				slog.Warn("extraction_partial", "email_id", doc.ID, "error", err)
			}
		})
	})
	g.Go(func() error {
		return recoverStage("classify", func() {
			var err error
			classification, err = uc.classifier.Classify(ctx, doc.Subject, normalizedBody)
			if err != nil {
				slog.Warn("classification_degraded", "email_id", doc.ID, "error", err)
			}
		})
	})
	if err := g.Wait(); err != nil {
		return domain.ExtractedFields{}, domain.ClassificationResult{}, fmt.Errorf("analyze document %s: %w", doc.ID, err)
	}
	return fields, classification, nil
}

func (uc *ProcessDocumentUseCase) persist(ctx context.Context, record domain.OutputRecord) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output record: %w", err)
	}
	if err := uc.storage.Save(ctx, domain.OutputKey(record.EmailID), bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("persist output record: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) deliver(ctx context.Context, record domain.OutputRecord) {
	if uc.deliverer == nil {
		return
	}
	err := uc.deliverer.Deliver(ctx, record)
	uc.observer.ObserveDelivery(err)
	if err != nil {
		slog.Warn("delivery_failed", "email_id", record.EmailID, "error", err)
	}
}

func recoverStage(stage string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s stage panic: %v", stage, r)
		}
	}()
	fn()
	return nil
}

type noopObserver struct{}

func (noopObserver) DocumentStarted() {}
func (noopObserver) DocumentFinished(error, time.Duration) {}
func (noopObserver) ObserveClassification(domain.ClassificationSource) {}
func (noopObserver) ObserveDuplicate(bool) {}
func (noopObserver) ObserveDelivery(error) {}
