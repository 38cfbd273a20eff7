package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

// IngestDocumentUseCase parses documents and publishes them for the worker
// pool instead of processing them inline.
type IngestDocumentUseCase struct {
	parser    ports.DocumentParser
	publisher ports.DocumentPublisher
}

func NewIngestDocumentUseCase(
	parser ports.DocumentParser,
	publisher ports.DocumentPublisher,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		parser:    parser,
		publisher: publisher,
	}
}

func (uc *IngestDocumentUseCase) Upload(ctx context.Context, filename string, body io.Reader) (domain.Document, error) {
	doc, err := uc.parser.Parse(ctx, filename, body)
	if err != nil {
		return domain.Document{}, err
	}
	if err := uc.publisher.PublishDocument(ctx, doc); err != nil {
		return domain.Document{}, fmt.Errorf("publish document %s: %w", doc.ID, err)
	}
	slog.Info("document_enqueued", "email_id", doc.ID, "attachments", len(doc.Attachments))
	return doc, nil
}

// EnqueueAll publishes every loadable document from source. Documents that
// fail to load are reported and skipped; a publish failure stops the run.
func (uc *IngestDocumentUseCase) EnqueueAll(ctx context.Context, source ports.DocumentSource) (domain.EnqueueReport, error) {
	report := domain.EnqueueReport{
		Published: []string{},
		Errors:    []domain.ErrorRecord{},
	}

	refs, err := source.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list documents: %w", err)
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		doc, err := source.Load(ctx, ref)
		if err != nil {
			slog.Warn("enqueue_skipped", "email_id", ref.ID, "error", err)
			report.Errors = append(report.Errors, domain.ErrorRecord{EmailID: ref.ID, Error: err.Error()})
			continue
		}
		if err := uc.publisher.PublishDocument(ctx, doc); err != nil {
			return report, fmt.Errorf("publish document %s: %w", doc.ID, err)
		}
		report.Published = append(report.Published, doc.ID)
	}
	return report, nil
}
