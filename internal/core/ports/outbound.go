package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

// ClassificationModel asks an external model for a structured classification
// and returns the raw JSON text it produced.
type ClassificationModel interface {
	ClassifyRequest(ctx context.Context, subject, body string) (string, error)
}

// AmountTagger labels the role of amount, as written in the text, from the
// excerpt around it.
type AmountTagger interface {
	TagAmount(ctx context.Context, excerpt, amount string) (string, error)
}

// EntityRecognizer finds named entities in text.
type EntityRecognizer interface {
	Recognize(ctx context.Context, text string) ([]domain.Entity, error)
}

// TextNormalizer produces the canonical text all later stages consume.
type TextNormalizer interface {
	Normalize(text string) string
}

// FieldExtractor pulls financial fields from normalized text. It always
// returns a usable value; the error only reports what was skipped.
type FieldExtractor interface {
	Extract(ctx context.Context, text string) (domain.ExtractedFields, error)
}

// FallbackClassifier classifies deterministically without external calls.
type FallbackClassifier interface {
	Fallback(subject, body string) domain.ClassificationResult
}

// TeamRouter resolves request types to owning teams.
type TeamRouter interface {
	Canonicalize(requestType string) (string, bool)
	Route(requestType string) string
}

// DedupStore persists the duplicate cache. Records are kept in insertion order.
type DedupStore interface {
	FindByHash(ctx context.Context, hash string) (*domain.DedupRecord, error)
	Insert(ctx context.Context, record domain.DedupRecord) error
	Clear(ctx context.Context) error
}

// ObjectStorage stores output artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Deliverer forwards a finished record to a downstream system.
type Deliverer interface {
	Deliver(ctx context.Context, record domain.OutputRecord) error
}

// DocumentSource enumerates and parses raw documents.
type DocumentSource interface {
	List(ctx context.Context) ([]domain.SourceRef, error)
	Load(ctx context.Context, ref domain.SourceRef) (domain.Document, error)
}

// MailSource is a DocumentSource over a live mailbox. List returns messages
// not yet seen; MarkSeen acknowledges one once it has been handled.
type MailSource interface {
	DocumentSource
	MarkSeen(ctx context.Context, ref domain.SourceRef) error
}

// DocumentParser turns an uploaded file into a Document.
type DocumentParser interface {
	Parse(ctx context.Context, filename string, body io.Reader) (domain.Document, error)
}

// DocumentPublisher hands a parsed document to the asynchronous worker pool.
type DocumentPublisher interface {
	PublishDocument(ctx context.Context, doc domain.Document) error
}

// MessageQueue consumes documents and publishes finished records.
type MessageQueue interface {
	SubscribeDocuments(ctx context.Context, handler func(context.Context, domain.Document) error) error
	PublishRecord(ctx context.Context, record domain.OutputRecord) error
}

// PipelineObserver receives per-stage outcomes for metrics.
type PipelineObserver interface {
	DocumentStarted()
	DocumentFinished(err error, elapsed time.Duration)
	ObserveClassification(source domain.ClassificationSource)
	ObserveDuplicate(isDuplicate bool)
	ObserveDelivery(err error)
}
