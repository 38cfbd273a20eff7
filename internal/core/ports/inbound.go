package ports

import (
	"context"
	"io"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

// DocumentProcessor is the inbound contract for triaging a single document.
type DocumentProcessor interface {
	Process(ctx context.Context, doc domain.Document) (domain.OutputRecord, error)
}

// BatchRunner processes every document available from the configured source.
type BatchRunner interface {
	Run(ctx context.Context) (domain.BatchReport, error)
}

// CacheAdmin exposes maintenance of the duplicate cache.
type CacheAdmin interface {
	ResetCache(ctx context.Context) error
}

// DocumentIngestor accepts documents for asynchronous triage.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename string, body io.Reader) (domain.Document, error)
	EnqueueAll(ctx context.Context, source DocumentSource) (domain.EnqueueReport, error)
}
