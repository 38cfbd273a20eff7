package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

type modelFake struct {
	raw   string
	err   error
	block bool
	calls int
}

func (f *modelFake) ClassifyRequest(ctx context.Context, _, _ string) (string, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.raw, nil
}

type fallbackFake struct {
	requestType string
	calls       int
}

func (f *fallbackFake) Fallback(string, string) domain.ClassificationResult {
	f.calls++
	requestType := f.requestType
	if requestType == "" {
		requestType = domain.OthersCategory
	}
	return domain.ClassificationResult{
		PrimaryRequest: domain.RequestRecord{
			RequestType:    requestType,
			SubRequestType: domain.OthersCategory,
			PrimaryIntent:  "Identified via rule: fake",
			Priority:       domain.PriorityMedium,
			Confidence:     75,
			Reasoning:      "fake",
		},
		SecondaryRequests: []domain.RequestRecord{},
		Source:            domain.SourceRuleFallback,
		SchemaVersion:     domain.ClassificationSchemaV1,
	}
}

type routerFake struct {
	teams map[string]string
}

func (f *routerFake) Canonicalize(requestType string) (string, bool) {
	if _, ok := f.teams[requestType]; ok {
		return requestType, true
	}
	return requestType, false
}

func (f *routerFake) Route(requestType string) string {
	if team, ok := f.teams[requestType]; ok {
		return team
	}
	return "General Servicing Team"
}

type dedupStoreFake struct {
	mu        sync.Mutex
	records   []domain.DedupRecord
	findErr   error
	insertErr error
	clearErr  error
	cleared   int
}

func (f *dedupStoreFake) FindByHash(_ context.Context, hash string) (*domain.DedupRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.records {
		if f.records[i].ContentHash == hash {
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *dedupStoreFake) Insert(_ context.Context, record domain.DedupRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.records = append(f.records, record)
	return nil
}

func (f *dedupStoreFake) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared++
	f.records = nil
	return nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type delivererFake struct {
	mu        sync.Mutex
	delivered []string
	err       error
}

func (f *delivererFake) Deliver(_ context.Context, record domain.OutputRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, record.EmailID)
	return f.err
}

type normalizerFake struct{}

func (normalizerFake) Normalize(text string) string { return strings.TrimSpace(text) }

type extractorFake struct {
	fields domain.ExtractedFields
	err    error
	panics bool
}

func (f *extractorFake) Extract(context.Context, string) (domain.ExtractedFields, error) {
	if f.panics {
		panic("extractor exploded")
	}
	fields := f.fields
	if fields.Amounts == nil {
		fields = domain.EmptyExtractedFields()
	}
	return fields, f.err
}

type observerFake struct {
	mu         sync.Mutex
	started    int
	finished   int
	failed     int
	sources    []domain.ClassificationSource
	duplicates int
	deliveries int
}

func (f *observerFake) DocumentStarted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *observerFake) DocumentFinished(err error, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
	if err != nil {
		f.failed++
	}
}

func (f *observerFake) ObserveClassification(source domain.ClassificationSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
}

func (f *observerFake) ObserveDuplicate(isDuplicate bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if isDuplicate {
		f.duplicates++
	}
}

func (f *observerFake) ObserveDelivery(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries++
}

var errStoreDown = errors.New("store down")
