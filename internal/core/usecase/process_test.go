package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

type processFixture struct {
	uc        *ProcessDocumentUseCase
	store     *dedupStoreFake
	storage   *storageFake
	deliverer *delivererFake
	observer  *observerFake
	extractor *extractorFake
}

func newProcessFixture(model *modelFake) *processFixture {
	f := &processFixture{
		store:     &dedupStoreFake{},
		storage:   &storageFake{},
		deliverer: &delivererFake{},
		observer:  &observerFake{},
		extractor: &extractorFake{},
	}
	router := &routerFake{teams: map[string]string{"Drawdown": "Loan Operations Team"}}
	var classifier *ClassifyUseCase
	if model != nil {
		classifier = NewClassifyUseCase(model, &fallbackFake{}, router, time.Second)
	} else {
		classifier = NewClassifyUseCase(nil, &fallbackFake{}, router, time.Second)
	}
	f.uc = NewProcessDocumentUseCase(
		normalizerFake{},
		f.extractor,
		classifier,
		NewDeduplicator(f.store, domain.DedupPolicy{}),
		router,
		f.storage,
		f.deliverer,
		f.observer,
	)
	f.uc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestProcessBuildsAndPersistsRecord(t *testing.T) {
	f := newProcessFixture(&modelFake{raw: validModelOutput})
	doc := domain.Document{
		ID:        "email1",
		Subject:   "Drawdown request",
		Sender:    "agent@bank.com",
		Recipient: "ops@lender.com",
		SentAt:    "2024-02-28",
		BodyText:  "  Please fund USD 1,000,000.  ",
	}

	record, err := f.uc.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if record.AssignedTeam != "Loan Operations Team" {
		t.Fatalf("unexpected team %q", record.AssignedTeam)
	}
	if record.Classification.Source != domain.SourceModel {
		t.Fatalf("expected model classification, got %q", record.Classification.Source)
	}
	if record.Duplication.IsDuplicate {
		t.Fatalf("first document must be unique")
	}
	if !record.ProcessedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected processed_at %v", record.ProcessedAt)
	}

	raw, ok := f.storage.objects["email1_output.json"]
	if !ok {
		t.Fatalf("expected artifact email1_output.json, got keys %v", f.storage.objects)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("artifact is not JSON: %v", err)
	}
	for _, key := range []string{"email_id", "subject", "from", "to", "date", "classification", "extracted_fields", "assigned_team", "duplication"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("artifact missing key %q", key)
		}
	}

	if len(f.deliverer.delivered) != 1 || f.deliverer.delivered[0] != "email1" {
		t.Fatalf("expected one delivery, got %v", f.deliverer.delivered)
	}
	if f.store.records[0].Date != "2024-02-28" || f.store.records[0].RequestType != "Drawdown" {
		t.Fatalf("unexpected dedup record %+v", f.store.records[0])
	}
	if f.observer.started != 1 || f.observer.finished != 1 || f.observer.failed != 0 {
		t.Fatalf("unexpected observer counts %+v", f.observer)
	}
}

func TestProcessMarksSecondIdenticalBodyAsDuplicate(t *testing.T) {
	f := newProcessFixture(nil)
	ctx := context.Background()

	if _, err := f.uc.Process(ctx, domain.Document{ID: "a", BodyText: "same"}); err != nil {
		t.Fatalf("Process(a) error = %v", err)
	}
	record, err := f.uc.Process(ctx, domain.Document{ID: "b", BodyText: " same "})
	if err != nil {
		t.Fatalf("Process(b) error = %v", err)
	}
	if !record.Duplication.IsDuplicate || *record.Duplication.MatchedWith != "a" {
		t.Fatalf("expected duplicate of a, got %+v", record.Duplication)
	}
	if f.store.records[0].Date != "unknown" {
		t.Fatalf("missing date should be stored as unknown, got %q", f.store.records[0].Date)
	}
}

func TestProcessFailsWhenArtifactCannotBePersisted(t *testing.T) {
	f := newProcessFixture(nil)
	f.storage.err = errors.New("disk full")

	_, err := f.uc.Process(context.Background(), domain.Document{ID: "email1", BodyText: "x"})
	if err == nil {
		t.Fatalf("expected persist error")
	}
	if len(f.deliverer.delivered) != 0 {
		t.Fatalf("nothing should be delivered when persistence fails")
	}
	if f.observer.failed != 1 {
		t.Fatalf("expected failure to be observed")
	}
}

func TestProcessKeepsRecordWhenDeliveryFails(t *testing.T) {
	f := newProcessFixture(nil)
	f.deliverer.err = domain.WrapError(domain.ErrDelivery, "webhook", errors.New("502"))

	record, err := f.uc.Process(context.Background(), domain.Document{ID: "email1", BodyText: "x"})
	if err != nil {
		t.Fatalf("delivery failure must not fail the document: %v", err)
	}
	if record.EmailID != "email1" {
		t.Fatalf("unexpected record %+v", record)
	}
	if f.observer.deliveries != 1 {
		t.Fatalf("expected delivery outcome to be observed")
	}
}

func TestProcessKeepsModelFailureOutOfTheError(t *testing.T) {
	f := newProcessFixture(&modelFake{err: errors.New("boom")})

	record, err := f.uc.Process(context.Background(), domain.Document{ID: "email1", BodyText: "x"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if record.Classification.Source != domain.SourceRuleFallback {
		t.Fatalf("expected fallback source, got %q", record.Classification.Source)
	}
	if record.AssignedTeam != "General Servicing Team" {
		t.Fatalf("expected default team, got %q", record.AssignedTeam)
	}
}

func TestProcessRecoversStagePanic(t *testing.T) {
	f := newProcessFixture(nil)
	f.extractor.panics = true

	_, err := f.uc.Process(context.Background(), domain.Document{ID: "email1", BodyText: "x"})
	if err == nil {
		t.Fatalf("expected panic to surface as error")
	}
	if _, ok := f.storage.objects["email1_output.json"]; ok {
		t.Fatalf("no artifact should be written for a failed document")
	}
}

func TestProcessRejectsMissingID(t *testing.T) {
	f := newProcessFixture(nil)

	_, err := f.uc.Process(context.Background(), domain.Document{BodyText: "x"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
