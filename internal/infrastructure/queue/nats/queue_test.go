package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

func TestDecodeDocument(t *testing.T) {
	doc, err := decodeDocument([]byte(`{"id":"email1","subject":"Fee","from":"a@b","body":"Amendment fee"}`))
	if err != nil {
		t.Fatalf("decodeDocument() error = %v", err)
	}
	if doc.ID != "email1" || doc.Sender != "a@b" || doc.BodyText != "Amendment fee" {
		t.Fatalf("unexpected document %+v", doc)
	}

	doc, err = decodeDocument([]byte(`{"id":"email2","body":"b","attachments":[{"filename":"a.txt","content":"USD 2,500,000.00 repayment"}]}`))
	if err != nil || len(doc.Attachments) != 1 || !doc.Attachments[0].Readable() {
		t.Fatalf("attachment not decoded: %+v (%v)", doc.Attachments, err)
	}

	if _, err := decodeDocument([]byte(`{`)); !domain.IsKind(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if _, err := decodeDocument([]byte(`{"subject":"x"}`)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if class := classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !class.Retryable {
		t.Fatalf("closed connection should be retryable")
	}
	if class := classifyNATSError(context.Canceled); class.RecordFailure {
		t.Fatalf("cancellation must not count as breaker failure")
	}
	if class := classifyNATSError(errors.New("bad subject")); class.Retryable {
		t.Fatalf("unknown errors must not be retried")
	}
}

func TestTemporaryMarksConnectionErrors(t *testing.T) {
	err := temporary(nats.ErrTimeout)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	plain := errors.New("payload too large")
	if got := temporary(plain); got != plain {
		t.Fatalf("non-retryable error must pass through, got %v", got)
	}
}

func TestNewMessageSetsDedupHeader(t *testing.T) {
	msg, err := newMessage("triage.records", "email1", domain.OutputRecord{EmailID: "email1"})
	if err != nil {
		t.Fatalf("newMessage() error = %v", err)
	}
	if msg.Subject != "triage.records" || msg.Header.Get(nats.MsgIdHdr) != "email1" {
		t.Fatalf("unexpected message subject=%q header=%v", msg.Subject, msg.Header)
	}
	if !strings.Contains(string(msg.Data), `"email_id":"email1"`) {
		t.Fatalf("unexpected payload %s", msg.Data)
	}
}
