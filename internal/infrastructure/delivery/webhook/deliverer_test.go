package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/resilience"
)

func TestDeliverPostsRecordJSON(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d, err := New(server.URL, time.Second, resilience.NewExecutor(resilience.SingleAttemptConfig(0, true)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := d.Deliver(context.Background(), domain.OutputRecord{EmailID: "email1", AssignedTeam: "Loan Operations Team"}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if got["email_id"] != "email1" || got["assigned_team"] != "Loan Operations Team" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestDeliverNon2xxIsDeliveryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	d, _ := New(server.URL, time.Second, nil)
	err := d.Deliver(context.Background(), domain.OutputRecord{EmailID: "email1"})
	if !domain.IsKind(err, domain.ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
}

func TestDeliverTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	d, _ := New(server.URL, 50*time.Millisecond, nil)
	started := time.Now()
	err := d.Deliver(context.Background(), domain.OutputRecord{EmailID: "email1"})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(started) > 2*time.Second {
		t.Fatalf("timeout not enforced")
	}
}

func TestNewRejectsEmptyURL(t *testing.T) {
	if _, err := New("  ", time.Second, nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClassifyWebhookError(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		retryable     bool
		recordFailure bool
	}{
		{name: "server error", err: &StatusError{StatusCode: 501}, retryable: true, recordFailure: true},
		{name: "throttled", err: &StatusError{StatusCode: http.StatusTooManyRequests}, retryable: true, recordFailure: true},
		{name: "rejected", err: &StatusError{StatusCode: http.StatusUnprocessableEntity}},
		{name: "canceled", err: context.Canceled},
		{name: "other", err: errors.New("boom"), recordFailure: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyWebhookError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.recordFailure {
				t.Fatalf("classifyWebhookError(%v) = %+v", tc.err, got)
			}
		})
	}
}
