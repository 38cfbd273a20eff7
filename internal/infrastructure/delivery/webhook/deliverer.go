package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/resilience"
)

// StatusError is returned for a non-2xx webhook response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded %d: %s", e.StatusCode, e.Body)
}

// Deliverer POSTs each finished record as JSON to one URL.
type Deliverer struct {
	url        string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(url string, timeout time.Duration, executor *resilience.Executor) (*Deliverer, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "configure webhook", errors.New("webhook url is empty"))
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Deliverer{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}, nil
}

func (d *Deliverer) Deliver(ctx context.Context, record domain.OutputRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return domain.WrapError(domain.ErrDelivery, "marshal record", err)
	}

	err = d.executor.Execute(ctx, "webhook.deliver", func(callCtx context.Context) error {
		return d.post(callCtx, payload)
	}, classifyWebhookError)
	if err != nil {
		return domain.WrapError(domain.ErrDelivery, "deliver "+record.EmailID, err)
	}
	return nil
}

func (d *Deliverer) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// classifyWebhookError keeps 4xx rejections away from the breaker; the
// receiver answered, it just disliked the record.
func classifyWebhookError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err, true); ok {
		return class
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= 500 {
			return resilience.Transient
		}
		return resilience.ClassifyHTTPStatus(statusErr.StatusCode)
	}
	return resilience.Permanent
}
