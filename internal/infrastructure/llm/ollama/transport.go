package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/servicing-triage/internal/infrastructure/resilience"
)

// maxErrorBody caps how much of a failed response ends up in the error text.
const maxErrorBody = 2048

// StatusError is a non-2xx answer from the Ollama server.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("ollama %s: http %d", e.Endpoint, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// generateResponse is the non-streaming /api/generate reply.
type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) (generateResponse, error) {
	var out generateResponse
	body, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("encode %s payload: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("ollama %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return out, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s reply: %w", endpoint, err)
	}
	return out, nil
}

// classifyError lets a stalled model trip the breaker. A missing model (404)
// will not fix itself, so it counts as a permanent failure.
func classifyError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err, true); ok {
		return class
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusNotFound {
			return resilience.Permanent
		}
		return resilience.ClassifyHTTPStatus(statusErr.StatusCode)
	}
	return resilience.Permanent
}
