package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

var (
	// Transient failures may succeed on another attempt and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Permanent failures are not retried but still count against the breaker.
	Permanent = ErrorClassification{RecordFailure: true}
	// Ignored failures are the caller's fault and leave the breaker alone.
	Ignored = ErrorClassification{}
)

// ClassifyCommon handles the cases every adapter shares: cancellation, deadline
// expiry, an open breaker and network errors. ok is false when the adapter
// must decide. A deadline counts against the breaker when stallsTrip is set,
// so a model that keeps stalling stops being called.
func ClassifyCommon(err error, stallsTrip bool) (class ErrorClassification, ok bool) {
	switch {
	case err == nil:
		return Ignored, true
	case errors.Is(err, context.Canceled):
		return Ignored, true
	case errors.Is(err, context.DeadlineExceeded):
		if stallsTrip {
			return Permanent, true
		}
		return Ignored, true
	case IsCircuitOpen(err):
		return Transient, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient, true
	}
	return ErrorClassification{}, false
}

// ClassifyHTTPStatus treats throttling, timeouts and 5xx as transient.
func ClassifyHTTPStatus(statusCode int) ErrorClassification {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return Transient
	default:
		return Ignored
	}
}

// WrapTemporary marks err as domain.ErrTemporary when classify deems it
// transient or the breaker rejected the call.
func WrapTemporary(operation string, err error, classify ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify == nil {
		classify = defaultClassifier
	}
	if classify(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
