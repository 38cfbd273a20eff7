package openai

import (
	"errors"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/servicing-triage/internal/infrastructure/resilience"
)

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err, true); ok {
		return class
	}
	if status, ok := httpStatus(err); ok {
		return resilience.ClassifyHTTPStatus(status)
	}
	return resilience.Permanent
}

// httpStatus digs the status code out of the two error shapes go-openai returns.
func httpStatus(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
