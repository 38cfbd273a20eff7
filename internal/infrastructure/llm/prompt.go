package llm

import (
	"fmt"
	"strings"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

const maxBodySnippet = 6000

// ClassificationSystemPrompt states the structured-output contract the
// model must follow.
func ClassificationSystemPrompt(categories []string) string {
	return `You classify loan-servicing correspondence for a commercial lending operations desk.
Return one strict JSON object with exactly two keys:
primary_request (object) and secondary_requests (array of objects).
Every request object has keys:
request_type (string), sub_request_type (string), primary_intent (string),
priority ("High", "Medium" or "Low"), confidence (integer from 0 to 100), reasoning (string).
request_type must be one of: ` + strings.Join(categories, ", ") + `.
Use "Others" when nothing fits. No markdown, no extra keys.`
}

func ClassificationUserPrompt(subject, body string) string {
	if len(body) > maxBodySnippet {
		body = body[:maxBodySnippet]
	}
	return fmt.Sprintf("Subject: %s\n\nBody:\n%s", subject, body)
}

// ClassificationPrompt is the single-message form for completion-style APIs.
func ClassificationPrompt(categories []string, subject, body string) string {
	return ClassificationSystemPrompt(categories) + "\n\n" + ClassificationUserPrompt(subject, body)
}

// AmountTagPrompt names the amount explicitly since an excerpt can hold
// more than one.
func AmountTagPrompt(excerpt, amount string) string {
	labels := make([]string, 0, len(domain.AllowedAmountTags))
	for _, tag := range domain.AllowedAmountTags {
		labels = append(labels, string(tag))
	}
	return `Label the role of the monetary amount in this loan-servicing excerpt.
Answer with exactly one label and nothing else. Allowed labels: ` + strings.Join(labels, ", ") + `.

Excerpt:
` + excerpt + `

Amount: ` + amount
}

// ExtractJSONObject trims prose or code fences around the first JSON object.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
