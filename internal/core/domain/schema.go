package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ClassificationSchemaV1 is the one structured-output contract shared by the
// model path and the rule fallback.
const ClassificationSchemaV1 = "v1"

const DefaultModelConfidence = 80

var requiredRequestFields = []string{
	"request_type",
	"sub_request_type",
	"primary_intent",
	"priority",
	"confidence",
	"reasoning",
}

// CategoryResolver maps a raw request type onto a configured category and
// reports whether the label was known.
type CategoryResolver func(requestType string) (string, bool)

// DecodeClassification validates raw model output against the v1 contract and
// returns the normalized result. Any contract violation is an ErrClassification.
func DecodeClassification(raw string, resolve CategoryResolver) (ClassificationResult, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return ClassificationResult{}, WrapError(ErrClassification, "decode model output", err)
	}

	primaryRaw, ok := payload["primary_request"].(map[string]any)
	if !ok {
		return ClassificationResult{}, WrapError(ErrClassification, "validate model output", errors.New("primary_request must be an object"))
	}
	primary, err := decodeRequest(primaryRaw, resolve)
	if err != nil {
		return ClassificationResult{}, WrapError(ErrClassification, "validate primary_request", err)
	}

	secondary := []RequestRecord{}
	if items, ok := payload["secondary_requests"].([]any); ok {
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			secondary = append(secondary, decodeRequestLenient(obj, resolve))
		}
	}

	return ClassificationResult{
		PrimaryRequest:    primary,
		SecondaryRequests: secondary,
		Source:            SourceModel,
		SchemaVersion:     ClassificationSchemaV1,
	}, nil
}

func decodeRequest(obj map[string]any, resolve CategoryResolver) (RequestRecord, error) {
	for _, field := range requiredRequestFields {
		if v, ok := obj[field]; !ok || v == nil {
			return RequestRecord{}, fmt.Errorf("missing required field %q", field)
		}
	}
	text := make(map[string]string, 4)
	for _, field := range []string{"request_type", "sub_request_type", "primary_intent", "reasoning"} {
		s, ok := obj[field].(string)
		if !ok {
			return RequestRecord{}, fmt.Errorf("field %q must be a string", field)
		}
		text[field] = strings.TrimSpace(s)
	}
	if text["request_type"] == "" {
		return RequestRecord{}, errors.New("request_type is empty")
	}

	record := RequestRecord{
		RequestType:    text["request_type"],
		SubRequestType: text["sub_request_type"],
		PrimaryIntent:  text["primary_intent"],
		Priority:       NormalizePriority(obj["priority"]),
		Confidence:     NormalizeConfidence(obj["confidence"]),
		Reasoning:      text["reasoning"],
	}
	return canonicalizeRequestType(record, resolve), nil
}

func decodeRequestLenient(obj map[string]any, resolve CategoryResolver) RequestRecord {
	str := func(field string) string {
		s, _ := obj[field].(string)
		return strings.TrimSpace(s)
	}
	record := RequestRecord{
		RequestType:    str("request_type"),
		SubRequestType: str("sub_request_type"),
		PrimaryIntent:  str("primary_intent"),
		Priority:       NormalizePriority(obj["priority"]),
		Confidence:     NormalizeConfidence(obj["confidence"]),
		Reasoning:      str("reasoning"),
	}
	return canonicalizeRequestType(record, resolve)
}

func canonicalizeRequestType(record RequestRecord, resolve CategoryResolver) RequestRecord {
	if resolve == nil {
		return record
	}
	canonical, known := resolve(record.RequestType)
	if known {
		record.RequestType = canonical
		return record
	}
	label := record.RequestType
	record.RequestType = OthersCategory
	note := fmt.Sprintf("(model label: %s)", label)
	if label == "" {
		note = "(model label missing)"
	}
	if record.Reasoning == "" {
		record.Reasoning = note
	} else {
		record.Reasoning += " " + note
	}
	return record
}

// NormalizePriority maps free text onto High/Medium/Low by substring.
func NormalizePriority(v any) Priority {
	s, ok := v.(string)
	if !ok {
		return PriorityMedium
	}
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "high"):
		return PriorityHigh
	case strings.Contains(lower, "low"):
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// NormalizeConfidence returns an integer in [0,100]. Non-numeric and
// out-of-range values fall back to DefaultModelConfidence.
func NormalizeConfidence(v any) int {
	var f float64
	switch x := v.(type) {
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return DefaultModelConfidence
		}
		f = parsed
	case float64:
		f = x
	case int:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		if err != nil {
			return DefaultModelConfidence
		}
		f = parsed
	default:
		return DefaultModelConfidence
	}
	if math.IsNaN(f) || f < 0 || f > 100 {
		return DefaultModelConfidence
	}
	return int(f)
}

// Validate checks an already-built result against the v1 contract.
func (r ClassificationResult) Validate() error {
	if r.SchemaVersion != ClassificationSchemaV1 {
		return fmt.Errorf("unsupported schema version %q", r.SchemaVersion)
	}
	if r.Source != SourceModel && r.Source != SourceRuleFallback {
		return fmt.Errorf("unknown classification source %q", r.Source)
	}
	if r.SecondaryRequests == nil {
		return errors.New("secondary_requests must not be null")
	}
	return validateRequest(r.PrimaryRequest)
}

func validateRequest(r RequestRecord) error {
	if r.RequestType == "" {
		return errors.New("request_type is empty")
	}
	switch r.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("invalid priority %q", r.Priority)
	}
	if r.Confidence < 0 || r.Confidence > 100 {
		return fmt.Errorf("confidence %d out of range", r.Confidence)
	}
	return nil
}
