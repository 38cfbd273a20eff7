package domain

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

type ClassificationSource string

const (
	SourceModel        ClassificationSource = "model"
	SourceRuleFallback ClassificationSource = "rule_fallback"
)

const OthersCategory = "Others"

// RequestRecord is one classified request found in a document.
type RequestRecord struct {
	RequestType    string   `json:"request_type"`
	SubRequestType string   `json:"sub_request_type"`
	PrimaryIntent  string   `json:"primary_intent"`
	Priority       Priority `json:"priority"`
	Confidence     int      `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
}

type ClassificationResult struct {
	PrimaryRequest    RequestRecord        `json:"primary_request"`
	SecondaryRequests []RequestRecord      `json:"secondary_requests"`
	Source            ClassificationSource `json:"source"`
	SchemaVersion     string               `json:"schema_version"`
}
