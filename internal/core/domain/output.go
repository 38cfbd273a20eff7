package domain

import "time"

// OutputRecord is the structured, routable result for one document.
type OutputRecord struct {
	EmailID         string               `json:"email_id"`
	Subject         string               `json:"subject"`
	From            string               `json:"from"`
	To              string               `json:"to"`
	Date            string               `json:"date"`
	Classification  ClassificationResult `json:"classification"`
	ExtractedFields ExtractedFields      `json:"extracted_fields"`
	AssignedTeam    string               `json:"assigned_team"`
	Duplication     DuplicationVerdict   `json:"duplication"`
	ProcessedAt     time.Time            `json:"processed_at"`
}

// ErrorRecord replaces an OutputRecord for a document that failed outright.
type ErrorRecord struct {
	EmailID string `json:"email_id"`
	Error   string `json:"error"`
}

// BatchReport collects every outcome of one batch run.
type BatchReport struct {
	RunID   string         `json:"run_id"`
	Records []OutputRecord `json:"records"`
	Errors  []ErrorRecord  `json:"errors"`
}

// EnqueueReport summarizes handing a source over to the worker pool.
type EnqueueReport struct {
	Published []string      `json:"published"`
	Errors    []ErrorRecord `json:"errors"`
}

// OutputKey is the artifact name used for a processed document.
func OutputKey(emailID string) string {
	return emailID + "_output.json"
}
