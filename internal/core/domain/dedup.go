package domain

const (
	DuplicateTypeExact = "exact"

	ReasonExactMatch = "Exact content match"
	ReasonUnique     = "Unique request"
)

// DedupRecord is one processed document remembered by the cache.
type DedupRecord struct {
	DocumentID  string `json:"email_id"`
	ContentHash string `json:"hash"`
	RequestType string `json:"request_type"`
	Date        string `json:"date"`
}

type DuplicationVerdict struct {
	IsDuplicate   bool    `json:"is_duplicate"`
	DuplicateType *string `json:"duplicate_type"`
	MatchedWith   *string `json:"matched_with"`
	Reason        string  `json:"reason"`
}

func ExactDuplicate(matchedWith string) DuplicationVerdict {
	kind := DuplicateTypeExact
	return DuplicationVerdict{
		IsDuplicate:   true,
		DuplicateType: &kind,
		MatchedWith:   &matchedWith,
		Reason:        ReasonExactMatch,
	}
}

func UniqueVerdict() DuplicationVerdict {
	return DuplicationVerdict{Reason: ReasonUnique}
}

// DegradedVerdict is returned when the cache could not be consulted.
func DegradedVerdict(cause error) DuplicationVerdict {
	return DuplicationVerdict{Reason: "Deduplication degraded: " + cause.Error()}
}

// DedupPolicy carries the near-duplicate knobs. Only exact matching is
// enforced; the similarity and date-window values are informational.
type DedupPolicy struct {
	SimilarityThreshold float64
	DateWindowDays      int
}

func (p DedupPolicy) NearDuplicateConfigured() bool {
	return p.SimilarityThreshold > 0 || p.DateWindowDays > 0
}
