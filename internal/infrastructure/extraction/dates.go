package extraction

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

const monthAbbrev = `jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec`

const monthName = `january|february|march|april|may|june|july|august|september|october|november|december|` + monthAbbrev

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{1,2}[-\s](?:` + monthAbbrev + `)[a-z]*[-\s]\d{4}\b`),
	regexp.MustCompile(`(?i)\b(?:` + monthName + `)\s\d{1,2},\s\d{4}\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
}

// DateLayouts are tried in order; the first layout that parses wins.
var DateLayouts = []string{
	"2006-01-02",
	"2-Jan-2006",
	"2 Jan 2006",
	"2-January-2006",
	"2 January 2006",
	"2/1/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ValidateDate renders candidate as YYYY-MM-DD, or reports false when no
// accepted layout parses it.
func ValidateDate(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func extractDates(text string, entities []domain.Entity) []string {
	var candidates []string
	for _, ent := range entities {
		if ent.Label == domain.EntityDate {
			candidates = append(candidates, ent.Text)
		}
	}
	for _, re := range datePatterns {
		candidates = append(candidates, re.FindAllString(text, -1)...)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := []string{}
	for _, c := range candidates {
		iso, ok := ValidateDate(c)
		if !ok {
			continue
		}
		if _, dup := seen[iso]; dup {
			continue
		}
		seen[iso] = struct{}{}
		out = append(out, iso)
	}
	slices.Sort(out)
	return out
}
