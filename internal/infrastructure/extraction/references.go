package extraction

import (
	"regexp"
	"strings"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

type referencePattern struct {
	re  *regexp.Regexp
	set func(*domain.ReferenceCodes, string)
}

var referencePatterns = []referencePattern{
	{
		re:  regexp.MustCompile(`(?im)\b(?:re|ref)\s*:\s*([a-z][^\n]*)$`),
		set: func(r *domain.ReferenceCodes, v string) { r.DealName = v },
	},
	{
		re:  regexp.MustCompile(`(?i)\bdeal\s+cusip\s*:\s*([a-z0-9]+)`),
		set: func(r *domain.ReferenceCodes, v string) { r.DealCUSIP = v },
	},
	{
		re:  regexp.MustCompile(`(?i)\bfacility\s+cusip\s*:\s*([a-z0-9]+)`),
		set: func(r *domain.ReferenceCodes, v string) { r.FacilityCUSIP = v },
	},
	{
		re:  regexp.MustCompile(`(?i)\bdeal\s+isin\s*:\s*([a-z0-9]+)`),
		set: func(r *domain.ReferenceCodes, v string) { r.DealISIN = v },
	},
	{
		re:  regexp.MustCompile(`(?i)\bfacility\s+isin\s*:\s*([a-z0-9]+)`),
		set: func(r *domain.ReferenceCodes, v string) { r.FacilityISIN = v },
	},
}

func extractReferences(text string) domain.ReferenceCodes {
	var refs domain.ReferenceCodes
	for _, p := range referencePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(m[1]); v != "" {
			p.set(&refs, v)
		}
	}
	return refs
}
