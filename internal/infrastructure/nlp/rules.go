package nlp

import (
	"context"
	"regexp"
	"strings"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

var organizationPattern = regexp.MustCompile(
	`\b(?:[A-Z][A-Za-z&'.-]*[ \t]+){0,4}(?:(?:Bank|Banking|LLC|Inc|Ltd|Limited|Capital|Partners|PLC|plc|Corp|Corporation|Group|Trust|Fund|Holdings|Securities|Agency|Company)\b\.?|N\.A\.)`,
)

var personPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:Mr|Ms|Mrs|Dr)\.?[ \t]+([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)?)`),
	regexp.MustCompile(`(?m)^(?:Dear|Attn:?|Attention:?)[ \t]+([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){0,2})`),
}

var temporalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
	regexp.MustCompile(`\bQ[1-4]\s\d{4}\b`),
	regexp.MustCompile(`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s\d{4}\b`),
}

// RuleRecognizer is a dependency-free recognizer tuned for loan-servicing
// correspondence: corporate suffixes, honorifics and salutations, and a few
// temporal shapes the extraction regexes do not cover.
type RuleRecognizer struct{}

func NewRuleRecognizer() *RuleRecognizer {
	return &RuleRecognizer{}
}

func (r *RuleRecognizer) Recognize(_ context.Context, text string) ([]domain.Entity, error) {
	var out []domain.Entity
	for _, m := range organizationPattern.FindAllString(text, -1) {
		out = append(out, domain.Entity{Text: strings.TrimSpace(m), Label: domain.EntityOrganization})
	}
	for _, re := range personPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, domain.Entity{Text: m[1], Label: domain.EntityPerson})
		}
	}
	for _, re := range temporalPatterns {
		for _, m := range re.FindAllString(text, -1) {
			out = append(out, domain.Entity{Text: m, Label: domain.EntityDate})
		}
	}
	return out, nil
}
