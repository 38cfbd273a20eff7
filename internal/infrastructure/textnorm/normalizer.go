package textnorm

import (
	"fmt"
	"regexp"
	"strings"
)

var currencySymbols = strings.NewReplacer(
	"$", "USD ",
	"€", "EUR ",
	"£", "GBP ",
	"¥", "JPY ",
	"₹", "INR ",
)

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var dayMonthYear = regexp.MustCompile(`(?i)\b(\d{1,2})[-\s](jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[-\s](\d{4})\b`)

// SignatureMarkers are scanned in order; the first one present ends the text.
var SignatureMarkers = []string{
	"Thanks & Regards",
	"Kind regards",
	"Sincerely",
	"Best regards",
	"This email message",
	"If you have any questions",
}

// Normalizer turns raw correspondence text into the canonical form consumed
// by extraction, classification and deduplication. It is pure and never fails.
type Normalizer struct {
	signatures []*regexp.Regexp
}

func New() *Normalizer {
	return NewWithSignatures(SignatureMarkers)
}

func NewWithSignatures(markers []string) *Normalizer {
	compiled := make([]*regexp.Regexp, 0, len(markers))
	for _, marker := range markers {
		marker = strings.TrimSpace(marker)
		if marker == "" {
			continue
		}
		compiled = append(compiled, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(marker)))
	}
	return &Normalizer{signatures: compiled}
}

func (n *Normalizer) Normalize(text string) string {
	text = collapseWhitespace(text)
	text = currencySymbols.Replace(text)
	text = rewriteDates(text)
	text = n.truncateSignature(text)
	text = stripNonPrintable(text)
	return strings.TrimSpace(text)
}

func collapseWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed == "" {
			continue
		}
		kept = append(kept, collapsed)
	}
	return strings.Join(kept, "\n")
}

func rewriteDates(text string) string {
	return dayMonthYear.ReplaceAllStringFunc(text, func(match string) string {
		parts := dayMonthYear.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		day := 0
		if _, err := fmt.Sscanf(parts[1], "%d", &day); err != nil || day < 1 || day > 31 {
			return match
		}
		month := monthNumbers[strings.ToLower(parts[2])]
		return fmt.Sprintf("%s-%02d-%02d", parts[3], month, day)
	})
}

func (n *Normalizer) truncateSignature(text string) string {
	for _, re := range n.signatures {
		if loc := re.FindStringIndex(text); loc != nil {
			return text[:loc[0]]
		}
	}
	return text
}

func stripNonPrintable(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || (r >= 0x20 && r < 0x7f) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
