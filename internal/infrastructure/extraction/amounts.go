package extraction

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

const (
	amountKeepWindow = 50
	amountTagWindow  = 150
	amountMinValue   = 1000
)

const amountNumber = `\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?`

var amountPattern = regexp.MustCompile(
	`(?i)(?:\b(USD|EUR|GBP|JPY|CAD|AUD|INR)|([$€£¥₹]))\s*(` + amountNumber + `)` +
		`|\b(` + amountNumber + `)\s*(USD|EUR|GBP|JPY|CAD|AUD|INR)\b`,
)

var currencyCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CAD": true, "AUD": true, "INR": true,
}

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
}

var financialKeywords = []string{"fee", "adjustment", "share", "commitment"}

type tagFamily struct {
	tag      domain.AmountTag
	keywords []string
}

// tagFamilies are checked in priority order.
var tagFamilies = []tagFamily{
	{tag: domain.TagRepaymentAmount, keywords: []string{"repayment", "prepayment", "repaid"}},
	{tag: domain.TagFeeAmount, keywords: []string{"fee"}},
	{tag: domain.TagCommitmentAmount, keywords: []string{"commitment"}},
}

type amountMatch struct {
	value    float64
	currency string
	start    int
	end      int
}

func findAmounts(text string) []amountMatch {
	var out []amountMatch
	for _, loc := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		group := func(i int) string {
			if loc[2*i] < 0 {
				return ""
			}
			return text[loc[2*i]:loc[2*i+1]]
		}

		var currency, number string
		switch {
		case group(1) != "":
			currency, number = strings.ToUpper(group(1)), group(3)
		case group(2) != "":
			currency, number = currencySymbols[group(2)], group(3)
		default:
			currency, number = strings.ToUpper(group(5)), group(4)
		}
		if !currencyCodes[currency] {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
		if err != nil {
			continue
		}
		out = append(out, amountMatch{value: value, currency: currency, start: loc[0], end: loc[1]})
	}
	return out
}

// ParseAmounts returns every well-formed currency amount in text without the
// relevance filter or tagging.
func ParseAmounts(text string) []domain.ExtractedAmount {
	matches := findAmounts(text)
	out := make([]domain.ExtractedAmount, 0, len(matches))
	for _, m := range matches {
		out = append(out, domain.ExtractedAmount{Value: m.value, Currency: m.currency, Position: m.start, Tag: domain.TagUnknown})
	}
	return out
}

type amountExtractor struct {
	tagger ports.AmountTagger
}

func (a amountExtractor) extract(ctx context.Context, text string) []domain.ExtractedAmount {
	lower := strings.ToLower(text)
	out := []domain.ExtractedAmount{}
	for _, m := range findAmounts(text) {
		if m.value < amountMinValue && !containsAny(window(lower, m.start, m.end, amountKeepWindow), financialKeywords) {
			continue
		}
		out = append(out, domain.ExtractedAmount{
			Value:    m.value,
			Currency: m.currency,
			Position: m.start,
			Tag:      a.tag(ctx, text, lower, m),
		})
	}
	return out
}

func (a amountExtractor) tag(ctx context.Context, text, lower string, m amountMatch) domain.AmountTag {
	ctxWindow := window(lower, m.start, m.end, amountTagWindow)
	for _, family := range tagFamilies {
		if containsAny(ctxWindow, family.keywords) {
			return family.tag
		}
	}
	if a.tagger == nil {
		return domain.TagUnknown
	}
	raw, err := a.tagger.TagAmount(ctx, window(text, m.start, m.end, amountTagWindow), text[m.start:m.end])
	if err != nil {
		slog.Debug("amount_tagging_failed", "position", m.start, "error", err)
		return domain.TagUnknown
	}
	return domain.ParseAmountTag(strings.ToLower(strings.TrimSpace(raw)))
}

func window(text string, start, end, radius int) string {
	from := start - radius
	if from < 0 {
		from = 0
	}
	to := end + radius
	if to > len(text) {
		to = len(text)
	}
	return text[from:to]
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
