package rules

import (
	"strings"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

// Engine is the deterministic classifier used whenever the model path fails.
// Its output depends only on subject and body.
type Engine struct {
	table FallbackTable
}

func NewEngine(tables Tables) *Engine {
	return &Engine{table: tables.Fallback}
}

func (e *Engine) Fallback(subject, body string) domain.ClassificationResult {
	text := strings.ToLower(subject + " " + body)

	for _, rule := range e.table.Rules {
		hits := matchedKeywords(text, rule.Keywords)
		if len(hits) == 0 {
			continue
		}
		priority := domain.NormalizePriority(rule.Priority)
		if len(matchedKeywords(text, e.table.UrgencyKeywords)) > 0 {
			priority = domain.PriorityHigh
		}
		return fallbackResult(domain.RequestRecord{
			RequestType:    rule.RequestType,
			SubRequestType: rule.SubRequestType,
			PrimaryIntent:  "Identified via rule: " + rule.Name,
			Priority:       priority,
			Confidence:     e.table.Confidence,
			Reasoning:      "Matched keywords: " + strings.Join(hits, ", "),
		})
	}

	def := e.table.Default
	return fallbackResult(domain.RequestRecord{
		RequestType:    def.RequestType,
		SubRequestType: def.SubRequestType,
		PrimaryIntent:  def.RequestType,
		Priority:       domain.NormalizePriority(def.Priority),
		Confidence:     def.Confidence,
		Reasoning:      def.Reasoning,
	})
}

func fallbackResult(primary domain.RequestRecord) domain.ClassificationResult {
	return domain.ClassificationResult{
		PrimaryRequest:    primary,
		SecondaryRequests: []domain.RequestRecord{},
		Source:            domain.SourceRuleFallback,
		SchemaVersion:     domain.ClassificationSchemaV1,
	}
}

func matchedKeywords(text string, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}
