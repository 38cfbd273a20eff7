package nlp

import (
	"context"
	"fmt"

	"github.com/jdkato/prose/v2"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

// ProseRecognizer uses the statistical NER model bundled with prose.
// prose has no temporal labels, so date spans still come from the rule
// recognizer it wraps.
type ProseRecognizer struct {
	dates *RuleRecognizer
}

func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{dates: NewRuleRecognizer()}
}

func (p *ProseRecognizer) Recognize(ctx context.Context, text string) ([]domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("prose document: %w", err)
	}

	var out []domain.Entity
	for _, ent := range doc.Entities() {
		switch ent.Label {
		case "PERSON":
			out = append(out, domain.Entity{Text: ent.Text, Label: domain.EntityPerson})
		case "ORG":
			out = append(out, domain.Entity{Text: ent.Text, Label: domain.EntityOrganization})
		}
	}

	ruleEntities, _ := p.dates.Recognize(ctx, text)
	for _, ent := range ruleEntities {
		if ent.Label == domain.EntityDate {
			out = append(out, ent)
		}
	}
	return out, nil
}

// New selects a recognizer backend by name. Unknown names fall back to rules.
func New(backend string) ports.EntityRecognizer {
	if backend == "prose" {
		return NewProseRecognizer()
	}
	return NewRuleRecognizer()
}
