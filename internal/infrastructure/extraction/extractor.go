package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

// Extractor pulls amounts, dates, names and reference codes out of
// normalized text. A failing stage leaves its fields empty and is reported
// through the returned error; the fields value is always usable.
type Extractor struct {
	recognizer ports.EntityRecognizer
	amounts    amountExtractor
}

// New builds an Extractor. Both collaborators are optional: without a
// recognizer only regex-based dates are found and names stay empty; without a
// tagger untagged amounts are labeled unknown.
func New(recognizer ports.EntityRecognizer, tagger ports.AmountTagger) *Extractor {
	return &Extractor{
		recognizer: recognizer,
		amounts:    amountExtractor{tagger: tagger},
	}
}

func (e *Extractor) Extract(ctx context.Context, text string) (domain.ExtractedFields, error) {
	fields := domain.EmptyExtractedFields()
	var errs []error

	var entities []domain.Entity
	if e.recognizer != nil {
		runStage("entities", &errs, func() error {
			found, err := e.recognizer.Recognize(ctx, text)
			if err != nil {
				return fmt.Errorf("recognize entities: %w", err)
			}
			entities = found
			return nil
		})
	}

	runStage("amounts", &errs, func() error {
		fields.Amounts = e.amounts.extract(ctx, text)
		return nil
	})
	runStage("dates", &errs, func() error {
		fields.Dates = extractDates(text, entities)
		return nil
	})
	runStage("names", &errs, func() error {
		fields.Names = extractNames(entities)
		return nil
	})
	runStage("references", &errs, func() error {
		fields.ReferenceCodes = extractReferences(text)
		return nil
	})

	return fields, errors.Join(errs...)
}

func runStage(name string, errs *[]error, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			*errs = append(*errs, domain.WrapError(domain.ErrExtraction, "extract "+name, fmt.Errorf("panic: %v", r)))
		}
	}()
	if err := fn(); err != nil {
		*errs = append(*errs, domain.WrapError(domain.ErrExtraction, "extract "+name, err))
	}
}
