package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrTemporary    = errors.New("temporary failure")

	// Pipeline stage kinds. A stage that fails with one of these still
	// hands back a usable value; the error is carried for logging.
	ErrParse          = errors.New("parse failure")
	ErrExtraction     = errors.New("extraction failure")
	ErrClassification = errors.New("classification failure")
	ErrDeduplication  = errors.New("deduplication failure")
	ErrDelivery       = errors.New("delivery failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
