package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

// ClassifyUseCase runs ATTEMPT_MODEL -> VALIDATE -> {ACCEPT | FALLBACK}.
// It always returns a schema-valid result; a non-nil error only explains why
// the fallback path was taken.
type ClassifyUseCase struct {
	model    ports.ClassificationModel
	fallback ports.FallbackClassifier
	router   ports.TeamRouter
	timeout  time.Duration
}

// NewClassifyUseCase accepts a nil model, in which case every document is
// classified by the fallback rules.
func NewClassifyUseCase(
	model ports.ClassificationModel,
	fallback ports.FallbackClassifier,
	router ports.TeamRouter,
	timeout time.Duration,
) *ClassifyUseCase {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClassifyUseCase{
		model:    model,
		fallback: fallback,
		router:   router,
		timeout:  timeout,
	}
}

func (uc *ClassifyUseCase) Classify(ctx context.Context, subject, body string) (domain.ClassificationResult, error) {
	if uc.model == nil {
		return uc.fallback.Fallback(subject, body), nil
	}

	result, err := uc.attempt(ctx, subject, body)
	if err == nil {
		return result, nil
	}

	slog.Warn("classification_fallback", "subject", subject, "error", err)
	return uc.fallback.Fallback(subject, body), err
}

func (uc *ClassifyUseCase) attempt(ctx context.Context, subject, body string) (domain.ClassificationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	raw, err := uc.model.ClassifyRequest(callCtx, subject, body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return domain.ClassificationResult{}, domain.WrapError(domain.ErrClassification, "model call", fmt.Errorf("timed out after %s: %w", uc.timeout, err))
		}
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrClassification, "model call", err)
	}

	result, err := domain.DecodeClassification(raw, uc.router.Canonicalize)
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	if err := result.Validate(); err != nil {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrClassification, "validate model output", err)
	}
	return result, nil
}
