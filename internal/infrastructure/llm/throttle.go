package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/kirillkom/servicing-triage/internal/core/ports"
)

// Throttled shares one token bucket between classification and tagging
// calls so a batch cannot exceed the provider's request budget.
type Throttled struct {
	model   ports.ClassificationModel
	tagger  ports.AmountTagger
	limiter *rate.Limiter
}

// NewThrottled wraps model and tagger. rps <= 0 disables limiting.
func NewThrottled(model ports.ClassificationModel, tagger ports.AmountTagger, rps float64, burst int) *Throttled {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Throttled{model: model, tagger: tagger, limiter: limiter}
}

func (t *Throttled) ClassifyRequest(ctx context.Context, subject, body string) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.model.ClassifyRequest(ctx, subject, body)
}

func (t *Throttled) TagAmount(ctx context.Context, excerpt, amount string) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.tagger.TagAmount(ctx, excerpt, amount)
}

func (t *Throttled) wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("model rate limit: %w", err)
	}
	return nil
}
