package intent

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/jingkaihe/skill-engine/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// MinConfidence is the model confidence below which a message is routed to
// General regardless of the returned intent.
const MinConfidence = 0.55

const (
	DefaultTimeout  = 10 * time.Second
	DefaultAttempts = 2
	retryDelay      = 250 * time.Millisecond
)

// Tier records which stage produced a Decision.
type Tier string

const (
	TierHeuristic Tier = "heuristic"
	TierModel     Tier = "model"
	// TierFallback means the model tier was needed but unavailable or failed.
	TierFallback Tier = "fallback"
)

// Decision is the final routing outcome. Intent is always Workflow or General.
type Decision struct {
	Intent     Intent  `json:"intent"`
	Tier       Tier    `json:"tier"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Classifier is the two-tier router.
type Classifier struct {
	model    Model
	timeout  time.Duration
	attempts uint
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithAttempts sets the total number of model calls per classification.
func WithAttempts(n int) ClassifierOption {
	return func(c *Classifier) {
		if n > 0 {
			c.attempts = uint(n)
		}
	}
}

// NewClassifier returns a Classifier. A nil model disables the model tier and
// every ambiguous message is routed to General.
func NewClassifier(model Model, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		model:    model,
		timeout:  DefaultTimeout,
		attempts: DefaultAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Route returns the routing intent for message.
func (c *Classifier) Route(ctx context.Context, message string) Intent {
	return c.Classify(ctx, message).Intent
}

// Classify never fails: every path resolves to Workflow or General.
func (c *Classifier) Classify(ctx context.Context, message string) Decision {
	log := logger.G(ctx)

	if decision := ClassifyHeuristic(message); decision != Unknown {
		log.WithField("intent", decision).Debug("intent resolved by heuristics")
		return Decision{Intent: decision, Tier: TierHeuristic}
	}

	if c.model == nil {
		log.Debug("model tier disabled, routing ambiguous message to general")
		return Decision{Intent: General, Tier: TierFallback}
	}

	var result Classification
	err := telemetry.WithSpan(ctx, "intent.classify_model", func(ctx context.Context) error {
		var err error
		result, err = c.classifyWithRetry(ctx, message)
		return err
	}, attribute.Int("intent.max_attempts", int(c.attempts)))
	if err != nil {
		log.WithError(err).Warn("model classification failed, routing to general")
		return Decision{Intent: General, Tier: TierFallback}
	}

	decision := Decision{Intent: result.Intent, Tier: TierModel, Confidence: result.Confidence}
	if result.Confidence < MinConfidence {
		decision.Intent = General
	}
	log.WithField("intent", decision.Intent).
		WithField("model_intent", result.Intent).
		WithField("confidence", result.Confidence).
		Debug("intent resolved by model")
	return decision
}

func (c *Classifier) classifyWithRetry(ctx context.Context, message string) (Classification, error) {
	var result Classification
	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			var err error
			result, err = c.model.Classify(callCtx, message)
			return err
		},
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}),
		retry.Attempts(c.attempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("max_attempts", c.attempts).Warn("retrying intent classification")
			telemetry.AddEvent(ctx, "intent.retry", attribute.Int("attempt", int(n+1)))
		}),
	)
	return result, err
}
