// Package resilience wraps the pipeline's outbound calls — extractor
// service, fine-tuned model, embeddings server, queue publishes — in a
// shared retry and circuit-breaker policy. Each caller supplies its own
// error classifier because what counts as retryable differs per
// upstream: a 429 from the model service must back off, a malformed
// PDF never deserves a second attempt.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// ErrorClassification is the classifier's verdict on one failure.
// Retryable drives the retry loop; RecordFailure feeds the breaker, so
// caller mistakes (bad input, cancelled context) can be kept out of the
// failure ratio.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor applies the retry policy inside one circuit breaker per
// operation name. Operations share nothing: a tripped extract-with-tags
// breaker never blocks generate calls.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil callback for %q", operation)
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unnamed"
	}
	if classifier == nil {
		classifier = classifyPipelineError
	}

	if !e.cfg.BreakerEnabled {
		return e.attempt(ctx, op, fn, classifier)
	}

	_, err := e.breakerFor(op, classifier).Execute(func() (any, error) {
		return nil, e.attempt(ctx, op, fn, classifier)
	})
	return err
}

// attempt runs fn up to RetryMaxAttempts times with capped exponential
// backoff. The last error is returned as-is so the caller's kind
// mapping still sees the original failure.
func (e *Executor) attempt(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	var err error
	for tried := 0; tried < e.cfg.RetryMaxAttempts; tried++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !classifier(err).Retryable || tried+1 == e.cfg.RetryMaxAttempts {
			return err
		}

		wait := e.backoffFor(tried)
		slog.Warn("retrying operation",
			"operation", operation,
			"attempt", tried+1,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"wait", wait,
			"error", err,
		)
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return err
		}
	}
	return err
}

func (e *Executor) backoffFor(tried int) time.Duration {
	wait := e.cfg.RetryInitialBackoff
	for i := 0; i < tried; i++ {
		wait = time.Duration(float64(wait) * e.cfg.RetryMultiplier)
		if wait >= e.cfg.RetryMaxBackoff {
			return e.cfg.RetryMaxBackoff
		}
	}
	if wait > e.cfg.RetryMaxBackoff {
		return e.cfg.RetryMaxBackoff
	}
	return wait
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) breakerFor(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit state change",
				"operation", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	e.breakers[operation] = breaker
	return breaker
}

// IsCircuitOpen reports whether err came from a tripped or saturated
// breaker rather than from the upstream itself.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// classifyPipelineError is the fallback classifier, keyed on the
// pipeline's own error kinds: transient and rate-limit failures retry
// and count against the breaker, caller-side kinds (bad format, failed
// validation, unparseable model output) are terminal and ignored by
// the breaker, and anything unrecognized is terminal but recorded.
func classifyPipelineError(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{}
	case IsCircuitOpen(err):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrRateLimited):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	case domain.IsKind(err, domain.ErrFormat),
		domain.IsKind(err, domain.ErrValidation),
		domain.IsKind(err, domain.ErrLLMParse):
		return ErrorClassification{}
	default:
		return ErrorClassification{RecordFailure: true}
	}
}
