package resilience

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

func retryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

// An extractor instance that answers 503 twice and then recovers must
// cost the caller nothing but the backoff.
func TestExecuteRetriesTransientExtractorFailure(t *testing.T) {
	exec := NewExecutor(retryConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "extract-with-tags", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return domain.WrapError(domain.ErrTemporary, "extract-with-tags", errors.New("status 503"))
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("expected recovery after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryMalformedDocument(t *testing.T) {
	exec := NewExecutor(retryConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "extract", func(context.Context) error {
		attempts++
		return domain.WrapError(domain.ErrFormat, "extract", io.ErrUnexpectedEOF)
	}, nil)
	if !domain.IsKind(err, domain.ErrFormat) {
		t.Fatalf("expected format error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("a bad document must not be retried, got %d attempts", attempts)
	}
}

func TestExecuteRetriesRateLimitedModelCall(t *testing.T) {
	exec := NewExecutor(retryConfig())

	attempts := 0
	err := exec.Execute(context.Background(), "generate", func(context.Context) error {
		attempts++
		return domain.WrapError(domain.ErrRateLimited, "generate", errors.New("status 429"))
	}, nil)
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate-limit error back, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected the full retry budget, got %d attempts", attempts)
	}
}

func TestExecuteOpensCircuitPerOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := domain.WrapError(domain.ErrUpstream, "generate", errors.New("status 502"))
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "generate", func(context.Context) error {
			return errDown
		}, nil)
		if !errors.Is(err, errDown) {
			t.Fatalf("iteration %d: expected upstream error, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "generate", func(context.Context) error {
		t.Fatal("open circuit must not reach the model service")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open-state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("IsCircuitOpen(%v) = false", err)
	}

	// A dead model service must not block extraction.
	if err := exec.Execute(context.Background(), "extract", func(context.Context) error {
		return nil
	}, nil); err != nil {
		t.Fatalf("unrelated operation rejected: %v", err)
	}
}

// Bad input and unparseable model output are the caller's problem, not
// the upstream's health, so they must never trip the breaker.
func TestExecuteKeepsCallerErrorsOutOfBreaker(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	})

	for i := 0; i < 10; i++ {
		kind := domain.ErrValidation
		if i%2 == 0 {
			kind = domain.ErrLLMParse
		}
		err := exec.Execute(context.Background(), "generate", func(context.Context) error {
			return domain.WrapError(kind, "generate", errors.New("rejected"))
		}, nil)
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("breaker tripped on caller error after %d calls", i+1)
		}
	}
}

func TestExecuteStopsRetryingOnCancel(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 50 * time.Millisecond,
		RetryMaxBackoff:     50 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	errDown := domain.WrapError(domain.ErrTemporary, "extract", errors.New("connection refused"))
	err := exec.Execute(ctx, "extract", func(context.Context) error {
		attempts++
		cancel()
		return errDown
	}, nil)
	if !errors.Is(err, errDown) {
		t.Fatalf("expected the last upstream error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("cancelled context must stop the retry loop, got %d attempts", attempts)
	}
}
