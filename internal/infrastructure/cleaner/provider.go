package cleaner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Provider is one cloud LLM backend for the cleaning pass.
type Provider interface {
	Name() string
	DefaultBudget() RateBudget
	Clean(ctx context.Context, metadata map[string]any, text string) (string, error)
}

const cleanAttempts = 3

// Rate-limit hints advertised by the providers inside 429 error bodies.
var (
	retryInHint    = regexp.MustCompile(`Please retry in ([\d.]+)s\.`)
	retryDelayHint = regexp.MustCompile(`'retryDelay': '(\d+)s'`)
)

// retryDelayFrom parses a server-advertised wait out of an error
// string. Zero means no hint was present.
func retryDelayFrom(errText string) time.Duration {
	if m := retryInHint.FindStringSubmatch(errText); m != nil {
		if seconds, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	if m := retryDelayHint.FindStringSubmatch(errText); m != nil {
		if seconds, err := strconv.Atoi(m[1]); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

func isRateLimitError(err error) bool {
	text := err.Error()
	return strings.Contains(text, "429") || strings.Contains(text, "RESOURCE_EXHAUSTED")
}

// callWithRetry wraps one provider call with the cleaning pass retry
// policy: rate-limit hints are honored with a one second buffer,
// hintless 429s back off 30·2^attempt seconds, and any other failure
// pauses five seconds before the next try.
func callWithRetry(ctx context.Context, logger *slog.Logger, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < cleanAttempts; attempt++ {
		response, err := fn(ctx)
		if err == nil {
			return response, nil
		}
		lastErr = err

		var wait time.Duration
		switch {
		case isRateLimitError(err):
			if hint := retryDelayFrom(err.Error()); hint > 0 {
				wait = hint + time.Second
				logger.Warn("rate limit hit, honoring hint", "wait", wait, "attempt", attempt+1)
			} else {
				wait = time.Duration(30*math.Pow(2, float64(attempt))) * time.Second
				logger.Warn("rate limit hit, backing off", "wait", wait, "attempt", attempt+1)
			}
		default:
			if attempt == cleanAttempts-1 {
				return "", err
			}
			wait = 5 * time.Second
			logger.Warn("clean request failed, retrying", "error", err, "attempt", attempt+1)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

// cleanInput assembles the full prompt for one document.
func cleanInput(metadata map[string]any, text string) (string, error) {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return fmt.Sprintf("%s\n- Metadata: %s\n- Text: %s", cleanerPrompt, encoded, text), nil
}
