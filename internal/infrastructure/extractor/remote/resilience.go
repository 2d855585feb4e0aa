package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "extractor status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("extractor %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("extractor %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func classifyExtractorError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// wrapExtractorError maps transport failures onto the domain kinds the
// orchestrator surfaces: client errors stay as-is (format problems from
// the service), everything else is an upstream failure.
func wrapExtractorError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusBadRequest {
			return domain.WrapError(domain.ErrFormat, operation, err)
		}
		return domain.WrapError(domain.ErrUpstream, operation, err)
	}
	if classifyExtractorError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(domain.ErrUpstream, operation, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
