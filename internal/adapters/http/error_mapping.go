package httpadapter

import (
	"errors"
	"net/http"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/extractor/remote"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/generator"
)

// mapErrorToHTTPStatus turns pipeline errors into the façade's status
// codes. Upstream failures keep the provider's original status where
// one is available.
func mapErrorToHTTPStatus(err error) int {
	if status, ok := upstreamStatus(err); ok {
		return status
	}
	switch {
	case domain.IsKind(err, domain.ErrFormat),
		domain.IsKind(err, domain.ErrValidation),
		domain.IsKind(err, domain.ErrEmptyDocument):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		// EXTRACT, LLM_PARSE and anything unexpected.
		return http.StatusInternalServerError
	}
}

func upstreamStatus(err error) (int, bool) {
	var generatorErr *generator.HTTPStatusError
	if errors.As(err, &generatorErr) {
		return generatorErr.StatusCode, true
	}
	var extractorErr *remote.HTTPStatusError
	if errors.As(err, &extractorErr) {
		return extractorErr.StatusCode, true
	}
	return 0, false
}

func errorCode(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrFormat):
		return "FORMAT"
	case domain.IsKind(err, domain.ErrEmptyDocument):
		return "EMPTY"
	case domain.IsKind(err, domain.ErrExtraction):
		return "EXTRACT"
	case domain.IsKind(err, domain.ErrLLMParse):
		return "LLM_PARSE"
	case domain.IsKind(err, domain.ErrRateLimited):
		return "LLM_RATE_LIMIT"
	case domain.IsKind(err, domain.ErrUpstream):
		return "UPSTREAM"
	case domain.IsKind(err, domain.ErrValidation):
		return "INVALID"
	case domain.IsKind(err, domain.ErrMissingArtifact):
		return "MISSING_ARTIFACT"
	default:
		return "UNEXPECTED"
	}
}
