package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFormat          = errors.New("unsupported format")
	ErrExtraction      = errors.New("extraction failed")
	ErrEmptyDocument   = errors.New("empty document")
	ErrMissingArtifact = errors.New("model artifact missing")
	ErrRateLimited     = errors.New("rate limited")
	ErrLLMParse        = errors.New("llm output parse failed")
	ErrUpstream        = errors.New("upstream failure")
	ErrValidation      = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTemporary       = errors.New("temporary failure")
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
