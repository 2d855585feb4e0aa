// Package remote talks to the standalone extractor service over HTTP.
// It implements the same contract as the in-process extractor so the
// orchestrator can be wired to either.
package remote

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, token string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (c *Client) ExtractPlain(ctx context.Context, filename string, data io.Reader, normalize bool) (string, error) {
	return c.extract(ctx, "/extract", filename, data, normalize)
}

func (c *Client) ExtractTagged(ctx context.Context, filename string, data io.Reader, opts domain.ExtractOptions) (string, error) {
	return c.extract(ctx, "/extract-with-tags", filename, data, opts.Normalize)
}

func (c *Client) extract(ctx context.Context, path, filename string, data io.Reader, normalize bool) (string, error) {
	// The request body is consumed on every attempt, so buffer once.
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "read document", err)
	}

	operation := strings.TrimPrefix(path, "/")
	var text string
	err = c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		var execErr error
		text, execErr = c.postFile(ctx, path, filename, raw, normalize, operation)
		return execErr
	}, classifyExtractorError)
	if err != nil {
		return "", wrapExtractorError(operation, err)
	}
	return text, nil
}
