package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/resilience"
)

// Client talks to the fine-tuned model service. It implements both the
// metadata generation and the deep-analyze ports.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewClient(baseURL, token string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Generate sends tagged text through the fine-tuned model and returns
// the parsed, schema-validated record.
func (c *Client) Generate(ctx context.Context, taggedText string, docType domain.DocumentType) (domain.MetadataRecord, error) {
	payload := map[string]string{
		"text": TruncateTokens(taggedText, MaxTokensInput),
		"type": string(docType),
	}
	raw, err := c.call(ctx, "/generate", payload)
	if err != nil {
		return nil, err
	}
	record, err := ParseModelJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := ValidateRecord(record, docType); err != nil {
		return nil, err
	}
	return record, nil
}

// Analyze runs the optional validation pass: a free-form prompt whose
// answer is still expected to be a metadata object.
func (c *Client) Analyze(ctx context.Context, prompt string) (domain.MetadataRecord, error) {
	raw, err := c.call(ctx, "/deep-analyze", map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}
	return ParseModelJSON(raw)
}

func (c *Client) call(ctx context.Context, path string, payload map[string]string) (string, error) {
	operation := strings.TrimPrefix(path, "/")
	var output string
	err := c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		var execErr error
		output, execErr = c.postJSON(ctx, path, payload, operation)
		return execErr
	}, classifyGeneratorError)
	if err != nil {
		return "", wrapGeneratorError(operation, err)
	}
	return output, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload map[string]string, operation string) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s request: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	var envelope struct {
		Data struct {
			Output string `json:"output"`
		} `json:"data"`
		Error *struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decode %s response: %w", operation, err)
	}
	if envelope.Error != nil {
		return "", fmt.Errorf("%s service error %s: %s", operation, envelope.Error.Code, envelope.Error.Message)
	}
	return envelope.Data.Output, nil
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "generator status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("generator %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("generator %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func classifyGeneratorError(err error) resilience.ErrorClassification {
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
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
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

func wrapGeneratorError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return domain.WrapError(domain.ErrRateLimited, operation, err)
		}
		return domain.WrapError(domain.ErrUpstream, operation, err)
	}
	if classifyGeneratorError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return domain.WrapError(domain.ErrUpstream, operation, err)
}
