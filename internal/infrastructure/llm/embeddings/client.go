// Package embeddings talks to the multilingual sentence-embedding
// service used by the embedding-based classifier strategies.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/resilience"
)

// DefaultModel is the sentence-transformers checkpoint the service
// hosts; recorded in model descriptors so artifacts are never mixed
// across embedding spaces.
const DefaultModel = "paraphrase-multilingual-MiniLM-L12-v2"

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Embed encodes texts in request order. The service answers one vector
// per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": c.model,
		"texts": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/embed", request, &response, "embed")
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "embeddings.embed", call, classifyEmbeddingsError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}

	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
