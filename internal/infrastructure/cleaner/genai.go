package cleaner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	genaiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	genaiModel   = "gemini-2.5-flash"
)

// GenaiDefaultBudget mirrors the free-tier quota of the Gemini API.
var GenaiDefaultBudget = RateBudget{ReqPerMin: 15, ReqPerDay: 1000, TokPerMin: 250000}

type GenaiProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGenaiProvider(apiKey string, logger *slog.Logger) *GenaiProvider {
	return &GenaiProvider{
		baseURL:    genaiBaseURL,
		apiKey:     apiKey,
		model:      genaiModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

func (p *GenaiProvider) Name() string              { return "genai" }
func (p *GenaiProvider) DefaultBudget() RateBudget { return GenaiDefaultBudget }

func (p *GenaiProvider) Clean(ctx context.Context, metadata map[string]any, text string) (string, error) {
	input, err := cleanInput(metadata, text)
	if err != nil {
		return "", err
	}
	return callWithRetry(ctx, p.logger, func(ctx context.Context) (string, error) {
		return p.generateContent(ctx, input)
	})
}

func (p *GenaiProvider) generateContent(ctx context.Context, input string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": input}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("genai generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("genai generate status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("genai generate: empty response")
	}
	return response.Candidates[0].Content.Parts[0].Text, nil
}
