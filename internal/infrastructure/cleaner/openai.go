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
	openaiBaseURL = "https://api.openai.com/v1"
	openaiModel   = "gpt-5-mini"
)

// OpenAIDefaultBudget mirrors the tier-1 quota of the OpenAI API.
var OpenAIDefaultBudget = RateBudget{ReqPerMin: 60, ReqPerDay: 10000, TokPerMin: 200000}

type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOpenAIProvider(apiKey string, logger *slog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    openaiBaseURL,
		apiKey:     apiKey,
		model:      openaiModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

func (p *OpenAIProvider) Name() string              { return "openai" }
func (p *OpenAIProvider) DefaultBudget() RateBudget { return OpenAIDefaultBudget }

func (p *OpenAIProvider) Clean(ctx context.Context, metadata map[string]any, text string) (string, error) {
	input, err := cleanInput(metadata, text)
	if err != nil {
		return "", err
	}
	return callWithRetry(ctx, p.logger, func(ctx context.Context) (string, error) {
		return p.chatCompletion(ctx, input)
	})
}

func (p *OpenAIProvider) chatCompletion(ctx context.Context, input string) (string, error) {
	payload := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": input},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai chat status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty response")
	}
	return response.Choices[0].Message.Content, nil
}
