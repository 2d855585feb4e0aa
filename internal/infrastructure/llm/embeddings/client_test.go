package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: 1,
		RetryMaxBackoff:     1,
		RetryMultiplier:     1,
	})
	return New(server.URL, "", executor)
}

func TestEmbedPreservesOrder(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload struct {
			Model string   `json:"model"`
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload.Model != DefaultModel {
			t.Errorf("model = %s", payload.Model)
		}
		vectors := make([][]float32, len(payload.Texts))
		for i := range payload.Texts {
			vectors[i] = []float32{float32(i), 1}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}))

	vectors, err := client.Embed(context.Background(), []string{"uno", "dos", "tres"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 3 || vectors[2][0] != 2 {
		t.Fatalf("vectors = %v", vectors)
	}
}

func TestEmbedLengthMismatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float32{{1}}})
	}))
	_, err := client.Embed(context.Background(), []string{"uno", "dos"})
	if err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestEmbedServerErrorIsTemporary(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	_, err := client.Embed(context.Background(), []string{"uno"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestEmbedEmptyInputSkipsCall(t *testing.T) {
	client := New("http://127.0.0.1:1", "", nil)
	vectors, err := client.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("expected nil/nil, got %v, %v", vectors, err)
	}
}
