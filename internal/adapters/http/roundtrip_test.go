package httpadapter

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/extractor/remote"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/resilience"
)

// The remote extractor client and this router are two ends of the same
// wire contract, so one instance can serve as the extractor backend for
// another. Round-trip through a real server to keep them in agreement.
func TestRemoteClientRoundTrip(t *testing.T) {
	ext := &fakeTextExtractor{plain: "texto plano", tagged: "<h1>Titulo</h1>"}
	srv := httptest.NewServer(newTestRouter(&fakeOrchestrator{}, ext, "secret"))
	defer srv.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1})
	client := remote.New(srv.URL, "secret", executor)

	text, err := client.ExtractPlain(context.Background(), "tesis.pdf", strings.NewReader("%PDF-1.4 fake"), true)
	if err != nil {
		t.Fatalf("ExtractPlain: %v", err)
	}
	if text != "texto plano" {
		t.Fatalf("round-tripped text = %q, want %q", text, "texto plano")
	}

	tagged, err := client.ExtractTagged(context.Background(), "tesis.pdf", strings.NewReader("%PDF-1.4 fake"), domain.ExtractOptions{Normalize: true})
	if err != nil {
		t.Fatalf("ExtractTagged: %v", err)
	}
	if tagged != "<h1>Titulo</h1>" {
		t.Fatalf("round-tripped tagged text = %q, want %q", tagged, "<h1>Titulo</h1>")
	}
}

func TestRemoteClientRoundTripError(t *testing.T) {
	ext := &fakeTextExtractor{err: domain.WrapError(domain.ErrFormat, "parse pdf", io.ErrUnexpectedEOF)}
	srv := httptest.NewServer(newTestRouter(&fakeOrchestrator{}, ext, ""))
	defer srv.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1})
	client := remote.New(srv.URL, "", executor)

	_, err := client.ExtractPlain(context.Background(), "tesis.pdf", strings.NewReader("%PDF-1.4 fake"), false)
	if err == nil {
		t.Fatal("want error from failing extractor backend")
	}
	if !strings.Contains(err.Error(), "FORMAT") {
		t.Fatalf("error = %v, want server error kind carried through", err)
	}
}
