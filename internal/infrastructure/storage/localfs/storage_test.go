package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

func TestSaveCreatesNestedKeys(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	if err := storage.Save(ctx, "texts/10915-1.txt", strings.NewReader("texto")); err != nil {
		t.Fatalf("save: %v", err)
	}

	reader, err := storage.Open(ctx, "texts/10915-1.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()
	raw, _ := io.ReadAll(reader)
	if string(raw) != "texto" {
		t.Fatalf("content = %q", raw)
	}

	ok, err := storage.Exists(ctx, "texts/10915-1.txt")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}
	ok, err = storage.Exists(ctx, "texts/10915-2.txt")
	if err != nil || ok {
		t.Fatalf("phantom file: %v, %v", ok, err)
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = storage.Open(context.Background(), "pdfs/10915-9.pdf")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if err := storage.Save(ctx, "jsons/10915-1.json", strings.NewReader(`{"title":"v1"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := storage.Save(ctx, "jsons/10915-1.json", strings.NewReader(`{"title":"v2"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	reader, _ := storage.Open(ctx, "jsons/10915-1.json")
	defer reader.Close()
	raw, _ := io.ReadAll(reader)
	if !strings.Contains(string(raw), "v2") {
		t.Fatalf("content = %q", raw)
	}
}
