package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/resilience"
)

func TestParseModelJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		title string
	}{
		{"plain", `{"title": "Genotoxicidad"}`, "Genotoxicidad"},
		{"fenced", "```json\n{\"title\": \"Genotoxicidad\"}\n```", "Genotoxicidad"},
		{"single quotes", `{'title': 'Genotoxicidad'}`, "Genotoxicidad"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record, err := ParseModelJSON(tc.input)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if record.String("title") != tc.title {
				t.Fatalf("title = %q", record.String("title"))
			}
		})
	}
}

func TestParseModelJSONPersistentFailure(t *testing.T) {
	_, err := ParseModelJSON("the metadata could not be determined")
	if !domain.IsKind(err, domain.ErrLLMParse) {
		t.Fatalf("expected ErrLLMParse, got %v", err)
	}
}

func TestSchemaFieldsPerType(t *testing.T) {
	general := SchemaFields(domain.TypeGeneral)
	if len(general) != len(CommonFields) {
		t.Fatalf("general schema = %d fields, want %d", len(general), len(CommonFields))
	}

	tesis := SchemaFields(domain.TypeTesis)
	for _, field := range []string{"director", "codirector", "degree.grantor", "degree.name"} {
		if !containsField(tesis, field) {
			t.Fatalf("tesis schema missing %s", field)
		}
	}

	libro := TypeOnlyFields(domain.TypeLibro)
	for _, excluded := range []string{"rights", "rightsurl"} {
		if containsField(libro, excluded) {
			t.Fatalf("type-only schema carries separately validated field %s", excluded)
		}
	}
	if !containsField(libro, "isbn") || !containsField(libro, "publisher") || !containsField(libro, "compiler") {
		t.Fatalf("libro schema = %v", libro)
	}
}

func containsField(fields []string, want string) bool {
	for _, field := range fields {
		if field == want {
			return true
		}
	}
	return false
}

func TestSchemaJSONShape(t *testing.T) {
	rendered := SchemaJSON([]string{"title", "creator"})
	var parsed map[string]string
	if err := json.Unmarshal([]byte(rendered), &parsed); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if parsed["title"] != "" || parsed["creator"] != "" {
		t.Fatalf("schema values must be empty strings: %v", parsed)
	}
}

func TestValidateRecord(t *testing.T) {
	good := domain.MetadataRecord{
		"title":   "Genotoxicidad y carcinogénesis",
		"creator": []any{"Ruiz de Arcaute, Celeste"},
		"isbn":    "978-950-34-1987-8",
	}
	if err := ValidateRecord(good, domain.TypeLibro); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	// isbn belongs to Libro, not to the general schema.
	if err := ValidateRecord(good, domain.TypeGeneral); err == nil {
		t.Fatalf("general schema accepted a book field")
	}

	bad := domain.MetadataRecord{"title": 42}
	if err := ValidateRecord(bad, domain.TypeLibro); err == nil {
		t.Fatalf("numeric title accepted")
	}
}

func sampleRecords(n int) []SourceRecord {
	records := make([]SourceRecord, n)
	for i := range records {
		records[i] = SourceRecord{
			ID:   fmt.Sprintf("10915-%d", i),
			Type: domain.TypeLibro,
			Record: domain.MetadataRecord{
				"title":     fmt.Sprintf("Obra %d", i),
				"creator":   "Pérez, Juan",
				"rights":    "CC BY-NC-SA 4.0",
				"rightsurl": "http://creativecommons.org/licenses/by-nc-sa/4.0/",
				"isbn":      "978-950-34-1987-8",
				"publisher": "EDULP",
			},
			Text: fmt.Sprintf("<h1>Obra %d</h1> <p>texto del libro</p>", i),
		}
	}
	return records
}

func TestBuildTrainingSetPartition(t *testing.T) {
	split, err := BuildTrainingSet(sampleRecords(10), ModePrompt)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// Two items per document, 8/1/1 documents.
	if len(split.Training) != 16 || len(split.Test) != 2 || len(split.Validation) != 2 {
		t.Fatalf("partition = %d/%d/%d", len(split.Training), len(split.Test), len(split.Validation))
	}
	// Both items of one document share its id and partition.
	if split.Test[0].ID != split.Test[1].ID {
		t.Fatalf("document items separated: %s vs %s", split.Test[0].ID, split.Test[1].ID)
	}
}

func TestBuildTrainingSetTargets(t *testing.T) {
	split, err := BuildTrainingSet(sampleRecords(10), ModeSchema)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	var general, typed domain.MetadataRecord
	if err := json.Unmarshal([]byte(split.Training[0].Output), &general); err != nil {
		t.Fatalf("general target: %v", err)
	}
	if err := json.Unmarshal([]byte(split.Training[1].Output), &typed); err != nil {
		t.Fatalf("typed target: %v", err)
	}

	if _, ok := general["isbn"]; ok {
		t.Fatalf("general item leaked a type field")
	}
	if _, ok := general["rights"]; !ok {
		t.Fatalf("general item missing rights")
	}
	if _, ok := typed["isbn"]; !ok {
		t.Fatalf("type item missing isbn")
	}
	if _, ok := typed["rights"]; ok {
		t.Fatalf("type item carries a separately validated field")
	}

	if !strings.Contains(split.Training[0].Input, "### Template:") {
		t.Fatalf("schema-mode input missing template section")
	}
	if !strings.HasPrefix(split.Training[0].Input, "<|input|>") {
		t.Fatalf("schema-mode input missing marker")
	}
}

func TestBuildTrainingSetPromptMode(t *testing.T) {
	split, err := BuildTrainingSet(sampleRecords(10), ModePrompt)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	input := split.Training[1].Input
	if !strings.Contains(input, "publisher, isbn, compiler") {
		t.Fatalf("libro prompt missing type extras: %s", input[:120])
	}
	if !strings.Contains(input, " Document: ") {
		t.Fatalf("prompt-mode input missing document separator")
	}
}

func TestTruncateTokens(t *testing.T) {
	text := strings.Repeat("palabra ", 3000)
	truncated := TruncateTokens(text, MaxTokensInput)
	if got := len(strings.Fields(truncated)); got != MaxTokensInput {
		t.Fatalf("token count = %d, want %d", got, MaxTokensInput)
	}
	short := "pocas palabras"
	if TruncateTokens(short, MaxTokensInput) != short {
		t.Fatalf("short text modified")
	}
}

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
	return NewClient(server.URL, "secret", executor)
}

func TestClientGenerate(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["type"] != "Libro" {
			t.Errorf("type = %s", payload["type"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{
				"output": "```json\n{\"title\": \"Genotoxicidad\", \"isbn\": \"978-950-34-1987-8\"}\n```",
			},
		})
	}))

	record, err := client.Generate(context.Background(), "<h1>Genotoxicidad</h1>", domain.TypeLibro)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if record.String("title") != "Genotoxicidad" || record.String("isbn") != "978-950-34-1987-8" {
		t.Fatalf("record = %v", record)
	}
}

func TestClientGenerateUpstreamError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	_, err := client.Generate(context.Background(), "texto", domain.TypeGeneral)
	if !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestClientGenerateParseError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"output": "no pude extraer los metadatos"},
		})
	}))
	_, err := client.Generate(context.Background(), "texto", domain.TypeGeneral)
	if !domain.IsKind(err, domain.ErrLLMParse) {
		t.Fatalf("expected ErrLLMParse, got %v", err)
	}
}
