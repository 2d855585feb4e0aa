package cleaner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionSpendsBudget(t *testing.T) {
	s := NewSession(RateBudget{ReqPerMin: 2, ReqPerDay: 10, TokPerMin: 6000}, 2500, discardLogger())
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		s.Spend()
	}

	got := s.Snapshot()
	if got.ReqPerMin != 0 || got.ReqPerDay != 8 || got.TokPerMin != 1000 {
		t.Fatalf("unexpected budget after two requests: %+v", got)
	}

	// Minute budget is gone; Acquire must block until cancelled.
	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := s.Acquire(blocked); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSessionMinuteReset(t *testing.T) {
	// Built by hand so the reset ticker fires within the test.
	s2 := &Session{
		budget:        RateBudget{ReqPerMin: 1, ReqPerDay: 5, TokPerMin: 2500},
		initial:       RateBudget{ReqPerMin: 1, ReqPerDay: 5, TokPerMin: 2500},
		tokensPerItem: 2500,
		resetInterval: 20 * time.Millisecond,
		pollInterval:  5 * time.Millisecond,
		done:          make(chan struct{}),
		logger:        discardLogger(),
	}
	go s2.resetLoop()
	defer s2.Close()

	ctx := context.Background()
	if err := s2.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	s2.Spend()

	// Second acquire only succeeds once the ticker restores the
	// per-minute counters. Day budget must keep decaying.
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s2.Acquire(waitCtx); err != nil {
		t.Fatalf("acquire after reset: %v", err)
	}
	s2.Spend()
	if got := s2.Snapshot().ReqPerDay; got != 3 {
		t.Fatalf("day budget = %d, want 3", got)
	}
}

func TestRetryDelayFrom(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Duration
	}{
		{"openai hint", "Rate limit reached. Please retry in 2.5s. Visit docs", 2500 * time.Millisecond},
		{"genai hint", "429 RESOURCE_EXHAUSTED {'retryDelay': '41s'}", 41 * time.Second},
		{"no hint", "429 too many requests", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryDelayFrom(tc.text); got != tc.want {
				t.Fatalf("retryDelayFrom(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestCallWithRetryGivesUpOnPersistentError(t *testing.T) {
	t.Parallel()
	calls := 0
	boom := errors.New("boom")
	_, err := callWithRetry(context.Background(), discardLogger(), func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != cleanAttempts {
		t.Fatalf("calls = %d, want %d", calls, cleanAttempts)
	}
}

func TestParseResponseStripsFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bare", `{"title": "Redes neuronales"}`},
		{"fenced", "```json\n{\"title\": \"Redes neuronales\"}\n```"},
		{"fenced no lang", "```\n{\"title\": \"Redes neuronales\"}\n```"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			record, err := parseResponse(tc.input)
			if err != nil {
				t.Fatalf("parseResponse: %v", err)
			}
			if record.String("title") != "Redes neuronales" {
				t.Fatalf("title = %q", record.String("title"))
			}
		})
	}
}

func TestParseResponseRejectsProse(t *testing.T) {
	_, err := parseResponse("Here is the corrected metadata: title was wrong")
	if !domain.IsKind(err, domain.ErrLLMParse) {
		t.Fatalf("expected ErrLLMParse, got %v", err)
	}
}

func TestValidateExactMatchRightsCorrelated(t *testing.T) {
	v := NewValidator(discardLogger())
	text := "Esta obra se distribuye bajo licencia Creative Commons Atribución 4.0"

	original := domain.MetadataRecord{
		"rights":    "Creative Commons Attribution 4.0 International (CC BY 4.0)",
		"rightsurl": "http://creativecommons.org/licenses/by/4.0/",
	}
	cleaned := domain.MetadataRecord{"rights": "mangled", "rightsurl": "mangled"}
	v.ValidateExactMatch(cleaned, original, text)

	// One CC hit validates both fields, restoring the originals.
	if cleaned.String("rights") != original.String("rights") {
		t.Fatalf("rights = %v", cleaned["rights"])
	}
	if cleaned.String("rightsurl") != original.String("rightsurl") {
		t.Fatalf("rightsurl = %v", cleaned["rightsurl"])
	}
}

func TestValidateExactMatchNullsMissing(t *testing.T) {
	v := NewValidator(discardLogger())
	original := domain.MetadataRecord{
		"rights":     "CC BY-NC-SA 4.0",
		"rightsurl":  "http://creativecommons.org/licenses/by-nc-sa/4.0/",
		"sedici.uri": "http://sedici.unlp.edu.ar/handle/10915/12345",
	}
	cleaned := domain.MetadataRecord{}
	v.ValidateExactMatch(cleaned, original, "Resumen: un texto sin licencia ni enlaces.")

	for _, field := range []string{"rights", "rightsurl", "sedici.uri"} {
		value, ok := cleaned[field]
		if !ok || value != nil {
			t.Fatalf("%s = %v, want explicit null", field, value)
		}
	}
}

func TestValidateExactMatchURIContainment(t *testing.T) {
	v := NewValidator(discardLogger())
	original := domain.MetadataRecord{"sedici.uri": "http://sedici.unlp.edu.ar/handle/10915/99"}
	cleaned := domain.MetadataRecord{}
	v.ValidateExactMatch(cleaned, original, "Disponible en HTTP://SEDICI.UNLP.EDU.AR/handle/10915/99 desde 2020")

	if cleaned.String("sedici.uri") != original.String("sedici.uri") {
		t.Fatalf("sedici.uri = %v", cleaned["sedici.uri"])
	}
}

func TestValidateIdentifiers(t *testing.T) {
	v := NewValidator(discardLogger())

	record := domain.MetadataRecord{"issn": "2314-3991", "isbn": "978-950-34-1234-5"}
	text := "Revista (ISSN 2314 3991). ISBN: 978-950-34-1234-5."
	v.ValidateIdentifiers(record, text)
	if record.String("issn") != "2314-3991" {
		t.Fatalf("issn = %v", record["issn"])
	}
	if record.String("isbn") != "978-950-34-1234-5" {
		t.Fatalf("isbn = %v", record["isbn"])
	}

	record = domain.MetadataRecord{"issn": "1111-2222"}
	v.ValidateIdentifiers(record, text)
	if record["issn"] != nil {
		t.Fatalf("issn = %v, want null", record["issn"])
	}
}

type scriptedProvider struct {
	responses map[string]string
	calls     int
}

func (p *scriptedProvider) Name() string              { return "scripted" }
func (p *scriptedProvider) DefaultBudget() RateBudget { return RateBudget{1000, 1000, 1 << 20} }

func (p *scriptedProvider) Clean(_ context.Context, metadata map[string]any, _ string) (string, error) {
	p.calls++
	title, _ := metadata["title"].(string)
	if response, ok := p.responses[title]; ok {
		return response, nil
	}
	encoded, _ := json.Marshal(metadata)
	return string(encoded), nil
}

func writeInputRecord(t *testing.T, dir, id string, record domain.MetadataRecord) {
	t.Helper()
	raw, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), raw, 0o644); err != nil {
		t.Fatalf("write record: %v", err)
	}
}

func TestRunnerResumesAndWritesAtomically(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	writeInputRecord(t, inputDir, "10915-1", domain.MetadataRecord{
		"title": "uno", originalTextKey: "texto uno",
	})
	writeInputRecord(t, inputDir, "10915-2", domain.MetadataRecord{
		"title": "dos", originalTextKey: "texto dos",
	})
	// Already cleaned: must be skipped untouched.
	done := []byte(`{"title": "hecho"}`)
	if err := os.WriteFile(filepath.Join(outputDir, "10915-1.json"), done, 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}

	session := NewSession(RateBudget{ReqPerMin: 100, ReqPerDay: 100, TokPerMin: 1 << 20}, 1, discardLogger())
	defer session.Close()
	provider := &scriptedProvider{}
	runner := NewRunner(session, provider, discardLogger())

	processed, err := runner.Run(context.Background(), inputDir, outputDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if processed != 1 || provider.calls != 1 {
		t.Fatalf("processed=%d calls=%d, want 1 and 1", processed, provider.calls)
	}

	kept, err := os.ReadFile(filepath.Join(outputDir, "10915-1.json"))
	if err != nil || string(kept) != string(done) {
		t.Fatalf("pre-existing output modified: %q, %v", kept, err)
	}

	cleaned, err := readRecord(filepath.Join(outputDir, "10915-2.json"))
	if err != nil {
		t.Fatalf("read cleaned: %v", err)
	}
	if cleaned.String("title") != "dos" {
		t.Fatalf("title = %v", cleaned["title"])
	}
	if cleaned[originalTextKey] != "texto dos" {
		t.Fatalf("original text not carried through: %v", cleaned[originalTextKey])
	}
}

func TestRunnerRoutesBadResponsesToRaw(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	writeInputRecord(t, inputDir, "10915-3", domain.MetadataRecord{
		"title": "roto", originalTextKey: "texto",
	})

	session := NewSession(RateBudget{ReqPerMin: 100, ReqPerDay: 100, TokPerMin: 1 << 20}, 1, discardLogger())
	defer session.Close()
	provider := &scriptedProvider{responses: map[string]string{"roto": "sorry, not JSON"}}
	runner := NewRunner(session, provider, discardLogger())

	processed, err := runner.Run(context.Background(), inputDir, outputDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}

	if _, err := os.Stat(filepath.Join(outputDir, "10915-3.json")); !os.IsNotExist(err) {
		t.Fatalf("bad response must not reach the output store: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(outputDir, "raw", "10915-3.txt"))
	if err != nil || string(raw) != "sorry, not JSON" {
		t.Fatalf("raw sidecar = %q, %v", raw, err)
	}
}
