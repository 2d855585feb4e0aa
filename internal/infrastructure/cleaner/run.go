package cleaner

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// Records embed the extracted text under this key so the cleaned store
// stays self-contained for training.
const originalTextKey = "original_text"

// Runner drives one resumable cleaning pass: every input document
// without a counterpart in the output directory is sent through the
// provider, one atomic write per document. A crash loses at most the
// document in flight, and a single bad response never aborts the run.
type Runner struct {
	session   *Session
	provider  Provider
	validator *Validator
	logger    *slog.Logger
}

func NewRunner(session *Session, provider Provider, logger *slog.Logger) *Runner {
	return &Runner{
		session:   session,
		provider:  provider,
		validator: NewValidator(logger),
		logger:    logger,
	}
}

// Run cleans inputDir into outputDir. Returns how many documents were
// processed in this invocation.
func (r *Runner) Run(ctx context.Context, inputDir, outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, domain.WrapError(domain.ErrValidation, "create output dir", err)
	}
	pending, err := pendingIDs(inputDir, outputDir)
	if err != nil {
		return 0, err
	}
	r.logger.Info("cleaning run", "provider", r.provider.Name(), "pending", len(pending))

	processed := 0
	for _, id := range pending {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := r.cleanOne(ctx, id, inputDir, outputDir); err != nil {
			if domain.IsKind(err, domain.ErrRateLimited) {
				return processed, err
			}
			r.logger.Warn("document skipped", "id", id, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (r *Runner) cleanOne(ctx context.Context, id, inputDir, outputDir string) error {
	record, err := readRecord(filepath.Join(inputDir, id+".json"))
	if err != nil {
		return err
	}
	text, _ := record[originalTextKey].(string)
	metadata := make(map[string]any, len(record))
	for k, v := range record {
		if k != originalTextKey {
			metadata[k] = v
		}
	}

	if err := r.session.Acquire(ctx); err != nil {
		return err
	}
	response, err := r.provider.Clean(ctx, metadata, text)
	r.session.Spend()
	if err != nil {
		return domain.WrapError(domain.ErrUpstream, "clean document", err)
	}

	cleaned, err := parseResponse(response)
	if err != nil {
		// Record the raw response for inspection; never poison the
		// output store with unparseable JSON.
		r.logger.Warn("unparseable clean response", "id", id)
		return writeRaw(filepath.Join(outputDir, "raw", id+".txt"), response)
	}
	r.validator.ValidateExactMatch(cleaned, domain.MetadataRecord(metadata), text)
	r.validator.ValidateIdentifiers(cleaned, text)

	cleaned[originalTextKey] = text
	return writeAtomic(filepath.Join(outputDir, id+".json"), cleaned)
}

// pendingIDs lists input ids absent from the output store, sorted by
// filename for stable progress logs. Ordering carries no significance
// otherwise.
func pendingIDs(inputDir, outputDir string) ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "list input dir", err)
	}
	var pending []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if _, err := os.Stat(filepath.Join(outputDir, name)); err == nil {
			continue
		}
		pending = append(pending, id)
	}
	return pending, nil
}

// parseResponse strips triple-backtick fences and decodes the JSON
// object.
func parseResponse(response string) (domain.MetadataRecord, error) {
	cleaned := strings.TrimSpace(response)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	var record domain.MetadataRecord
	if err := json.Unmarshal([]byte(cleaned), &record); err != nil {
		return nil, domain.WrapError(domain.ErrLLMParse, "parse clean response", err)
	}
	return record, nil
}

func readRecord(path string) (domain.MetadataRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "read input record", err)
	}
	var record domain.MetadataRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "parse input record", err)
	}
	return record, nil
}

// writeAtomic persists via write-then-replace so readers never observe
// a torn document.
func writeAtomic(path string, record domain.MetadataRecord) error {
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return domain.WrapError(domain.ErrValidation, "encode record", err)
	}
	temp := path + ".tmp"
	if err := os.WriteFile(temp, raw, 0o644); err != nil {
		return domain.WrapError(domain.ErrValidation, "write record", err)
	}
	if err := os.Rename(temp, path); err != nil {
		return domain.WrapError(domain.ErrValidation, "replace record", err)
	}
	return nil
}

func writeRaw(path, response string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.WrapError(domain.ErrValidation, "create raw dir", err)
	}
	return os.WriteFile(path, []byte(response), 0o644)
}
