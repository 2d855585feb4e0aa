package generator

import (
	"encoding/json"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// ParseModelJSON decodes the model's raw generation defensively:
// strip code fences, attempt a straight parse, then retry once with
// single quotes promoted to double quotes. Persistent failure is a
// parse error the caller surfaces as-is.
func ParseModelJSON(raw string) (domain.MetadataRecord, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var record domain.MetadataRecord
	if err := json.Unmarshal([]byte(cleaned), &record); err == nil {
		return record, nil
	}

	// Models trained on Python reprs emit single-quoted objects.
	retried := strings.ReplaceAll(cleaned, "'", `"`)
	if err := json.Unmarshal([]byte(retried), &record); err != nil {
		return nil, domain.WrapError(domain.ErrLLMParse, "parse model output", err)
	}
	return record, nil
}
