package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// PairMode selects how training inputs are rendered.
type PairMode string

const (
	// ModeSchema embeds the enumerated empty-value template.
	ModeSchema PairMode = "schema"
	// ModePrompt embeds the natural-language prompt with a worked
	// example.
	ModePrompt PairMode = "prompt"
)

// SourceRecord is one cleaned dataset entry ready for pair assembly.
type SourceRecord struct {
	ID     string
	Type   domain.DocumentType
	Record domain.MetadataRecord
	Text   string
}

// GeneratorSplit holds the 0.8/0.1/0.1 training partition of pairs.
type GeneratorSplit struct {
	Training   []domain.TrainingPair
	Test       []domain.TrainingPair
	Validation []domain.TrainingPair
}

// BuildTrainingSet emits two items per document: one against the
// general schema restricted to the common fields, one against the
// type-specific schema without the separately validated fields. The
// split is positional (first 80% train, next 10% test, last 10%
// validation) so re-runs over the same store are reproducible.
func BuildTrainingSet(records []SourceRecord, mode PairMode) (GeneratorSplit, error) {
	// Documents split before pair assembly so both items of one
	// document always land in the same partition.
	trainEnd := int(float64(len(records)) * 0.8)
	testEnd := int(float64(len(records)) * 0.9)

	emit := func(slice []SourceRecord) ([]domain.TrainingPair, error) {
		var pairs []domain.TrainingPair
		for _, record := range slice {
			generalPair, err := buildPair(record, domain.TypeGeneral, CommonFields, mode)
			if err != nil {
				return nil, fmt.Errorf("document %s: %w", record.ID, err)
			}
			typePair, err := buildPair(record, record.Type, TypeOnlyFields(record.Type), mode)
			if err != nil {
				return nil, fmt.Errorf("document %s: %w", record.ID, err)
			}
			pairs = append(pairs, generalPair, typePair)
		}
		return pairs, nil
	}

	training, err := emit(records[:trainEnd])
	if err != nil {
		return GeneratorSplit{}, err
	}
	test, err := emit(records[trainEnd:testEnd])
	if err != nil {
		return GeneratorSplit{}, err
	}
	validation, err := emit(records[testEnd:])
	if err != nil {
		return GeneratorSplit{}, err
	}
	return GeneratorSplit{Training: training, Test: test, Validation: validation}, nil
}

func buildPair(record SourceRecord, docType domain.DocumentType, fields []string, mode PairMode) (domain.TrainingPair, error) {
	target := make(domain.MetadataRecord, len(fields))
	for _, field := range fields {
		if value, ok := record.Record[field]; ok && value != nil {
			target[field] = value
		}
	}
	output, err := json.Marshal(target)
	if err != nil {
		return domain.TrainingPair{}, fmt.Errorf("encode target: %w", err)
	}

	text := TruncateTokens(record.Text, MaxTokensInput)
	var input string
	switch mode {
	case ModeSchema:
		input = fmt.Sprintf("<|input|>\n### Template:\n%s\n### Example:\n%s\n### Text:\n%s\n<|output|>\n",
			SchemaJSON(fields), exampleFor(docType), text)
	case ModePrompt:
		input = fmt.Sprintf("%s Document: %s", PromptFor(docType), text)
	default:
		return domain.TrainingPair{}, fmt.Errorf("unknown pair mode %q", mode)
	}

	return domain.TrainingPair{
		ID:     record.ID,
		Input:  TruncateTokens(input, MaxTokensInput),
		Output: TruncateTokens(string(output), MaxTokensOutput),
	}, nil
}

func exampleFor(docType domain.DocumentType) string {
	if example, ok := promptExamples[docType]; ok {
		return example
	}
	if docType == domain.TypeConferencia {
		return promptExamples[domain.TypeArticulo]
	}
	return promptExamples[domain.TypeGeneral]
}

// TruncateTokens caps text at n whitespace-delimited tokens.
func TruncateTokens(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) <= n {
		return text
	}
	return strings.Join(fields[:n], " ")
}
