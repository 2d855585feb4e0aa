package usecase

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/textnorm"
)

const deepAnalyzeTokens = 500

// generationStrategies is the fixed per-type dispatch table. Keys are
// the lowercased type names accepted from callers and produced by the
// type classifier; unknown types fall back to the general strategy.
var generationStrategies = map[string]domain.DocumentType{
	"libro":                 domain.TypeLibro,
	"articulo":              domain.TypeArticulo,
	"tesis":                 domain.TypeTesis,
	"objeto de conferencia": domain.TypeConferencia,
	"general":               domain.TypeGeneral,
}

// ExtractMetadataUseCase coordinates the inference pipeline: plain-text
// extraction, subject and type classification, tagged-text extraction,
// per-type metadata generation, optional deep analysis and final name
// cleanup.
type ExtractMetadataUseCase struct {
	extractor         ports.TextExtractor
	subjectClassifier ports.LabelClassifier
	typeClassifier    ports.LabelClassifier
	generator         ports.MetadataGenerator
	analyzer          ports.DeepAnalyzer
}

func NewExtractMetadataUseCase(
	extractor ports.TextExtractor,
	subjectClassifier ports.LabelClassifier,
	typeClassifier ports.LabelClassifier,
	generator ports.MetadataGenerator,
	analyzer ports.DeepAnalyzer,
) *ExtractMetadataUseCase {
	return &ExtractMetadataUseCase{
		extractor:         extractor,
		subjectClassifier: subjectClassifier,
		typeClassifier:    typeClassifier,
		generator:         generator,
		analyzer:          analyzer,
	}
}

// Extract runs the full inference pipeline over one uploaded file. The
// request carries the whole file in memory; each extraction pass gets a
// fresh reader over it.
func (uc *ExtractMetadataUseCase) Extract(ctx context.Context, req domain.ExtractRequest) (domain.MetadataRecord, error) {
	plainText, err := uc.extractor.ExtractPlain(ctx, req.Filename, bytes.NewReader(req.Data), req.Normalize)
	if err != nil {
		return nil, fmt.Errorf("extract plain text: %w", err)
	}

	subject, err := uc.classifySubject(ctx, plainText)
	if err != nil {
		return nil, err
	}

	typeKey, err := uc.resolveType(ctx, req.Type, plainText)
	if err != nil {
		return nil, err
	}

	taggedText, err := uc.extractor.ExtractTagged(ctx, req.Filename, bytes.NewReader(req.Data), domain.ExtractOptions{
		Normalize: req.Normalize,
		OCR:       req.OCR,
	})
	if err != nil {
		return nil, fmt.Errorf("extract tagged text: %w", err)
	}

	docType, ok := generationStrategies[typeKey]
	if !ok {
		typeKey, docType = "general", domain.TypeGeneral
	}

	metadata, err := uc.generator.Generate(ctx, taggedText, docType)
	if err != nil {
		return nil, fmt.Errorf("generate metadata: %w", err)
	}
	metadata[domain.FieldType] = typeKey
	metadata[domain.FieldSubject] = subject

	if req.DeepAnalyze {
		metadata, err = uc.deepAnalyze(ctx, taggedText, metadata)
		if err != nil {
			return nil, err
		}
	}

	textnorm.CleanNameFields(metadata)
	return metadata, nil
}

func (uc *ExtractMetadataUseCase) classifySubject(ctx context.Context, plainText string) (string, error) {
	subjects, err := uc.subjectClassifier.Predict(ctx, []string{plainText})
	if err != nil {
		return "", fmt.Errorf("classify subject: %w", err)
	}
	if len(subjects) != 1 {
		return "", fmt.Errorf("classify subject: got %d predictions for one text", len(subjects))
	}
	return subjects[0], nil
}

// resolveType honors a caller-supplied type without invoking the type
// classifier; classification only runs when the caller left it empty.
func (uc *ExtractMetadataUseCase) resolveType(ctx context.Context, requested, plainText string) (string, error) {
	if requested != "" {
		return strings.ToLower(strings.TrimSpace(requested)), nil
	}
	types, err := uc.typeClassifier.Predict(ctx, []string{plainText})
	if err != nil {
		return "", fmt.Errorf("classify type: %w", err)
	}
	if len(types) != 1 {
		return "", fmt.Errorf("classify type: got %d predictions for one text", len(types))
	}
	return strings.ToLower(strings.TrimSpace(types[0])), nil
}

// deepAnalyze sends the shortened tagged text plus the fields extracted
// so far through the validation LLM and adopts its answer wholesale.
func (uc *ExtractMetadataUseCase) deepAnalyze(ctx context.Context, taggedText string, metadata domain.MetadataRecord) (domain.MetadataRecord, error) {
	prompt := buildValidationPrompt(textnorm.ShortenTokens(taggedText, deepAnalyzeTokens), metadata)
	validated, err := uc.analyzer.Analyze(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("deep analyze: %w", err)
	}
	// The validator answers with the full corrected record; keep the
	// resolved type and subject if it dropped them.
	if validated.String(domain.FieldType) == "" {
		validated[domain.FieldType] = metadata[domain.FieldType]
	}
	if validated.String(domain.FieldSubject) == "" {
		validated[domain.FieldSubject] = metadata[domain.FieldSubject]
	}
	return validated, nil
}

func buildValidationPrompt(shortenedText string, metadata domain.MetadataRecord) string {
	fields := make([]string, 0, len(metadata))
	for field := range metadata {
		fields = append(fields, field)
	}
	var b strings.Builder
	b.WriteString("Validate and correct the following metadata extracted from the document. ")
	b.WriteString("Check every field against the text and answer with the corrected metadata as a JSON object with the same fields: ")
	b.WriteString(strings.Join(sortStrings(fields), ", "))
	b.WriteString(".\nExtracted metadata:\n")
	b.WriteString(renderMetadata(metadata))
	b.WriteString("\nDocument text:\n")
	b.WriteString(shortenedText)
	return b.String()
}

func renderMetadata(metadata domain.MetadataRecord) string {
	var b strings.Builder
	for _, field := range sortStrings(keysOf(metadata)) {
		b.WriteString(field)
		b.WriteString(": ")
		b.WriteString(strings.Join(metadata.Strings(field), "; "))
		b.WriteString("\n")
	}
	return b.String()
}

func keysOf(metadata domain.MetadataRecord) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	return keys
}

func sortStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
