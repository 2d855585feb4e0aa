// Package generator builds the prompt and training surfaces of the
// fine-tuned metadata model and the client that serves it.
package generator

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

const (
	MaxTokensInput  = 2048
	MaxTokensOutput = 512
)

// CommonFields are shared by every document type, in prompt order.
var CommonFields = []string{
	domain.FieldLanguage,
	domain.FieldKeywords,
	domain.FieldCreator,
	domain.FieldTitle,
	domain.FieldSubtitle,
	domain.FieldSubject,
	domain.FieldRights,
	domain.FieldRightsURL,
	domain.FieldDate,
	domain.FieldOriginPlaceInfo,
	domain.FieldIsRelatedWith,
}

// exactMatchFields are validated deterministically after generation,
// so type-specific training items leave them out.
var exactMatchFields = map[string]struct{}{
	domain.FieldRights:    {},
	domain.FieldRightsURL: {},
	domain.FieldSediciURI: {},
	domain.FieldDCURI:     {},
}

// typeExtras lists the fields each type adds on top of the common set.
var typeExtras = map[domain.DocumentType][]string{
	domain.TypeTesis:       {domain.FieldCodirector, domain.FieldDirector, domain.FieldDegreeGrantor, domain.FieldDegreeName},
	domain.TypeArticulo:    {domain.FieldJournalTitle, domain.FieldJournalVolumeAndIssue, domain.FieldISSN, domain.FieldEvent},
	domain.TypeLibro:       {domain.FieldPublisher, domain.FieldISBN, domain.FieldCompiler},
	domain.TypeConferencia: {domain.FieldEvent},
}

// SchemaFields returns the full field list for one document type.
// Unknown types get the general (common-only) schema.
func SchemaFields(docType domain.DocumentType) []string {
	fields := append([]string(nil), CommonFields...)
	return append(fields, typeExtras[docType]...)
}

// TypeOnlyFields returns the type-specific training target: the full
// schema minus the exact-match fields.
func TypeOnlyFields(docType domain.DocumentType) []string {
	var fields []string
	for _, field := range SchemaFields(docType) {
		if _, skip := exactMatchFields[field]; !skip {
			fields = append(fields, field)
		}
	}
	return fields
}

// SchemaJSON renders the enumerated empty-value template embedded in
// schema-mode prompts.
func SchemaJSON(fields []string) string {
	var b strings.Builder
	b.WriteString("{\n")
	for i, field := range fields {
		fmt.Fprintf(&b, "        %q: \"\"", field)
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

// compiledSchemas validate generated records per document type: every
// schema field optional, string or string-list valued, nothing else
// allowed.
var compiledSchemas = buildSchemas()

func buildSchemas() map[domain.DocumentType]*jsonschema.Schema {
	out := make(map[domain.DocumentType]*jsonschema.Schema)
	for _, docType := range append([]domain.DocumentType{domain.TypeGeneral}, domain.ValidTypes...) {
		var props strings.Builder
		fields := SchemaFields(docType)
		for i, field := range fields {
			fmt.Fprintf(&props, "%q: {\"oneOf\": [{\"type\": \"string\"}, {\"type\": \"null\"}, {\"type\": \"array\", \"items\": {\"type\": \"string\"}}]}", field)
			if i < len(fields)-1 {
				props.WriteString(",")
			}
		}
		document := fmt.Sprintf(`{
			"type": "object",
			"properties": {%s, "type": {"type": "string"}},
			"additionalProperties": false
		}`, props.String())

		schema, err := jsonschema.CompileString(string(docType)+".json", document)
		if err != nil {
			panic(fmt.Sprintf("compile %s schema: %v", docType, err))
		}
		out[docType] = schema
	}
	return out
}

// ValidateRecord checks a generated record against the type schema.
func ValidateRecord(record domain.MetadataRecord, docType domain.DocumentType) error {
	schema, ok := compiledSchemas[docType]
	if !ok {
		schema = compiledSchemas[domain.TypeGeneral]
	}
	value := make(map[string]any, len(record))
	for k, v := range record {
		value[k] = v
	}
	if err := schema.Validate(value); err != nil {
		return domain.WrapError(domain.ErrValidation, "validate generated record", err)
	}
	return nil
}
