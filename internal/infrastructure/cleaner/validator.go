package cleaner

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// ccLicense matches the three ways a Creative Commons license shows up
// in extracted text: the spelled-out form with an optional version, the
// abbreviated CC-BY family, and the canonical license URL.
var ccLicense = regexp.MustCompile(`(?i)(?:` +
	`(?:licencia\s*)?creative\s*commons(?:.*?\b\d+\.\d+\b)?` +
	`|cc[-\s]*by(?:[-\s]?[a-z]+)*(?:\s*\d+\.\d+(?:\s*\w+)?)?` +
	`|https?://creativecommons\.org/licenses/[\w\-/]*(?:/\d+\.\d+[^/\s]*)?` +
	`)`)

// ISBN shapes seen in repository text, most specific first. Hyphens
// and spaces are stripped before comparing against the metadata value.
var isbnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)isbn[-:\s]*(\d{1,5}[-\s]?\d{1,7}[-\s]?\d{1,7}[-\s]?[\dX])`),
	regexp.MustCompile(`(?i)isbn[-:\s]*(\d{3}[-\s]?\d{1,5}[-\s]?\d{1,7}[-\s]?\d{1,7}[-\s]?\d)`),
	regexp.MustCompile(`(?i)\b(\d{1,5}[-\s]?\d{1,7}[-\s]?\d{1,7}[-\s]?[\dX])\b`),
	regexp.MustCompile(`(?i)\b(\d{3}[-\s]?\d{1,5}[-\s]?\d{1,7}[-\s]?\d{1,7}[-\s]?\d)\b`),
	regexp.MustCompile(`\b(\d{10}|\d{13})\b`),
}

var issnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)issn[-:\s]*(\d{4}[-\s]?\d{3}[\dX])`),
	regexp.MustCompile(`(?i)\b(\d{4}[-\s]?\d{3}[\dX])\b`),
}

var identifierSeparators = regexp.MustCompile(`[-\s]`)

// NormalizeIdentifier strips hyphens and whitespace so "978 950-34"
// and "97895034" compare equal.
func NormalizeIdentifier(identifier string) string {
	return identifierSeparators.ReplaceAllString(strings.TrimSpace(identifier), "")
}

// Validator runs the deterministic checks that follow the LLM pass.
// The model rewrites values freely, so the final word on the fields
// that must be exact belongs to the pre-clean record and the text.
type Validator struct {
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger}
}

// ValidateExactMatch restores or nulls the exact-match fields of a
// cleaned record using the pre-clean values and the document text.
// Rights and rightsurl are correlated: one hit validates both. The
// URI fields validate independently by case-insensitive containment.
func (v *Validator) ValidateExactMatch(cleaned, original domain.MetadataRecord, text string) {
	lowerText := strings.ToLower(text)

	_, hasRights := original["rights"]
	_, hasRightsURL := original["rightsurl"]
	if hasRights || hasRightsURL {
		rightsValid := false
		if original.String("rights") != "" && ccLicense.MatchString(text) {
			rightsValid = true
		}
		if url := original.String("rightsurl"); url != "" && strings.Contains(lowerText, strings.ToLower(url)) {
			rightsValid = true
		}
		if hasRights {
			applyExactResult(cleaned, "rights", original["rights"], rightsValid)
		}
		if hasRightsURL {
			applyExactResult(cleaned, "rightsurl", original["rightsurl"], rightsValid)
		}
	}

	for _, field := range []string{"sedici.uri", "dc.uri"} {
		value := original.String(field)
		if _, ok := original[field]; !ok || value == "" {
			continue
		}
		valid := strings.Contains(lowerText, strings.ToLower(value))
		applyExactResult(cleaned, field, original[field], valid)
	}
}

func applyExactResult(record domain.MetadataRecord, field string, original any, valid bool) {
	if valid {
		record[field] = original
	} else {
		record[field] = nil
	}
}

// ValidateIdentifiers nulls isbn and issn values that cannot be found
// in the text, comparing separator-insensitively against both the raw
// text and every pattern match.
func (v *Validator) ValidateIdentifiers(record domain.MetadataRecord, text string) {
	if isbn := record.String("isbn"); isbn != "" && isbn != "null" {
		if !identifierInText(text, isbn, isbnPatterns) {
			v.logger.Debug("isbn not found in text", "isbn", isbn)
			record["isbn"] = nil
		}
	}
	if issn := record.String("issn"); issn != "" && issn != "null" {
		if !identifierInText(text, issn, issnPatterns) {
			v.logger.Debug("issn not found in text", "issn", issn)
			record["issn"] = nil
		}
	}
}

func identifierInText(text, identifier string, patterns []*regexp.Regexp) bool {
	if text == "" || identifier == "" {
		return false
	}
	normalized := strings.ToLower(NormalizeIdentifier(identifier))
	lowerText := strings.ToLower(text)
	if strings.Contains(lowerText, normalized) {
		return true
	}
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllStringSubmatch(lowerText, -1) {
			if strings.ToLower(NormalizeIdentifier(match[1])) == normalized {
				return true
			}
		}
	}
	return false
}
