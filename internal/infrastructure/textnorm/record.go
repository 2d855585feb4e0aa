package textnorm

import (
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// AmendTitle folds a non-empty subtitle into the title, joined with
// ": ", and removes the subtitle key. Title and subtitle are mutually
// exclusive in the final record.
func AmendTitle(record domain.MetadataRecord) {
	subtitle := record.String(domain.FieldSubtitle)
	if subtitle == "" {
		delete(record, domain.FieldSubtitle)
		return
	}
	if title := record.String(domain.FieldTitle); title != "" {
		record[domain.FieldTitle] = title + ": " + subtitle
	} else {
		record[domain.FieldTitle] = subtitle
	}
	delete(record, domain.FieldSubtitle)
}

// CleanNameFields strips honorifics from every name-bearing field,
// scalar or list.
func CleanNameFields(record domain.MetadataRecord) {
	for _, field := range domain.NameFields {
		if _, ok := record[field]; !ok {
			continue
		}
		record.SetStrings(field, StripHonorificsList(record.Strings(field)))
	}
}

// NormalizeRecord applies the full pre-training pass to one record:
// text repair on title, canonical keywords, type folding, honorific
// stripping, and title amendment.
func NormalizeRecord(record domain.MetadataRecord) {
	if title := record.String(domain.FieldTitle); title != "" {
		record[domain.FieldTitle] = Normalize(title)
	}
	if subtitle := record.String(domain.FieldSubtitle); subtitle != "" {
		record[domain.FieldSubtitle] = Normalize(subtitle)
	}
	if keywords := record.Strings(domain.FieldKeywords); len(keywords) > 0 {
		record.SetStrings(domain.FieldKeywords, CanonicalKeywords(keywords))
	}
	if docType := record.String(domain.FieldType); docType != "" {
		record[domain.FieldType] = CanonicalType(docType)
	}
	CleanNameFields(record)
	AmendTitle(record)
}
