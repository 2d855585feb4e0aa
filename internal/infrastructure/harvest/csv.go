// Package harvest builds the training corpus from the repository's CSV
// export: projection onto the metadata field set, taxonomy mapping,
// per-label balancing, and the polite PDF downloader.
package harvest

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/textnorm"
)

// Only records published after this year enter the corpus.
const minYear = 2018

// projection describes how one source column family becomes one
// metadata field. Source cells are Dublin-Core style: `||` separates
// entries, `::` separates an entry from its qualifier.
type projection struct {
	source    string
	field     string
	transform func(string, *Taxonomy) any
}

var projections = []projection{
	{source: "dc.language", field: domain.FieldLanguage},
	{source: "sedici.subject.materias", field: domain.FieldSubject, transform: subjectCell},
	{source: "dc.title", field: domain.FieldTitle},
	{source: "sedici.title.subtitle", field: domain.FieldSubtitle},
	{source: "sedici.creator.person", field: domain.FieldCreator, transform: contributorCell},
	{source: "dc.subject", field: domain.FieldKeywords, transform: listCell},
	{source: "sedici.rights.license", field: domain.FieldRights},
	{source: "sedici.rights.uri", field: domain.FieldRightsURL},
	{source: "sedici.identifier.uri", field: "sedici.uri"},
	{source: "dc.identifier.uri", field: "dc.uri"},
	{source: "dc.date.issued", field: domain.FieldDate},
	{source: "mods.originInfo.place", field: domain.FieldOriginPlaceInfo, transform: institutionCell},
	{source: "sedici.relation.isRelatedWith", field: domain.FieldIsRelatedWith},
	{source: "sedici.contributor.codirector", field: domain.FieldCodirector, transform: contributorCell},
	{source: "sedici.contributor.director", field: domain.FieldDirector, transform: contributorCell},
	{source: "thesis.degree.grantor", field: domain.FieldDegreeGrantor, transform: qualifierCell},
	{source: "thesis.degree.name", field: domain.FieldDegreeName, transform: qualifierCell},
	{source: "dc.publisher", field: domain.FieldPublisher},
	{source: "sedici.identifier.isbn", field: domain.FieldISBN},
	{source: "sedici.contributor.compiler", field: domain.FieldCompiler, transform: contributorCell},
	{source: "sedici.contributor.editor", field: domain.FieldEditor, transform: contributorCell},
	{source: "sedici.relation.journalTitle", field: domain.FieldJournalTitle},
	{source: "sedici.relation.journalVolumeAndIssue", field: domain.FieldJournalVolumeAndIssue},
	{source: "sedici.identifier.issn", field: domain.FieldISSN},
	{source: "sedici.relation.event", field: domain.FieldEvent},
}

// Row is one projected repository record.
type Row struct {
	ID      string
	Type    string
	Subject string
	Year    int
	Record  domain.MetadataRecord
}

// ProjectCSV reads the repository export and emits the projected rows:
// type-whitelisted, year-filtered, id-derived, subject-mapped, sorted
// richest-record-first.
func ProjectCSV(r io.Reader, tax *Taxonomy) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "read csv header", err)
	}
	index := map[string][]int{}
	for i, name := range header {
		for _, p := range projections {
			if strings.Contains(name, p.source) {
				index[p.source] = append(index[p.source], i)
			}
		}
		for _, extra := range []string{"dc.type", "dc.identifier.uri"} {
			if strings.Contains(name, extra) {
				index[extra] = append(index[extra], i)
			}
		}
	}

	var rows []Row
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrValidation, "read csv row", err)
		}

		docType := textnorm.CanonicalType(firstCell(cells, index["dc.type"]))
		if !domain.IsValidType(docType) {
			continue
		}
		year := yearOf(firstCell(cells, index["dc.date.issued"]))
		if year <= minYear {
			continue
		}
		id := TransformURI(firstCell(cells, index["dc.identifier.uri"]))
		if id == "" {
			continue
		}

		record := domain.MetadataRecord{domain.FieldType: docType}
		for _, p := range projections {
			raw := firstCell(cells, index[p.source])
			if raw == "" {
				continue
			}
			if p.transform != nil {
				if v := p.transform(raw, tax); v != nil {
					record[p.field] = v
				}
				continue
			}
			record[p.field] = raw
		}

		rows = append(rows, Row{
			ID:      id,
			Type:    docType,
			Subject: record.String(domain.FieldSubject),
			Year:    year,
			Record:  record,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return len(rows[i].Record) > len(rows[j].Record)
	})
	return rows, nil
}

// TransformURI derives the canonical A-B id from the handle portion of
// dc.identifier.uri. Malformed uris yield "".
func TransformURI(uri string) string {
	if i := strings.Index(uri, "||"); i >= 0 {
		uri = uri[:i]
	}
	_, handle, found := strings.Cut(uri, "handle/")
	if !found {
		return ""
	}
	id := strings.ReplaceAll(strings.TrimSpace(handle), "/", "-")
	if !domain.HandleID.MatchString(id) {
		return ""
	}
	return id
}

func firstCell(cells []string, indices []int) string {
	for _, i := range indices {
		if i < len(cells) {
			if v := strings.TrimSpace(cells[i]); v != "" {
				return v
			}
		}
	}
	return ""
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func subjectCell(raw string, tax *Taxonomy) any {
	if mapped := tax.Map(raw); mapped != "" {
		return mapped
	}
	return nil
}

// contributorCell keeps each entry's name segment, scalar when single.
func contributorCell(raw string, _ *Taxonomy) any {
	entries := splitEntries(raw)
	if len(entries) == 0 {
		return nil
	}
	if len(entries) == 1 {
		return entries[0]
	}
	return entries
}

func institutionCell(raw string, _ *Taxonomy) any {
	entries := splitEntries(raw)
	if len(entries) == 0 {
		return nil
	}
	return strings.Join(entries, ", ")
}

func qualifierCell(raw string, _ *Taxonomy) any {
	if entries := splitEntries(raw); len(entries) > 0 {
		return entries[0]
	}
	return nil
}

func listCell(raw string, _ *Taxonomy) any {
	parts := strings.Split(raw, "||")
	entries := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			entries = append(entries, p)
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}

func splitEntries(raw string) []string {
	parts := strings.Split(raw, "||")
	entries := make([]string, 0, len(parts))
	for _, p := range parts {
		if i := strings.Index(p, "::"); i >= 0 {
			p = p[:i]
		}
		if p = strings.TrimSpace(p); p != "" {
			entries = append(entries, p)
		}
	}
	return entries
}
