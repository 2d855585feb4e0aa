package domain

import (
	"regexp"
	"time"
)

// HandleID matches the repository's stable identifier, derived from the
// .../handle/A/B portion of dc.identifier.uri.
var HandleID = regexp.MustCompile(`^[0-9]+-[0-9]+$`)

type DocumentStatus string

const (
	StatusHarvested DocumentStatus = "harvested"
	StatusExtracted DocumentStatus = "extracted"
	StatusCleaned   DocumentStatus = "cleaned"
	StatusFailed    DocumentStatus = "failed"
)

type DocumentType string

const (
	TypeLibro       DocumentType = "Libro"
	TypeTesis       DocumentType = "Tesis"
	TypeArticulo    DocumentType = "Articulo"
	TypeConferencia DocumentType = "Objeto de conferencia"
	TypeGeneral     DocumentType = "General"
)

// ValidTypes is the dc.type whitelist applied when projecting the
// repository CSV.
var ValidTypes = []DocumentType{TypeLibro, TypeTesis, TypeArticulo, TypeConferencia}

func IsValidType(t string) bool {
	for _, v := range ValidTypes {
		if string(v) == t {
			return true
		}
	}
	return false
}

// Document is one repository item. The text views are derived caches and
// may be regenerated at any time; the id never changes.
type Document struct {
	ID          string         `json:"id"`
	Repo        string         `json:"repo"`
	Filename    string         `json:"filename"`
	Type        DocumentType   `json:"type,omitempty"`
	Subject     string         `json:"subject,omitempty"`
	PlainText   string         `json:"-"`
	TaggedText  string         `json:"-"`
	Metadata    MetadataRecord `json:"metadata,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	HarvestedAt time.Time      `json:"harvested_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
