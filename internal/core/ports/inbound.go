package ports

import (
	"context"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// MetadataExtractor is the inbound contract for the single public
// orchestration operation.
type MetadataExtractor interface {
	Extract(ctx context.Context, req domain.ExtractRequest) (domain.MetadataRecord, error)
}

// DocumentProcessor is the inbound contract for asynchronous text
// extraction at dataset-build time.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
