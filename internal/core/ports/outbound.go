package ports

import (
	"context"
	"io"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// DocumentRegistry persists per-document pipeline state.
type DocumentRegistry interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	ListByStatus(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.Document, error)
}

// ObjectStorage stores source documents and derived text views.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// MessageQueue publishes/consumes extraction jobs at dataset-build time.
type MessageQueue interface {
	PublishExtractionJob(ctx context.Context, documentID string) error
	SubscribeExtractionJobs(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor produces the two text views of a document.
type TextExtractor interface {
	ExtractPlain(ctx context.Context, filename string, data io.Reader, normalize bool) (string, error)
	ExtractTagged(ctx context.Context, filename string, data io.Reader, opts domain.ExtractOptions) (string, error)
}

// LabelClassifier predicts one label per text, preserving input order.
type LabelClassifier interface {
	Predict(ctx context.Context, texts []string) ([]string, error)
}

// Embedder encodes texts with the multilingual sentence-embedding model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// MetadataGenerator turns tagged text into a metadata record for a
// document type.
type MetadataGenerator interface {
	Generate(ctx context.Context, taggedText string, docType domain.DocumentType) (domain.MetadataRecord, error)
}

// DeepAnalyzer is the optional post-generation validation LLM.
type DeepAnalyzer interface {
	Analyze(ctx context.Context, prompt string) (domain.MetadataRecord, error)
}
