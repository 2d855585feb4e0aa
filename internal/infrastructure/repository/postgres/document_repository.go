package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

// DocumentRegistry persists per-document pipeline state in Postgres.
type DocumentRegistry struct {
	db *sql.DB
}

func NewDocumentRegistry(db *sql.DB) *DocumentRegistry {
	return &DocumentRegistry{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRegistry) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker/datasetctl startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	repo TEXT NOT NULL,
	filename TEXT NOT NULL,
	doc_type TEXT,
	subject TEXT,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	status TEXT NOT NULL,
	error_message TEXT,
	harvested_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_harvested_at ON documents(harvested_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Create upserts one harvested document; re-harvesting refreshes the
// ground-truth record without losing pipeline progress rows.
func (r *DocumentRegistry) Create(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, repo, filename, doc_type, subject, metadata, status, error_message, harvested_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE
SET repo = EXCLUDED.repo, filename = EXCLUDED.filename, doc_type = EXCLUDED.doc_type,
	subject = EXCLUDED.subject, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at
`,
		doc.ID, doc.Repo, doc.Filename, string(doc.Type), doc.Subject, metadataJSON,
		string(doc.Status), doc.Error, doc.HarvestedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRegistry) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, repo, filename, doc_type, subject, metadata, status, error_message, harvested_at, updated_at
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRegistry) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *DocumentRegistry) ListByStatus(ctx context.Context, status domain.DocumentStatus, limit int) ([]domain.Document, error) {
	query := `
SELECT id, repo, filename, doc_type, subject, metadata, status, error_message, harvested_at, updated_at
FROM documents
WHERE status = $1
ORDER BY harvested_at DESC, id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func scanDocument(scan func(...any) error) (*domain.Document, error) {
	var doc domain.Document
	var metadataRaw []byte
	var docType, subject, errMessage sql.NullString
	var status string

	err := scan(
		&doc.ID, &doc.Repo, &doc.Filename, &docType, &subject,
		&metadataRaw, &status, &errMessage, &doc.HarvestedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	doc.Type = domain.DocumentType(docType.String)
	doc.Subject = subject.String
	doc.Error = errMessage.String
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
