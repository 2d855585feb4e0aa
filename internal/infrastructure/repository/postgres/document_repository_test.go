package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

func newRegistryWithMock(t *testing.T) (*DocumentRegistry, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRegistry{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, repo, filename, doc_type").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := registry.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansRecord(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "repo", "filename", "doc_type", "subject", "metadata",
		"status", "error_message", "harvested_at", "updated_at",
	}).AddRow(
		"10915-118183", "sedici", "10915-118183.pdf", "Libro", "Ciencias biológicas",
		[]byte(`{"title":"Genotoxicidad"}`), "harvested", "", now, now,
	)
	mock.ExpectQuery("SELECT id, repo, filename, doc_type").
		WithArgs("10915-118183").
		WillReturnRows(rows)

	doc, err := registry.GetByID(context.Background(), "10915-118183")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Type != domain.TypeLibro || doc.Subject != "Ciencias biológicas" {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Metadata.String("title") != "Genotoxicidad" {
		t.Fatalf("metadata = %v", doc.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUpsertsOnConflict(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("10915-1", "sedici", "10915-1.pdf", "Tesis", "Educación",
			sqlmock.AnyArg(), "harvested", "", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := registry.Create(context.Background(), &domain.Document{
		ID:          "10915-1",
		Repo:        "sedici",
		Filename:    "10915-1.pdf",
		Type:        domain.TypeTesis,
		Subject:     "Educación",
		Metadata:    domain.MetadataRecord{"title": "Una tesis"},
		Status:      domain.StatusHarvested,
		HarvestedAt: now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByStatusAppliesLimit(t *testing.T) {
	registry, mock, done := newRegistryWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "repo", "filename", "doc_type", "subject", "metadata",
		"status", "error_message", "harvested_at", "updated_at",
	}).AddRow("10915-1", "sedici", "10915-1.pdf", "Libro", "", []byte(`{}`), "harvested", "", now, now)

	mock.ExpectQuery("SELECT id, repo, filename, doc_type").
		WithArgs("harvested", 1).
		WillReturnRows(rows)

	docs, err := registry.ListByStatus(context.Background(), domain.StatusHarvested, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "10915-1" {
		t.Fatalf("docs = %v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
