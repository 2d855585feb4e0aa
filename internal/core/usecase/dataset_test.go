package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/harvest"
)

type memRegistry struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
}

func newMemRegistry() *memRegistry {
	return &memRegistry{docs: map[string]*domain.Document{}}
}

func (r *memRegistry) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *memRegistry) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *memRegistry) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.Status = status
	doc.Error = errMessage
	return nil
}

func (r *memRegistry) ListByStatus(_ context.Context, status domain.DocumentStatus, limit int) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Document
	for _, doc := range r.docs {
		if doc.Status == status {
			out = append(out, *doc)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (s *memStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = raw
	return nil
}

func (s *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.files[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *memStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[key]
	return ok, nil
}

type memQueue struct {
	mu        sync.Mutex
	published []string
}

func (q *memQueue) PublishExtractionJob(_ context.Context, documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, documentID)
	return nil
}

func (q *memQueue) SubscribeExtractionJobs(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

type datasetExtractor struct {
	failIDs map[string]bool
}

func (e *datasetExtractor) ExtractPlain(_ context.Context, filename string, data io.Reader, _ bool) (string, error) {
	if _, err := io.ReadAll(data); err != nil {
		return "", err
	}
	if e.failIDs[filename] {
		return "", domain.WrapError(domain.ErrExtraction, "parse pdf", errors.New("corrupt xref"))
	}
	return "texto plano de " + filename, nil
}

func (e *datasetExtractor) ExtractTagged(_ context.Context, filename string, data io.Reader, _ domain.ExtractOptions) (string, error) {
	if _, err := io.ReadAll(data); err != nil {
		return "", err
	}
	return "<h1>" + filename + "</h1>", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const exportCSV = `id,dc.title,dc.type,dc.language,dc.date.issued,dc.identifier.uri,sedici.subject.materias,sedici.creator.person
1,"Genotoxicidad","Libro","es","2021-03-01","http://sedici.unlp.edu.ar/handle/10915/118183","Biología","Larramendy, Marcelo Luis"
2,"Estelas en parques eólicos","Articulo","es","2020-05-01","http://sedici.unlp.edu.ar/handle/10915/128795","Astronomía","Lazzari, Florencia||Otero, Alejandro"
3,"Eucalyptus híbrido","Tesis","es","2023-01-01","http://sedici.unlp.edu.ar/handle/10915/118764","Ciencias Agrarias","Siccardi, Bárbara"
`

func TestHarvestRegistersAndPersists(t *testing.T) {
	registry := newMemRegistry()
	storage := newMemStorage()
	uc := NewBuildDatasetUseCase(registry, storage, &memQueue{}, &datasetExtractor{}, testLogger())

	tax, err := harvest.LoadTaxonomy("")
	if err != nil {
		t.Fatalf("taxonomy: %v", err)
	}
	result, err := uc.Harvest(context.Background(), strings.NewReader(exportCSV), tax, HarvestOptions{
		SubjectTarget:       10,
		SubjectMinAvailable: 1,
		PerType:             10,
	})
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if result.Selected != 3 {
		t.Fatalf("selected = %d", result.Selected)
	}

	doc, err := registry.GetByID(context.Background(), "10915-118183")
	if err != nil {
		t.Fatalf("registered document missing: %v", err)
	}
	if doc.Status != domain.StatusHarvested || doc.Type != domain.TypeLibro {
		t.Fatalf("doc = %+v", doc)
	}

	for _, key := range []string{"jsons/10915-118183.json", "subject_labels.json", "type_labels.json"} {
		if ok, _ := storage.Exists(context.Background(), key); !ok {
			t.Fatalf("missing artifact %s", key)
		}
	}
}

func TestQueueExtractionsPublishesHarvested(t *testing.T) {
	registry := newMemRegistry()
	queue := &memQueue{}
	uc := NewBuildDatasetUseCase(registry, newMemStorage(), queue, &datasetExtractor{}, testLogger())

	for _, id := range []string{"10915-1", "10915-2"} {
		registry.Create(context.Background(), &domain.Document{ID: id, Status: domain.StatusHarvested})
	}
	registry.Create(context.Background(), &domain.Document{ID: "10915-3", Status: domain.StatusExtracted})

	published, err := uc.QueueExtractions(context.Background(), 0)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if published != 2 || len(queue.published) != 2 {
		t.Fatalf("published = %d (%v)", published, queue.published)
	}
}

func TestProcessByIDWritesBothViews(t *testing.T) {
	registry := newMemRegistry()
	storage := newMemStorage()
	uc := NewBuildDatasetUseCase(registry, storage, &memQueue{}, &datasetExtractor{}, testLogger())

	registry.Create(context.Background(), &domain.Document{
		ID: "10915-7", Filename: "10915-7.pdf", Status: domain.StatusHarvested,
	})
	storage.Save(context.Background(), "pdfs/10915-7.pdf", strings.NewReader("%PDF-1.4"))

	if err := uc.ProcessByID(context.Background(), "10915-7"); err != nil {
		t.Fatalf("process: %v", err)
	}

	doc, _ := registry.GetByID(context.Background(), "10915-7")
	if doc.Status != domain.StatusExtracted {
		t.Fatalf("status = %s", doc.Status)
	}
	for _, key := range []string{"texts/10915-7.txt", "tagged/10915-7.txt"} {
		if ok, _ := storage.Exists(context.Background(), key); !ok {
			t.Fatalf("missing text view %s", key)
		}
	}
}

func TestProcessByIDMarksFailures(t *testing.T) {
	registry := newMemRegistry()
	storage := newMemStorage()
	uc := NewBuildDatasetUseCase(registry, storage, &memQueue{},
		&datasetExtractor{failIDs: map[string]bool{"10915-9.pdf": true}}, testLogger())

	registry.Create(context.Background(), &domain.Document{
		ID: "10915-9", Filename: "10915-9.pdf", Status: domain.StatusHarvested,
	})
	storage.Save(context.Background(), "pdfs/10915-9.pdf", strings.NewReader("%PDF-1.4"))

	err := uc.ProcessByID(context.Background(), "10915-9")
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	doc, _ := registry.GetByID(context.Background(), "10915-9")
	if doc.Status != domain.StatusFailed || doc.Error == "" {
		t.Fatalf("doc = %+v", doc)
	}
}

func TestExtractPendingSkipsFailures(t *testing.T) {
	registry := newMemRegistry()
	storage := newMemStorage()
	uc := NewBuildDatasetUseCase(registry, storage, &memQueue{},
		&datasetExtractor{failIDs: map[string]bool{"10915-2.pdf": true}}, testLogger())

	for _, id := range []string{"10915-1", "10915-2", "10915-3"} {
		registry.Create(context.Background(), &domain.Document{
			ID: id, Filename: id + ".pdf", Status: domain.StatusHarvested,
		})
		storage.Save(context.Background(), "pdfs/"+id+".pdf", strings.NewReader("%PDF-1.4"))
	}

	extracted, err := uc.ExtractPending(context.Background(), 2)
	if err != nil {
		t.Fatalf("extract pending: %v", err)
	}
	if extracted != 2 {
		t.Fatalf("extracted = %d", extracted)
	}
	failed, _ := registry.ListByStatus(context.Background(), domain.StatusFailed, 0)
	if len(failed) != 1 || failed[0].ID != "10915-2" {
		t.Fatalf("failed = %v", failed)
	}
}

func TestNormalizeTextsRepairs(t *testing.T) {
	registry := newMemRegistry()
	storage := newMemStorage()
	uc := NewBuildDatasetUseCase(registry, storage, &memQueue{}, &datasetExtractor{}, testLogger())

	registry.Create(context.Background(), &domain.Document{ID: "10915-4", Status: domain.StatusExtracted})
	storage.Save(context.Background(), "texts/10915-4.txt", strings.NewReader("Índice......... 5"))

	normalized, err := uc.NormalizeTexts(context.Background())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if normalized != 1 {
		t.Fatalf("normalized = %d", normalized)
	}
	reader, _ := storage.Open(context.Background(), "texts/10915-4.txt")
	raw, _ := io.ReadAll(reader)
	if strings.Contains(string(raw), "...") {
		t.Fatalf("dots not repaired: %q", raw)
	}
}
