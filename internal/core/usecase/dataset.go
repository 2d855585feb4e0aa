package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/harvest"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/textnorm"
)

// Storage layout under the repository data root.
const (
	pdfPrefix    = "pdfs/"
	textPrefix   = "texts/"
	taggedPrefix = "tagged/"
	jsonPrefix   = "jsons/"
)

// DefaultExtractionWorkers is the documented pool size for dataset-time
// text extraction.
const DefaultExtractionWorkers = 2

// HarvestOptions tunes corpus selection from the repository export.
type HarvestOptions struct {
	SubjectTarget       int
	SubjectMinAvailable int
	PerType             int
}

var DefaultHarvestOptions = HarvestOptions{
	SubjectTarget:       200,
	SubjectMinAvailable: 50,
	PerType:             600,
}

// HarvestResult reports what one harvest pass selected.
type HarvestResult struct {
	Selected       int
	SubjectMapping map[string]string
	TypeMapping    map[string]string
}

// BuildDatasetUseCase drives the training-corpus pipeline: project the
// repository CSV into balanced per-label manifests, fan document text
// extraction out over a small worker pool, and record per-document
// progress in the registry.
type BuildDatasetUseCase struct {
	registry  ports.DocumentRegistry
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	extractor ports.TextExtractor
	logger    *slog.Logger
}

func NewBuildDatasetUseCase(
	registry ports.DocumentRegistry,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	extractor ports.TextExtractor,
	logger *slog.Logger,
) *BuildDatasetUseCase {
	return &BuildDatasetUseCase{
		registry:  registry,
		storage:   storage,
		queue:     queue,
		extractor: extractor,
		logger:    logger,
	}
}

// Harvest projects the CSV export, balances it per subject and per
// type, registers every selected document and persists the ground-truth
// record plus both label mappings.
func (uc *BuildDatasetUseCase) Harvest(ctx context.Context, export io.Reader, tax *harvest.Taxonomy, opts HarvestOptions) (HarvestResult, error) {
	rows, err := harvest.ProjectCSV(export, tax)
	if err != nil {
		return HarvestResult{}, fmt.Errorf("project csv export: %w", err)
	}

	selected := harvest.BalancePerSubject(rows, opts.SubjectTarget, opts.SubjectMinAvailable)
	selected = harvest.BalancePerType(selected, opts.PerType)

	now := time.Now().UTC()
	for _, row := range selected {
		if err := ctx.Err(); err != nil {
			return HarvestResult{}, err
		}
		doc := &domain.Document{
			ID:          row.ID,
			Repo:        "sedici",
			Filename:    row.ID + ".pdf",
			Type:        domain.DocumentType(row.Type),
			Subject:     row.Subject,
			Metadata:    row.Record,
			Status:      domain.StatusHarvested,
			HarvestedAt: now,
			UpdatedAt:   now,
		}
		if err := uc.registry.Create(ctx, doc); err != nil {
			return HarvestResult{}, fmt.Errorf("register document %s: %w", row.ID, err)
		}
		if err := uc.saveJSON(ctx, jsonPrefix+row.ID+".json", row.Record); err != nil {
			return HarvestResult{}, err
		}
	}

	result := HarvestResult{
		Selected:       len(selected),
		SubjectMapping: harvest.LabelMappingBySubject(selected),
		TypeMapping:    harvest.LabelMappingByType(selected),
	}
	if err := uc.saveJSON(ctx, "subject_labels.json", result.SubjectMapping); err != nil {
		return HarvestResult{}, err
	}
	if err := uc.saveJSON(ctx, "type_labels.json", result.TypeMapping); err != nil {
		return HarvestResult{}, err
	}

	uc.logger.Info("harvest complete",
		"projected", len(rows),
		"selected", result.Selected,
		"subjects", len(result.SubjectMapping))
	return result, nil
}

// QueueExtractions publishes one extraction job per harvested document.
func (uc *BuildDatasetUseCase) QueueExtractions(ctx context.Context, limit int) (int, error) {
	docs, err := uc.registry.ListByStatus(ctx, domain.StatusHarvested, limit)
	if err != nil {
		return 0, fmt.Errorf("list harvested documents: %w", err)
	}
	published := 0
	for _, doc := range docs {
		if err := uc.queue.PublishExtractionJob(ctx, doc.ID); err != nil {
			return published, fmt.Errorf("publish extraction job %s: %w", doc.ID, err)
		}
		published++
	}
	return published, nil
}

// ProcessByID extracts both text views of one harvested document and
// advances its registry status. Failures mark the document failed and
// are returned so queue consumers can decide on redelivery.
func (uc *BuildDatasetUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.extractOne(ctx, documentID); err != nil {
		if markErr := uc.registry.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); markErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, markErr)
		}
		return err
	}
	if err := uc.registry.UpdateStatus(ctx, documentID, domain.StatusExtracted, ""); err != nil {
		return fmt.Errorf("set status=extracted: %w", err)
	}
	return nil
}

func (uc *BuildDatasetUseCase) extractOne(ctx context.Context, documentID string) error {
	doc, err := uc.registry.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	key := pdfPrefix + doc.ID + path.Ext(doc.Filename)
	raw, err := uc.readAll(ctx, key)
	if err != nil {
		return fmt.Errorf("open source %s: %w", key, err)
	}

	plain, err := uc.extractor.ExtractPlain(ctx, doc.Filename, bytes.NewReader(raw), true)
	if err != nil {
		return fmt.Errorf("extract plain text: %w", err)
	}
	if err := uc.storage.Save(ctx, textPrefix+doc.ID+".txt", strings.NewReader(plain)); err != nil {
		return fmt.Errorf("save plain text: %w", err)
	}

	tagged, err := uc.extractor.ExtractTagged(ctx, doc.Filename, bytes.NewReader(raw), domain.ExtractOptions{Normalize: true})
	if err != nil {
		return fmt.Errorf("extract tagged text: %w", err)
	}
	if err := uc.storage.Save(ctx, taggedPrefix+doc.ID+".txt", strings.NewReader(tagged)); err != nil {
		return fmt.Errorf("save tagged text: %w", err)
	}
	return nil
}

// ExtractPending runs the extraction pool over every harvested
// document. Per-document failures are recorded in the registry and
// skipped; the pass reports how many documents were extracted.
func (uc *BuildDatasetUseCase) ExtractPending(ctx context.Context, workers int) (int, error) {
	if workers <= 0 {
		workers = DefaultExtractionWorkers
	}
	docs, err := uc.registry.ListByStatus(ctx, domain.StatusHarvested, 0)
	if err != nil {
		return 0, fmt.Errorf("list harvested documents: %w", err)
	}

	var extracted atomic.Int64
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, doc := range docs {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := uc.ProcessByID(ctx, doc.ID); err != nil {
				uc.logger.Warn("extraction skipped", "id", doc.ID, "error", err)
				return nil
			}
			extracted.Add(1)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return int(extracted.Load()), err
	}
	return int(extracted.Load()), nil
}

// NormalizeTexts rewrites every extracted plain text through the repair
// pass. Idempotent; re-runs only change texts whose repairs changed.
func (uc *BuildDatasetUseCase) NormalizeTexts(ctx context.Context) (int, error) {
	docs, err := uc.registry.ListByStatus(ctx, domain.StatusExtracted, 0)
	if err != nil {
		return 0, fmt.Errorf("list extracted documents: %w", err)
	}
	normalized := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return normalized, err
		}
		key := textPrefix + doc.ID + ".txt"
		raw, err := uc.readAll(ctx, key)
		if err != nil {
			uc.logger.Warn("normalize skipped", "id", doc.ID, "error", err)
			continue
		}
		repaired := textnorm.Normalize(string(raw))
		if repaired == string(raw) {
			continue
		}
		if err := uc.storage.Save(ctx, key, strings.NewReader(repaired)); err != nil {
			return normalized, fmt.Errorf("save normalized text %s: %w", doc.ID, err)
		}
		normalized++
	}
	return normalized, nil
}

// MarkCleaned advances registry status for every document the cleaner
// produced output for.
func (uc *BuildDatasetUseCase) MarkCleaned(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := uc.registry.UpdateStatus(ctx, id, domain.StatusCleaned, ""); err != nil {
			return fmt.Errorf("mark cleaned %s: %w", id, err)
		}
	}
	return nil
}

func (uc *BuildDatasetUseCase) saveJSON(ctx context.Context, key string, value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := uc.storage.Save(ctx, key, strings.NewReader(string(encoded))); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (uc *BuildDatasetUseCase) readAll(ctx context.Context, key string) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
