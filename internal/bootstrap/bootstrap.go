// Package bootstrap wires the infrastructure behind each binary.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/nahuelPanigo/document-extraction-llm/internal/config"
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/usecase"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/classify"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/extractor/local"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/extractor/ocr"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/extractor/remote"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/generator"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/llm/embeddings"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/queue/nats"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/repository/postgres"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/resilience"
	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/storage/localfs"
	"github.com/nahuelPanigo/document-extraction-llm/internal/observability/logging"
	"github.com/nahuelPanigo/document-extraction-llm/internal/observability/metrics"
)

// ModelDir is the on-disk layout for trained classifier artifacts:
// one directory per task/strategy pair.
func ModelDir(modelsDir, task, strategy string) string {
	return filepath.Join(modelsDir, task, strategy)
}

// APIApp carries the inference-side wiring for the HTTP and MCP
// front ends.
type APIApp struct {
	Config config.API
	Logger *slog.Logger

	Orchestrator ports.MetadataExtractor
	Extractor    ports.TextExtractor
	Metrics      *metrics.HTTPServerMetrics
}

func NewAPI(_ context.Context, cfg config.API, service string, logger *slog.Logger) (*APIApp, error) {
	slog.SetDefault(logger)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	var extractor ports.TextExtractor
	if cfg.ExtractorURL != "" {
		extractor = remote.New(cfg.ExtractorURL, cfg.ExtractorToken, executor)
	} else {
		engine := ocr.NewEngine(ocr.ExecRunner{}, cfg.TesseractBin, "", logger)
		extractor = local.NewExtractor(engine)
	}

	embedder := embeddings.New(cfg.EmbeddingsURL, "", executor)
	registry := classify.NewDefaultRegistry(embedder, logger)

	subjectClassifier, err := classify.LoadClassifier(registry, cfg.SubjectStrategy, ModelDir(cfg.ModelsDir, "subject", cfg.SubjectStrategy))
	if err != nil {
		return nil, fmt.Errorf("load subject classifier: %w", err)
	}
	typeClassifier, err := classify.LoadClassifier(registry, cfg.TypeStrategy, ModelDir(cfg.ModelsDir, "type", cfg.TypeStrategy))
	if err != nil {
		return nil, fmt.Errorf("load type classifier: %w", err)
	}

	serverMetrics := metrics.NewHTTPServerMetrics(service)

	generatorClient := generator.NewClient(cfg.GeneratorURL, cfg.GeneratorToken, executor)

	// The validation pass runs against a dedicated endpoint when one is
	// configured; otherwise it reuses the generation endpoint.
	var analyzer ports.DeepAnalyzer = generatorClient
	if cfg.DeepAnalyzeURL != "" {
		analyzer = generator.NewClient(cfg.DeepAnalyzeURL, cfg.DeepAnalyzeToken, executor)
	}

	subject := &meteredClassifier{next: subjectClassifier, metrics: serverMetrics, service: service, task: "subject"}
	docType := &meteredClassifier{next: typeClassifier, metrics: serverMetrics, service: service, task: "type"}

	return &APIApp{
		Config: cfg,
		Logger: logger,

		Orchestrator: usecase.NewExtractMetadataUseCase(extractor, subject, docType, generatorClient, analyzer),
		Extractor:    extractor,
		Metrics:      serverMetrics,
	}, nil
}

// meteredClassifier counts predicted labels per task.
type meteredClassifier struct {
	next    ports.LabelClassifier
	metrics *metrics.HTTPServerMetrics
	service string
	task    string
}

func (c *meteredClassifier) Predict(ctx context.Context, texts []string) ([]string, error) {
	labels, err := c.next.Predict(ctx, texts)
	if err != nil {
		return nil, err
	}
	for _, label := range labels {
		c.metrics.RecordPrediction(c.service, c.task, label)
	}
	return labels, nil
}

// WorkerApp carries the dataset-side wiring for the extraction
// consumer.
type WorkerApp struct {
	Config config.Worker
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Registry ports.DocumentRegistry
	Dataset  *usecase.BuildDatasetUseCase
	Metrics  *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Worker) (*WorkerApp, error) {
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := postgres.NewDocumentRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.DataDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	engine := ocr.NewEngine(ocr.ExecRunner{}, cfg.TesseractBin, "", logger)
	extractor := local.NewExtractor(engine)

	return &WorkerApp{
		Config: cfg,
		Logger: logger,

		Queue:    queue,
		Registry: registry,
		Dataset:  usecase.NewBuildDatasetUseCase(registry, storage, queue, extractor, logger),
		Metrics:  metrics.NewWorkerMetrics("worker"),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *WorkerApp) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// DatasetApp carries the wiring shared by the datasetctl commands.
// Commands layer their own pieces (downloader, cleaner sessions,
// training strategies) on top.
type DatasetApp struct {
	Config config.DatasetTool
	Logger *slog.Logger

	Registry ports.DocumentRegistry
	Storage  ports.ObjectStorage
	Queue    ports.MessageQueue
	Embedder ports.Embedder
	Dataset  *usecase.BuildDatasetUseCase

	Strategies *classify.Registry

	closeFn func()
}

func NewDataset(ctx context.Context, cfg config.DatasetTool) (*DatasetApp, error) {
	logger := logging.NewJSONLogger("datasetctl", cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := postgres.NewDocumentRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.DataDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	embedder := embeddings.New(cfg.EmbeddingsURL, "", executor)

	engine := ocr.NewEngine(ocr.ExecRunner{}, cfg.TesseractBin, "", logger)
	extractor := local.NewExtractor(engine)

	return &DatasetApp{
		Config: cfg,
		Logger: logger,

		Registry: registry,
		Storage:  storage,
		Queue:    queue,
		Embedder: embedder,
		Dataset:  usecase.NewBuildDatasetUseCase(registry, storage, queue, extractor, logger),

		Strategies: classify.NewDefaultRegistry(embedder, logger),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *DatasetApp) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
