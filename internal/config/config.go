package config

import (
	"fmt"
	"os"
	"strconv"
)

// API configures the orchestrator HTTP façade.
type API struct {
	HTTPAddr string
	LogLevel string
	APIToken string

	ExtractorURL   string
	ExtractorToken string

	GeneratorURL   string
	GeneratorToken string

	DeepAnalyzeURL   string
	DeepAnalyzeToken string

	EmbeddingsURL string

	ModelsDir       string
	TesseractBin    string
	SubjectStrategy string
	TypeStrategy    string
}

// Worker configures the dataset-time extraction consumer.
type Worker struct {
	LogLevel    string
	MetricsAddr string

	PostgresDSN string
	NATSURL     string
	NATSSubject string
	DataDir     string

	TesseractBin string
	Workers      int
}

// DatasetTool configures the datasetctl CLI.
type DatasetTool struct {
	LogLevel string

	PostgresDSN string
	NATSURL     string
	NATSSubject string
	DataDir     string
	ModelsDir   string

	RepositoryURL string
	TaxonomyPath  string
	EmbeddingsURL string
	TesseractBin  string

	GoogleAPIKey string
	OpenAIAPIKey string

	GenAIReqPerMin  int
	GenAIReqPerDay  int
	GenAITokPerMin  int
	OpenAIReqPerMin int
	OpenAIReqPerDay int
	OpenAITokPerMin int
}

func LoadAPI() (API, error) {
	generatorURL, err := mustEnv("LLM_GENERATOR_URL")
	if err != nil {
		return API{}, err
	}
	return API{
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogLevel: envOr("LOG_LEVEL", "info"),
		APIToken: os.Getenv("API_TOKEN"),

		ExtractorURL:   os.Getenv("EXTRACTOR_URL"),
		ExtractorToken: os.Getenv("EXTRACTOR_TOKEN"),

		GeneratorURL:   generatorURL,
		GeneratorToken: os.Getenv("LLM_GENERATOR_TOKEN"),

		DeepAnalyzeURL:   os.Getenv("LLM_DEEPANALYZE_URL"),
		DeepAnalyzeToken: os.Getenv("LLM_DEEPANALYZE_TOKEN"),

		EmbeddingsURL: envOr("EMBEDDINGS_URL", "http://localhost:8501"),

		ModelsDir:       envOr("MODELS_DIR", "./models"),
		TesseractBin:    envOr("OCR_TESSERACT_BIN", "tesseract"),
		SubjectStrategy: envOr("SUBJECT_STRATEGY", "svm"),
		TypeStrategy:    envOr("TYPE_STRATEGY", "svm"),
	}, nil
}

func LoadWorker() (Worker, error) {
	dsn, err := mustEnv("POSTGRES_DSN")
	if err != nil {
		return Worker{}, err
	}
	return Worker{
		LogLevel:    envOr("LOG_LEVEL", "info"),
		MetricsAddr: envOr("WORKER_METRICS_ADDR", ":9090"),

		PostgresDSN: dsn,
		NATSURL:     envOr("NATS_URL", "nats://localhost:4222"),
		NATSSubject: envOr("NATS_SUBJECT", "documents.extract"),
		DataDir:     envOr("DATA_DIR", "./data/sedici"),

		TesseractBin: envOr("OCR_TESSERACT_BIN", "tesseract"),
		Workers:      envOrInt("EXTRACTION_WORKERS", 2),
	}, nil
}

func LoadDatasetTool() (DatasetTool, error) {
	dsn, err := mustEnv("POSTGRES_DSN")
	if err != nil {
		return DatasetTool{}, err
	}
	return DatasetTool{
		LogLevel: envOr("LOG_LEVEL", "info"),

		PostgresDSN: dsn,
		NATSURL:     envOr("NATS_URL", "nats://localhost:4222"),
		NATSSubject: envOr("NATS_SUBJECT", "documents.extract"),
		DataDir:     envOr("DATA_DIR", "./data/sedici"),
		ModelsDir:   envOr("MODELS_DIR", "./models"),

		RepositoryURL: envOr("REPOSITORY_URL", "http://sedici.unlp.edu.ar"),
		TaxonomyPath:  os.Getenv("TAXONOMY_PATH"),
		EmbeddingsURL: envOr("EMBEDDINGS_URL", "http://localhost:8501"),
		TesseractBin:  envOr("OCR_TESSERACT_BIN", "tesseract"),

		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),

		// Defaults mirror the free-tier quotas the providers enforce;
		// raise them via env only on paid plans.
		GenAIReqPerMin:  envOrInt("GENAI_REQ_PER_MIN", 15),
		GenAIReqPerDay:  envOrInt("GENAI_REQ_PER_DAY", 1000),
		GenAITokPerMin:  envOrInt("GENAI_TOK_PER_MIN", 250000),
		OpenAIReqPerMin: envOrInt("OPENAI_REQ_PER_MIN", 60),
		OpenAIReqPerDay: envOrInt("OPENAI_REQ_PER_DAY", 10000),
		OpenAITokPerMin: envOrInt("OPENAI_TOK_PER_MIN", 200000),
	}, nil
}

func mustEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("missing required env %s", key)
	}
	return v, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
