package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/nahuelPanigo/document-extraction-llm/internal/adapters/mcp"
	"github.com/nahuelPanigo/document-extraction-llm/internal/bootstrap"
	"github.com/nahuelPanigo/document-extraction-llm/internal/config"
	"github.com/nahuelPanigo/document-extraction-llm/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	app, err := bootstrap.NewAPI(ctx, cfg, "mcp", logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	server := mcpadapter.NewServer(app.Orchestrator, app.Extractor, version)
	if err := server.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
