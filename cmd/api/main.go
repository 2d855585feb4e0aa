package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/nahuelPanigo/document-extraction-llm/internal/adapters/http"
	"github.com/nahuelPanigo/document-extraction-llm/internal/bootstrap"
	"github.com/nahuelPanigo/document-extraction-llm/internal/config"
	"github.com/nahuelPanigo/document-extraction-llm/internal/observability/logging"
)

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	app, err := bootstrap.NewAPI(ctx, cfg, "api", logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}

	router := httpadapter.NewRouter(app.Orchestrator, app.Extractor, app.Metrics, "api", cfg.APIToken)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		app.Logger.Info("api listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api shutdown error", "error", err)
	}
}
