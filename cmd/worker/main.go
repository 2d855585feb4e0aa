package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nahuelPanigo/document-extraction-llm/internal/bootstrap"
	"github.com/nahuelPanigo/document-extraction-llm/internal/config"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: app.Metrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("worker subscribed", "subject", cfg.NATSSubject, "workers", cfg.Workers)
	err = app.Queue.SubscribeExtractionJobs(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()

		if doc, err := app.Registry.GetByID(processCtx, documentID); err == nil {
			app.Metrics.ObserveQueueLag("worker", time.Since(doc.HarvestedAt))
		}

		app.Metrics.StartDocument()
		start := time.Now()
		processErr := app.Dataset.ProcessByID(processCtx, documentID)
		app.Metrics.FinishDocument("worker", time.Since(start), processErr)
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
