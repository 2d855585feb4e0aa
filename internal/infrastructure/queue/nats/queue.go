// Package nats carries extraction job ids between the harvester and
// the worker fleet. Payloads are bare document ids; everything heavy
// lives in the registry and the object store.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nahuelPanigo/document-extraction-llm/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const drainFlushTimeout = 5 * time.Second

type Queue struct {
	conn     *nats.Conn
	subject  string
	workers  int
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool

	// Workers bounds how many extraction jobs one subscriber processes
	// concurrently. Defaults to serial consumption.
	Workers int

	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	workers := options.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("document-extraction-llm"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		workers:  workers,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishExtractionJob(ctx context.Context, documentID string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, []byte(documentID)); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeExtractionJobs consumes the subject until ctx is cancelled,
// fanning messages out to the configured worker pool. Jobs buffered at
// shutdown are dropped; delivery is at-most-once anyway and the
// harvester re-queues unfinished documents.
func (q *Queue) SubscribeExtractionJobs(ctx context.Context, handler func(context.Context, string) error) error {
	jobs := make(chan string, q.workers)

	var wg sync.WaitGroup
	wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go func() {
			defer wg.Done()
			consumeJobs(ctx, jobs, handler, q.logger)
		}()
	}

	sub, err := q.conn.QueueSubscribe(q.subject, "workers", func(msg *nats.Msg) {
		select {
		case jobs <- string(msg.Data):
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		wg.Wait()
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(drainFlushTimeout); err != nil {
		wg.Wait()
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	wg.Wait()
	return nil
}

func consumeJobs(ctx context.Context, jobs <-chan string, handler func(context.Context, string) error, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case documentID := <-jobs:
			if err := handler(ctx, documentID); err != nil {
				logger.Warn("extraction job failed", "document_id", documentID, "error", err)
			}
		}
	}
}
