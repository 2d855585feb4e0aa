package nats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConsumeJobsFansOutAcrossPool(t *testing.T) {
	ids := []string{"ARG-0001", "ARG-0002", "ARG-0003", "ARG-0004"}
	jobs := make(chan string, len(ids))
	for _, id := range ids {
		jobs <- id
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]bool)
	handler := func(_ context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		if seen[id] {
			t.Errorf("document %s handled twice", id)
		}
		seen[id] = true
		if len(seen) == len(ids) {
			cancel()
		}
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			consumeJobs(ctx, jobs, handler, discardLogger())
		}()
	}
	wg.Wait()

	if len(seen) != len(ids) {
		t.Fatalf("handled %d documents, want %d", len(seen), len(ids))
	}
}

func TestConsumeJobsSurvivesHandlerError(t *testing.T) {
	jobs := make(chan string, 2)
	jobs <- "ARG-0001"
	jobs <- "ARG-0002"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handled []string
	handler := func(_ context.Context, id string) error {
		handled = append(handled, id)
		if id == "ARG-0001" {
			return errors.New("extraction failed")
		}
		cancel()
		return nil
	}

	consumeJobs(ctx, jobs, handler, discardLogger())

	if len(handled) != 2 {
		t.Fatalf("handled = %v, want the job after the failure to run", handled)
	}
}
