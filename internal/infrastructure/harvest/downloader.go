package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
)

const (
	downloadTimeout  = 30 * time.Second
	rateLimitPause   = 10 * time.Second
	downloadAttempts = 3
)

// Downloader fetches repository PDFs one per second, honoring 429
// responses with a fixed pause. Files already in storage are skipped.
type Downloader struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	storage    ports.ObjectStorage
	logger     *slog.Logger
}

func NewDownloader(baseURL string, storage ports.ObjectStorage, logger *slog.Logger) *Downloader {
	return &Downloader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: downloadTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		storage:    storage,
		logger:     logger,
	}
}

// bitstreamURL rebuilds the repository download path from the A-B id.
func (d *Downloader) bitstreamURL(id string) string {
	return d.baseURL + "/bitstream/handle/" + strings.Replace(id, "-", "/", 1) + "/Documento_completo.pdf?sequence=1&isAllowed=y"
}

// Download fetches one document into storage under pdfs/<id>.pdf.
// Returns ErrNotFound-wrapped errors for non-200 responses so callers
// can log and skip.
func (d *Downloader) Download(ctx context.Context, id string) error {
	key := "pdfs/" + id + ".pdf"
	exists, err := d.storage.Exists(ctx, key)
	if err != nil {
		return domain.WrapError(domain.ErrUpstream, "check existing pdf", err)
	}
	if exists {
		return nil
	}

	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.bitstreamURL(id), nil)
		if err != nil {
			return domain.WrapError(domain.ErrUpstream, "create download request", err)
		}
		resp, err := d.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrUpstream, "download pdf", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			saveErr := d.storage.Save(ctx, key, resp.Body)
			resp.Body.Close()
			if saveErr != nil {
				return domain.WrapError(domain.ErrUpstream, "store pdf", saveErr)
			}
			return nil
		case http.StatusTooManyRequests:
			resp.Body.Close()
			d.logger.Warn("download rate limited", "id", id, "attempt", attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(rateLimitPause):
			}
		default:
			status := resp.StatusCode
			resp.Body.Close()
			return domain.WrapError(domain.ErrNotFound, "download pdf", fmt.Errorf("id %s: http %d", id, status))
		}
	}
	return domain.WrapError(domain.ErrRateLimited, "download pdf", fmt.Errorf("id %s: retries exhausted", id))
}

// DownloadAll fetches a batch, registering each outcome. Individual
// failures are logged and skipped; the batch never aborts.
func (d *Downloader) DownloadAll(ctx context.Context, ids []string, registry ports.DocumentRegistry) (downloaded int, err error) {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return downloaded, err
		}
		if err := d.Download(ctx, id); err != nil {
			d.logger.Warn("download skipped", "id", id, "error", err)
			if registry != nil {
				_ = registry.UpdateStatus(ctx, id, domain.StatusFailed, err.Error())
			}
			continue
		}
		downloaded++
		if registry != nil {
			_ = registry.UpdateStatus(ctx, id, domain.StatusHarvested, "")
		}
	}
	return downloaded, nil
}
