// Package fetcher provides the best-effort page fetch used by the risk
// aggregator for content-derived signals.
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"github.com/elder-shield/guardian-engine/internal/config"
)

// ErrUnreachable indicates the page could not be fetched. The aggregator
// treats an unreachable page as moderately suspicious, not fatal.
var ErrUnreachable = errors.New("page unreachable")

// Page is the outcome of a single fetch.
type Page struct {
	StatusCode    int
	Body          string
	FinalURL      string
	RedirectCount int
}

// Fetcher issues bounded single-page fetches.
type Fetcher struct {
	config config.FetcherConfig
	logger *slog.Logger
}

// New creates a page fetcher with redirect and body-size bounds.
func New(cfg config.FetcherConfig, logger *slog.Logger) *Fetcher {
	return &Fetcher{config: cfg, logger: logger}
}

// Fetch retrieves the URL, following up to the configured redirect count and
// reading at most MaxBodyBytes of the response.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(ErrUnreachable, err.Error())
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	// The redirect counter is per call, so the client is too.
	redirects := 0
	client := &http.Client{
		Timeout: f.config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			redirects = len(via)
			if len(via) >= f.config.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreachable, "fetch %s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	if err != nil {
		// A partial body is still usable for content signals.
		f.logger.Debug("partial body read", "url", rawURL, "error", err)
	}

	page := &Page{
		StatusCode:    resp.StatusCode,
		Body:          string(body),
		FinalURL:      resp.Request.URL.String(),
		RedirectCount: redirects,
	}
	f.logger.Debug("page fetched",
		"url", rawURL,
		"status", page.StatusCode,
		"redirects", page.RedirectCount,
		"bytes", len(page.Body))
	return page, nil
}
