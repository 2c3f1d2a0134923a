package scrape

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fairyhunter13/glass-catalog-updater/internal/obs"
)

// DefaultRate is used when a source sets no rate: one request every 500ms.
const DefaultRate = 2.0

const maxBody = 32 << 20

// Fetcher performs rate limited GETs on behalf of sources.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewFetcher returns a fetcher with a per-request timeout.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: timeout}, UserAgent: userAgent}
}

// NewLimiter builds a limiter for one source. Non-positive values fall back to
// DefaultRate and a burst of one.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Get waits on lim and fetches url. Failures come back as *SourceError.
func (f *Fetcher) Get(ctx context.Context, lim *rate.Limiter, mfr, url string) ([]byte, error) {
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, &SourceError{Manufacturer: mfr, URL: url, Err: err}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &SourceError{Manufacturer: mfr, URL: url, Err: err}
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	start := time.Now()
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &SourceError{Manufacturer: mfr, URL: url, Err: err}
	}
	defer resp.Body.Close()

	obs.Logger.Debug("source_fetch", "manufacturer", mfr, "url", url, "status", resp.StatusCode, "ms", time.Since(start).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &SourceError{Manufacturer: mfr, URL: url, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &SourceError{Manufacturer: mfr, URL: url, Err: err}
	}
	return b, nil
}
