package out

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"provhost/internal/modules/provider/domain"
)

const maxListingBytes = 4 << 20

// HTTPFetcher downloads artifacts and repository listings. Every request
// waits on a shared limiter.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  hclog.Logger
}

func NewHTTPFetcher(client *http.Client, requestsPerSecond float64, logger hclog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &HTTPFetcher{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("http"),
	}
}

func (f *HTTPFetcher) Download(ctx context.Context, url, dest string) error {
	resp, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("read body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("place download: %w", err)
	}
	f.logger.Debug("downloaded", "url", url, "dest", dest, "bytes", written)
	return nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, listingURL string) ([]domain.Metadata, error) {
	resp, err := f.get(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	var listing []domain.Metadata
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", listingURL, err)
	}
	return listing, nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %s", url, resp.Status)
	}
	return resp, nil
}
