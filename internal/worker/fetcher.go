package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jaennil/guide_helper/tilesource/pkg/logger"
	"github.com/jaennil/guide_helper/tilesource/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

var ErrUpstreamStatus = errors.New("upstream returned unexpected status")

// Response is a fetched tile body with its freshness headers.
type Response struct {
	Data         []byte
	CacheControl string
	Expires      string
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// HTTPFetcher fetches tiles over HTTP. Concurrent fetches of the same URL,
// e.g. overscaled children of one source tile, share a single request.
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	referer    string
	group      singleflight.Group
	logger     logger.Logger
}

func NewHTTPFetcher(timeout time.Duration, userAgent, referer string, l logger.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		referer:   referer,
		logger:    l,
	}
}

// Fetch returns the tile at url. Cancelling ctx stops waiting; a fetch shared
// with other callers keeps running for them.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	ch := f.group.DoChan(url, func() (any, error) {
		return f.fetch(context.WithoutCancel(ctx), url)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			f.logger.Debug("shared upstream fetch", "url", url)
		}
		return res.Val.(*Response), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (*Response, error) {
	f.logger.Debug("fetching from upstream", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Error("failed to create request", "error", err)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	metrics.WorkerFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		f.logger.Error("failed to fetch from upstream", "url", url, "error", err)
		return nil, fmt.Errorf("failed to fetch tile from upstream: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return &Response{
			CacheControl: resp.Header.Get("Cache-Control"),
			Expires:      resp.Header.Get("Expires"),
		}, nil
	default:
		f.logger.Warn("upstream returned non-200", "url", url, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	tileData, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Error("failed to read tile data", "url", url, "error", err)
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}

	f.logger.Debug("fetched tile from upstream", "url", url, "size", len(tileData))

	return &Response{
		Data:         tileData,
		CacheControl: resp.Header.Get("Cache-Control"),
		Expires:      resp.Header.Get("Expires"),
	}, nil
}
