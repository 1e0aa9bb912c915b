package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseSize = 5 << 20

// HTTPError is a non-200 response from a provider. Status codes drive
// retry classification: 429 and 5xx are transient, everything else is not.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// fetcher issues rate-limited, retried GET requests with optional response
// caching. Each provider owns one, so limits apply per provider.
type fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cache   *Cache
	logger  *zap.Logger
}

func (f *fetcher) get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if f.cache == nil {
		return f.fetch(ctx, rawURL, header)
	}

	var fetched bool
	data, err := f.cache.GetSet(ctx, cacheKey(rawURL), func(ctx context.Context) ([]byte, error) {
		fetched = true
		return f.fetch(ctx, rawURL, header)
	}, f.cache.TTL())
	if err != nil {
		return nil, err
	}
	if !fetched {
		f.logger.Debug("cache hit", zap.String("url", rawURL))
	}
	return data, nil
}

func (f *fetcher) fetch(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) {
			return f.fetchOnce(ctx, rawURL, header)
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(15*time.Second),
		retry.MaxJitter(250*time.Millisecond),
		retry.RetryIf(retryableFetchErr),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Warn("retrying fetch",
				zap.Uint("attempt", n+1),
				zap.String("url", rawURL),
				zap.Error(err),
			)
		}),
	)
}

func (f *fetcher) fetchOnce(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}

// retryableFetchErr treats rate limiting, server errors, and transport
// failures as transient. Client errors and cancellation are final.
func retryableFetchErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return true
}
