package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const braveMaxCount = 20

// Brave is the secondary provider, a paid JSON API with a monthly quota.
// The Finder only reaches it when the primary provider comes up empty.
type Brave struct {
	fetch    *fetcher
	endpoint string
	apiKey   string
	logger   *zap.Logger
}

func NewBrave(client *http.Client, apiKey string, cache *Cache, logger *zap.Logger) *Brave {
	return &Brave{
		fetch: &fetcher{
			client:  client,
			limiter: rate.NewLimiter(rate.Every(time.Second), 1),
			cache:   cache,
			logger:  logger,
		},
		endpoint: "https://api.search.brave.com/res/v1/web/search",
		apiKey:   apiKey,
		logger:   logger,
	}
}

func (b *Brave) Name() string { return "brave" }

// Healthcheck only verifies configuration. A live probe would spend quota,
// which is exactly what this provider is meant to conserve.
func (b *Brave) Healthcheck(_ context.Context) error {
	if b.apiKey == "" {
		return errors.New("brave api key not configured")
	}
	return nil
}

func (b *Brave) Search(ctx context.Context, name, company string, limit int) ([]Result, error) {
	if b.apiKey == "" {
		return nil, errors.New("brave api key not configured")
	}

	count := limit
	if count <= 0 || count > braveMaxCount {
		count = braveMaxCount
	}

	q := url.Values{
		"q":             {fmt.Sprintf("site:%s %q %q", "linkedin.com/in", name, company)},
		"count":         {strconv.Itoa(count)},
		"result_filter": {"web"},
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("X-Subscription-Token", b.apiKey)

	body, err := b.fetch.get(ctx, b.endpoint+"?"+q.Encode(), h)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding brave response: %w", err)
	}
	var payload braveResponse
	if err := mapstructure.Decode(raw, &payload); err != nil {
		return nil, fmt.Errorf("mapping brave response: %w", err)
	}

	results := make([]Result, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		results = append(results, Result{URL: r.URL, Title: r.Title})
	}

	b.logger.Debug("brave results parsed", zap.Int("count", len(results)))
	return results, nil
}

type braveResponse struct {
	Web struct {
		Results []braveResult `mapstructure:"results"`
	} `mapstructure:"web"`
}

type braveResult struct {
	Title string `mapstructure:"title"`
	URL   string `mapstructure:"url"`
}
