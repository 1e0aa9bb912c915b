package search

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const searchUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"

var (
	algoItemRe = regexp.MustCompile(`(?s)<li class="b_algo[^"]*".*?</li>`)
	itemLinkRe = regexp.MustCompile(`(?s)<h2[^>]*>\s*<a[^>]*href="([^"]+)"[^>]*>(.*?)</a>`)
	htmlTagRe  = regexp.MustCompile(`<[^>]*>`)
)

// Bing is the primary provider. It scrapes the public results page, so it
// needs no API key, but results arrive as HTML with link obfuscation.
type Bing struct {
	fetch  *fetcher
	base   string
	logger *zap.Logger
}

func NewBing(client *http.Client, cache *Cache, logger *zap.Logger) *Bing {
	return &Bing{
		fetch: &fetcher{
			client:  client,
			limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
			cache:   cache,
			logger:  logger,
		},
		base:   "https://www.bing.com",
		logger: logger,
	}
}

func (b *Bing) Name() string { return "bing" }

// Healthcheck fetches the search front page without a query.
func (b *Bing) Healthcheck(ctx context.Context) error {
	_, err := b.fetch.fetchOnce(ctx, b.base+"/", b.headers())
	return err
}

// Search runs the site-restricted query with exact-phrase quoting and, only
// when that yields nothing, retries once with unquoted terms.
func (b *Bing) Search(ctx context.Context, name, company string, limit int) ([]Result, error) {
	results, err := b.search(ctx, name, company, true)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		b.logger.Info("no results for quoted query, retrying unquoted",
			zap.String("name", name),
			zap.String("company", company),
		)
		results, err = b.search(ctx, name, company, false)
		if err != nil {
			return nil, err
		}
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (b *Bing) search(ctx context.Context, name, company string, quoted bool) ([]Result, error) {
	terms := fmt.Sprintf("site:%s %s %s", strings.TrimSuffix(profilePathFragment, "/"), name, company)
	if quoted {
		terms = fmt.Sprintf("site:%s %q %q", strings.TrimSuffix(profilePathFragment, "/"), name, company)
	}

	q := url.Values{
		"q":    {terms},
		"qs":   {"n"},
		"form": {"QBRE"},
		"sp":   {"-1"},
		"ghc":  {"1"},
		"lq":   {"0"},
		"ajf":  {"100"},
	}

	body, err := b.fetch.get(ctx, b.base+"/search?"+q.Encode(), b.headers())
	if err != nil {
		return nil, err
	}

	results := parseBingResults(string(body))
	b.logger.Debug("bing results parsed",
		zap.Bool("quoted", quoted),
		zap.Int("count", len(results)),
	)
	return results, nil
}

func (b *Bing) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", searchUserAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	return h
}

func parseBingResults(page string) []Result {
	var out []Result
	for _, item := range algoItemRe.FindAllString(page, -1) {
		m := itemLinkRe.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		link := html.UnescapeString(m[1])
		title := strings.TrimSpace(html.UnescapeString(htmlTagRe.ReplaceAllString(m[2], "")))
		out = append(out, Result{URL: unwrapBingRedirect(link), Title: title})
	}
	return out
}

// unwrapBingRedirect resolves the /ck/ link obfuscation to the real
// destination. The wrapped URL hides in one of several query parameters,
// URL-encoded and usually base64-encoded on top with an "a1" prefix and
// stripped padding. Anything that fails to decode falls back to the raw
// input so a candidate is never lost to an unrecognized encoding.
func unwrapBingRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(u.Host, "bing.com") {
		return raw
	}
	query := u.Query()
	if !strings.Contains(u.Path, "/ck/") && !query.Has("u") {
		return raw
	}

	for _, param := range []string{"u", "url", "r", "redirect"} {
		encoded := query.Get(param)
		if encoded == "" {
			continue
		}
		if strings.HasPrefix(encoded, "a1") {
			encoded = encoded[2:] + "=="
		}
		if strings.HasPrefix(encoded, "aHR0c") || len(encoded) > 50 {
			if pad := len(encoded) % 4; pad != 0 {
				encoded += strings.Repeat("=", 4-pad)
			}
			if decoded, decErr := base64.StdEncoding.DecodeString(encoded); decErr == nil {
				return string(decoded)
			}
			if decoded, decErr := base64.URLEncoding.DecodeString(encoded); decErr == nil {
				return string(decoded)
			}
		}
		return encoded
	}
	return raw
}
