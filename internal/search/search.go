// Package search discovers profile-URL candidates for a person through an
// ordered list of web search providers. Providers return raw (url, title)
// pairs; the Finder filters them down to validated, ranked candidates.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/scomax/contact-validator/internal/matching"
)

const (
	profilePathFragment = "linkedin.com/in/"
	defaultMaxResults   = 3

	// unknownNameSimilarity is assigned when a profile URL survives
	// filtering but carries no title and no usable slug to score.
	unknownNameSimilarity = 0.5
)

// Result is one raw search hit as returned by a provider, after any
// provider-specific redirect unwrapping.
type Result struct {
	URL   string
	Title string
}

// Provider is a single search backend. Implementations resolve their own
// redirect obfuscation before returning results.
type Provider interface {
	Name() string
	Search(ctx context.Context, name, company string, limit int) ([]Result, error)
	Healthcheck(ctx context.Context) error
}

// Candidate is a validated profile URL with a 0-1 name similarity.
type Candidate struct {
	URL        string
	Title      string
	Similarity float64
}

// Request describes one candidate lookup.
type Request struct {
	Name          string
	Company       string
	MaxCandidates int
	// Threshold is the 0-1 floor a result title must score against the
	// person name to survive validation.
	Threshold float64
}

// ErrNoCandidates reports that every provider was tried and none produced a
// usable candidate.
var ErrNoCandidates = errors.New("no usable candidates from any provider")

// Finder runs candidate lookups across providers in strict order. The
// secondary provider exists to conserve quota, so it is only consulted when
// an earlier provider comes up empty, never in parallel.
type Finder struct {
	providers []Provider
	logger    *zap.Logger
}

func NewFinder(logger *zap.Logger, providers ...Provider) *Finder {
	return &Finder{providers: providers, logger: logger}
}

// Providers returns the number of configured providers.
func (f *Finder) Providers() int {
	return len(f.providers)
}

// ProviderName returns the name of provider i.
func (f *Finder) ProviderName(i int) string {
	return f.providers[i].Name()
}

// Healthcheck probes every provider.
func (f *Finder) Healthcheck(ctx context.Context) error {
	for _, p := range f.providers {
		if err := p.Healthcheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Find tries each provider in order and returns the first non-empty
// candidate set.
func (f *Finder) Find(ctx context.Context, req Request) ([]Candidate, error) {
	for i := range f.providers {
		candidates, err := f.FindFrom(ctx, i, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("provider search failed",
				zap.String("provider", f.providers[i].Name()),
				zap.Error(err),
			)
			continue
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
		f.logger.Info("provider returned no candidates",
			zap.String("provider", f.providers[i].Name()),
			zap.String("name", req.Name),
		)
	}
	return nil, ErrNoCandidates
}

// FindFrom runs one provider and validates its raw results: profile-path
// filtering, title scoring with URL-slug fallback, deduplication, and a cap
// at MaxCandidates. Candidates come back ranked by similarity.
func (f *Finder) FindFrom(ctx context.Context, provider int, req Request) ([]Candidate, error) {
	if provider < 0 || provider >= len(f.providers) {
		return nil, fmt.Errorf("no such provider index %d", provider)
	}
	p := f.providers[provider]

	company := matching.NormalizeCompany(req.Company)
	if company == "" {
		company = strings.TrimSpace(req.Company)
	}

	limit := req.MaxCandidates
	if limit <= 0 {
		limit = defaultMaxResults
	}

	results, err := p.Search(ctx, req.Name, company, rawResultLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", p.Name(), err)
	}

	seen := make(map[string]struct{}, len(results))
	var out []Candidate
	for _, r := range results {
		if len(out) >= limit {
			break
		}
		if !strings.Contains(r.URL, profilePathFragment) {
			continue
		}
		key := canonicalURL(r.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		candidate, ok := f.validate(req.Name, r, req.Threshold)
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, candidate)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })

	f.logger.Info("candidate search finished",
		zap.String("provider", p.Name()),
		zap.String("name", req.Name),
		zap.Int("raw", len(results)),
		zap.Int("validated", len(out)),
	)
	return out, nil
}

// validate scores a raw result against the person name. A present title is
// scored directly; otherwise the URL slug stands in for the name; a URL
// with no usable slug is kept at a fixed low confidence rather than dropped.
func (f *Finder) validate(name string, r Result, threshold float64) (Candidate, bool) {
	if title := cleanTitle(r.Title); title != "" {
		scored := title
		if head, _, found := strings.Cut(scored, " - "); found {
			scored = strings.TrimSpace(head)
		}
		res := matching.Score(name, scored, matching.KindPerson, threshold)
		if !res.IsMatch {
			f.logger.Debug("candidate title rejected",
				zap.String("name", name),
				zap.String("title", scored),
				zap.Float64("score", res.Score),
			)
			return Candidate{}, false
		}
		return Candidate{URL: r.URL, Title: title, Similarity: res.Score / 100}, true
	}

	slug := profileSlug(r.URL)
	if slug == "" {
		return Candidate{URL: r.URL, Title: "Unknown", Similarity: unknownNameSimilarity}, true
	}

	display := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	res := matching.Score(name, display, matching.KindPerson, threshold)
	if !res.IsMatch {
		f.logger.Debug("candidate slug rejected",
			zap.String("name", name),
			zap.String("slug", display),
			zap.Float64("score", res.Score),
		)
		return Candidate{}, false
	}
	return Candidate{URL: r.URL, Title: display, Similarity: res.Score / 100}, true
}

// rawResultLimit asks providers for more hits than we need, since
// validation discards an unpredictable share of them.
func rawResultLimit(maxCandidates int) int {
	limit := maxCandidates * 4
	if limit < 10 {
		limit = 10
	}
	if limit > 20 {
		limit = 20
	}
	return limit
}

var titleSuffixes = []string{
	" | Professional Profile",
	" | LinkedIn",
	" - Professional Profile",
	" - LinkedIn",
	" | Business Profile",
	" - Business Profile",
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	for _, suffix := range titleSuffixes {
		if strings.HasSuffix(title, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(title, suffix))
		}
	}
	return title
}

// profileSlug extracts the path segment after /in/, or "" when absent.
func profileSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "in" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return ""
}

// canonicalURL is the deduplication key: host lowercased, query and
// fragment dropped, trailing slash trimmed.
func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/")
}
