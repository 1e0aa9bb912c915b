package validation

import (
	"context"

	"go.uber.org/zap"

	"github.com/scomax/contact-validator/internal/linkedin"
	"github.com/scomax/contact-validator/internal/search"
)

// Searcher finds validated profile candidates from a single provider at a
// time, so the loop controls the fallback order.
type Searcher interface {
	Providers() int
	ProviderName(i int) string
	FindFrom(ctx context.Context, provider int, req search.Request) ([]search.Candidate, error)
}

// PositionExtractor pulls employment entries from one profile page.
type PositionExtractor interface {
	Positions(ctx context.Context, profileURL string) ([]linkedin.Position, error)
}

// Verifier gives a second opinion on a qualifying but not high-confidence
// match. A false result rejects the candidate; errors fail open.
type Verifier interface {
	Verify(ctx context.Context, targetCompany string, positions []linkedin.Position, best PositionMatch) (bool, error)
}

// Config carries the resolution thresholds. Score thresholds are on the
// 0-100 scale, SearchThreshold on 0-1.
type Config struct {
	MaxCandidates      int
	SearchThreshold    float64
	MatchThreshold     float64
	EarlyExitThreshold float64
}

// Outcome is the result of one full resolution attempt. A nil Report with
// Candidates == 0 means no profile was found anywhere; a nil Report with
// Candidates > 0 means profiles were checked but none showed evidence.
type Outcome struct {
	Report     *Report
	ProfileURL string
	Candidates int
}

// Loop resolves one person/company pair: search candidates, extract each
// candidate's positions, analyze, keep a running best, and exit early on a
// high-confidence match. Every profile check costs a full page fetch, so
// the early exit is the dominant cost saver.
type Loop struct {
	searcher  Searcher
	extractor PositionExtractor
	verifier  Verifier
	cfg       Config
	logger    *zap.Logger
}

// NewLoop creates a resolution loop. verifier may be nil.
func NewLoop(searcher Searcher, extractor PositionExtractor, verifier Verifier, cfg Config, logger *zap.Logger) *Loop {
	return &Loop{
		searcher:  searcher,
		extractor: extractor,
		verifier:  verifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// Resolve tries each provider in order and stops at the first provider
// whose candidates produce a qualifying match. Extraction failures skip to
// the next candidate; a provider with no matching candidates at all falls
// through to the next provider.
func (l *Loop) Resolve(ctx context.Context, name, company string) (Outcome, error) {
	var out Outcome

	req := search.Request{
		Name:          name,
		Company:       company,
		MaxCandidates: l.cfg.MaxCandidates,
		Threshold:     l.cfg.SearchThreshold,
	}

	for p := 0; p < l.searcher.Providers(); p++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		candidates, err := l.searcher.FindFrom(ctx, p, req)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			l.logger.Warn("candidate search failed",
				zap.String("provider", l.searcher.ProviderName(p)),
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		out.Candidates += len(candidates)
		if len(candidates) == 0 {
			continue
		}

		best, bestURL := l.checkCandidates(ctx, company, candidates)
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if best != nil {
			out.Report = best
			out.ProfileURL = bestURL
			return out, nil
		}
		l.logger.Info("no employment match from provider, falling back",
			zap.String("provider", l.searcher.ProviderName(p)),
			zap.String("name", name),
		)
	}
	return out, nil
}

func (l *Loop) checkCandidates(ctx context.Context, company string, candidates []search.Candidate) (*Report, string) {
	var best *Report
	var bestURL string

	for _, cand := range candidates {
		if ctx.Err() != nil {
			return best, bestURL
		}

		positions, err := l.extractor.Positions(ctx, cand.URL)
		if err != nil {
			l.logger.Warn("position extraction failed",
				zap.String("url", cand.URL),
				zap.Error(err),
			)
			continue
		}

		report := Analyze(company, positions, l.cfg.MatchThreshold)
		if !report.HasAnyMatch {
			l.logger.Debug("no company match in profile", zap.String("url", cand.URL))
			continue
		}

		score := report.Best.Match.Score
		if l.verifier != nil && score < l.cfg.EarlyExitThreshold {
			ok, verr := l.verifier.Verify(ctx, company, positions, *report.Best)
			switch {
			case verr != nil:
				l.logger.Warn("match verification failed, keeping match",
					zap.String("url", cand.URL),
					zap.Error(verr),
				)
			case !ok:
				l.logger.Info("verifier rejected match", zap.String("url", cand.URL))
				continue
			}
		}

		if best == nil || score > best.Best.Match.Score {
			r := report
			best = &r
			bestURL = cand.URL
		}

		if score >= l.cfg.EarlyExitThreshold {
			l.logger.Info("early exit on high-confidence match",
				zap.String("url", cand.URL),
				zap.Float64("score", score),
			)
			break
		}
	}
	return best, bestURL
}
