package validation

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/scomax/contact-validator/internal/linkedin"
	"github.com/scomax/contact-validator/internal/search"
)

type stubSearcher struct {
	candidates [][]search.Candidate
	errs       []error
	calls      int
}

func (s *stubSearcher) Providers() int            { return len(s.candidates) }
func (s *stubSearcher) ProviderName(_ int) string { return "stub" }

func (s *stubSearcher) FindFrom(_ context.Context, provider int, _ search.Request) ([]search.Candidate, error) {
	s.calls++
	if s.errs != nil && s.errs[provider] != nil {
		return nil, s.errs[provider]
	}
	return s.candidates[provider], nil
}

type stubExtractor struct {
	positions map[string][]linkedin.Position
	errs      map[string]error
	fetched   []string
}

func (s *stubExtractor) Positions(_ context.Context, profileURL string) ([]linkedin.Position, error) {
	s.fetched = append(s.fetched, profileURL)
	if err := s.errs[profileURL]; err != nil {
		return nil, err
	}
	return s.positions[profileURL], nil
}

func defaultConfig() Config {
	return Config{MaxCandidates: 3, SearchThreshold: 0.6, MatchThreshold: 75, EarlyExitThreshold: 85}
}

func TestResolveEarlyExitSkipsRemainingCandidates(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{candidates: [][]search.Candidate{{
		{URL: "https://www.linkedin.com/in/one", Similarity: 1},
		{URL: "https://www.linkedin.com/in/two", Similarity: 0.9},
		{URL: "https://www.linkedin.com/in/three", Similarity: 0.8},
	}}}
	extractor := &stubExtractor{positions: map[string][]linkedin.Position{
		"https://www.linkedin.com/in/one": {{JobTitle: "Recruiter", Company: "Somewhere Else", IsCurrent: true}},
		"https://www.linkedin.com/in/two": {{JobTitle: "Recruiter", Company: "Bloomberg", IsCurrent: true}},
	}}

	loop := NewLoop(searcher, extractor, nil, defaultConfig(), zap.NewNop())
	out, err := loop.Resolve(context.Background(), "Sam Brenner", "Bloomberg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Report == nil || !out.Report.HasCurrentMatch {
		t.Fatalf("expected current match, got %+v", out)
	}
	if out.ProfileURL != "https://www.linkedin.com/in/two" {
		t.Fatalf("unexpected profile url: %q", out.ProfileURL)
	}
	for _, url := range extractor.fetched {
		if url == "https://www.linkedin.com/in/three" {
			t.Fatal("third candidate fetched despite early exit")
		}
	}
}

func TestResolveFallsBackToNextProvider(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{candidates: [][]search.Candidate{
		{{URL: "https://www.linkedin.com/in/wrong", Similarity: 1}},
		{{URL: "https://www.linkedin.com/in/right", Similarity: 1}},
	}}
	extractor := &stubExtractor{positions: map[string][]linkedin.Position{
		"https://www.linkedin.com/in/wrong": {{JobTitle: "Barista", Company: "Coffee House", IsCurrent: true}},
		"https://www.linkedin.com/in/right": {{JobTitle: "Recruiter", Company: "Bloomberg", IsCurrent: true}},
	}}

	loop := NewLoop(searcher, extractor, nil, defaultConfig(), zap.NewNop())
	out, err := loop.Resolve(context.Background(), "Sam Brenner", "Bloomberg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ProfileURL != "https://www.linkedin.com/in/right" {
		t.Fatalf("expected match from the secondary provider, got %+v", out)
	}
	if out.Candidates != 2 {
		t.Fatalf("expected both candidates counted, got %d", out.Candidates)
	}
}

func TestResolveNoCandidatesAnywhere(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{candidates: [][]search.Candidate{{}, {}}}
	loop := NewLoop(searcher, &stubExtractor{}, nil, defaultConfig(), zap.NewNop())

	out, err := loop.Resolve(context.Background(), "Sam Brenner", "Bloomberg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Report != nil || out.Candidates != 0 {
		t.Fatalf("expected empty outcome, got %+v", out)
	}
}

func TestResolveCandidatesWithoutEvidence(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{candidates: [][]search.Candidate{
		{{URL: "https://www.linkedin.com/in/one", Similarity: 1}},
	}}
	extractor := &stubExtractor{positions: map[string][]linkedin.Position{
		"https://www.linkedin.com/in/one": {{JobTitle: "Barista", Company: "Coffee House", IsCurrent: true}},
	}}

	loop := NewLoop(searcher, extractor, nil, defaultConfig(), zap.NewNop())
	out, err := loop.Resolve(context.Background(), "Sam Brenner", "Bloomberg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Report != nil {
		t.Fatalf("expected no report, got %+v", out.Report)
	}
	if out.Candidates != 1 {
		t.Fatalf("expected candidate counted despite no evidence, got %d", out.Candidates)
	}
}

func TestResolveExtractionFailureSkipsCandidate(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{candidates: [][]search.Candidate{{
		{URL: "https://www.linkedin.com/in/broken", Similarity: 1},
		{URL: "https://www.linkedin.com/in/good", Similarity: 0.9},
	}}}
	extractor := &stubExtractor{
		errs: map[string]error{"https://www.linkedin.com/in/broken": errors.New("fetch failed")},
		positions: map[string][]linkedin.Position{
			"https://www.linkedin.com/in/good": {{JobTitle: "Recruiter", Company: "Bloomberg", IsCurrent: true}},
		},
	}

	loop := NewLoop(searcher, extractor, nil, defaultConfig(), zap.NewNop())
	out, err := loop.Resolve(context.Background(), "Sam Brenner", "Bloomberg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ProfileURL != "https://www.linkedin.com/in/good" {
		t.Fatalf("expected failure isolated to first candidate, got %+v", out)
	}
}

type stubVerifier struct {
	verdict bool
	err     error
	calls   int
}

func (s *stubVerifier) Verify(_ context.Context, _ string, _ []linkedin.Position, _ PositionMatch) (bool, error) {
	s.calls++
	return s.verdict, s.err
}

func TestResolveVerifierRejectsBorderlineMatch(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{candidates: [][]search.Candidate{
		{{URL: "https://www.linkedin.com/in/one", Similarity: 1}},
	}}
	extractor := &stubExtractor{positions: map[string][]linkedin.Position{
		"https://www.linkedin.com/in/one": {{JobTitle: "Contractor", Company: "Blue River Labs", IsCurrent: true}},
	}}

	cfg := defaultConfig()
	cfg.EarlyExitThreshold = 101 // force the borderline path
	verifier := &stubVerifier{verdict: false}

	loop := NewLoop(searcher, extractor, verifier, cfg, zap.NewNop())
	out, err := loop.Resolve(context.Background(), "Sam Brenner", "Blue River Labs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verifier.calls != 1 {
		t.Fatalf("expected verifier consulted once, got %d", verifier.calls)
	}
	if out.Report != nil {
		t.Fatalf("expected rejected match to be dropped, got %+v", out.Report)
	}
}

func TestResolveVerifierErrorFailsOpen(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{candidates: [][]search.Candidate{
		{{URL: "https://www.linkedin.com/in/one", Similarity: 1}},
	}}
	extractor := &stubExtractor{positions: map[string][]linkedin.Position{
		"https://www.linkedin.com/in/one": {{JobTitle: "Recruiter", Company: "Bloomberg", IsCurrent: true}},
	}}

	cfg := defaultConfig()
	cfg.EarlyExitThreshold = 101
	verifier := &stubVerifier{err: errors.New("model unavailable")}

	loop := NewLoop(searcher, extractor, verifier, cfg, zap.NewNop())
	out, err := loop.Resolve(context.Background(), "Sam Brenner", "Bloomberg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Report == nil {
		t.Fatalf("expected verifier failure to keep the match, got %+v", out)
	}
}

func TestResolveSearchErrorFallsThrough(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{
		candidates: [][]search.Candidate{
			nil,
			{{URL: "https://www.linkedin.com/in/right", Similarity: 1}},
		},
		errs: []error{errors.New("search unavailable"), nil},
	}
	extractor := &stubExtractor{positions: map[string][]linkedin.Position{
		"https://www.linkedin.com/in/right": {{JobTitle: "Recruiter", Company: "Bloomberg", IsCurrent: true}},
	}}

	loop := NewLoop(searcher, extractor, nil, defaultConfig(), zap.NewNop())
	out, err := loop.Resolve(context.Background(), "Sam Brenner", "Bloomberg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.ProfileURL != "https://www.linkedin.com/in/right" {
		t.Fatalf("expected recovery via second provider, got %+v", out)
	}
}
