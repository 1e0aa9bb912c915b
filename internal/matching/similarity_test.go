package matching

import "testing"

func TestScoreCompany(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		a, b      string
		threshold float64
		match     bool
	}{
		{
			name:      "identical after suffix stripping",
			a:         "Bloomberg",
			b:         "Bloomberg Inc.",
			threshold: 75,
			match:     true,
		},
		{
			name:      "token order irrelevant",
			a:         "Smart and Final Stores",
			b:         "Stores Smart and Final",
			threshold: 90,
			match:     true,
		},
		{
			name:      "unrelated companies",
			a:         "Bloomberg",
			b:         "Screenvision Media",
			threshold: 75,
			match:     false,
		},
		{
			name:      "fractional threshold scaled",
			a:         "Acme Corp",
			b:         "Acme",
			threshold: 0.75,
			match:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Score(tt.a, tt.b, KindCompany, tt.threshold)
			if got.IsMatch != tt.match {
				t.Fatalf("expected match=%v, got %+v", tt.match, got)
			}
		})
	}
}

func TestScoreCompanyMatchConsistentWithThreshold(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"Bloomberg", "Bloomberg LP"},
		{"Acme Inc", "Acme Holdings"},
		{"Modis", "Bloomberg"},
		{"Kid Care Concierge", "Kid Care"},
	}
	const threshold = 75.0
	for _, p := range pairs {
		r := Score(p[0], p[1], KindCompany, threshold)
		if r.IsMatch != (r.Score >= threshold) {
			t.Fatalf("IsMatch inconsistent with score for %v: %+v", p, r)
		}
	}
}

func TestScorePersonGuard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		a, b      string
		threshold float64
		match     bool
	}{
		{
			name:      "shared first name different surname rejected",
			a:         "Sam Brenner",
			b:         "Sam Frenzel",
			threshold: 80,
			match:     false,
		},
		{
			name:      "first name variant same surname accepted",
			a:         "Sam Brenner",
			b:         "Samuel Brenner",
			threshold: 80,
			match:     true,
		},
		{
			name:      "surname initial never trusted",
			a:         "Sam Brenner",
			b:         "Sammy B",
			threshold: 60,
			match:     false,
		},
		{
			name:      "reordered tokens accepted",
			a:         "Sam Brenner",
			b:         "Brenner Sam",
			threshold: 80,
			match:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Score(tt.a, tt.b, KindPerson, tt.threshold)
			if got.IsMatch != tt.match {
				t.Fatalf("expected match=%v, got %+v", tt.match, got)
			}
		})
	}
}

func TestScorePersonSingleToken(t *testing.T) {
	t.Parallel()

	exact := Score("Cher", "Cher", KindPerson, 50)
	if exact.Score != 100 || !exact.IsMatch || exact.MatchType != MatchExact {
		t.Fatalf("expected exact single-token match, got %+v", exact)
	}

	near := Score("Cher", "Cheryl", KindPerson, 50)
	if near.IsMatch || near.Score != 0 {
		t.Fatalf("expected single-token near-miss to be rejected, got %+v", near)
	}
}

func TestScoreEmptyInput(t *testing.T) {
	t.Parallel()

	r := Score("", "Bloomberg", KindCompany, 75)
	if r.IsMatch || r.MatchType != MatchEmpty {
		t.Fatalf("expected empty-input result, got %+v", r)
	}
}

func TestTokenSetRatioProperties(t *testing.T) {
	t.Parallel()

	if got := tokenSetRatio("alpha beta", "beta alpha alpha"); got != 100 {
		t.Fatalf("equal token sets should score 100, got %v", got)
	}
	if got := tokenSetRatio("alpha", ""); got != 0 {
		t.Fatalf("empty side should score 0, got %v", got)
	}
}
