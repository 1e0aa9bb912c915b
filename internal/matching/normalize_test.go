package matching

import "testing"

func TestNormalizeCompany(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "strips legal suffix and punctuation",
			input:  " Acme,  Inc. ",
			expect: "acme",
		},
		{
			name:   "folds diacritics",
			input:  "Café Müller GmbH",
			expect: "cafe muller",
		},
		{
			name:   "suffix tokens removed as whole tokens only",
			input:  "Incorporated Banking Group",
			expect: "banking group",
		},
		{
			name:   "ampersand and parens become spaces",
			input:  "Johnson & Johnson (Consumer)",
			expect: "johnson johnson consumer",
		},
		{
			name:   "empty input",
			input:  "",
			expect: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeCompany(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestNormalizePerson(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "lowercases and collapses whitespace",
			input:  "  Sam   BRENNER ",
			expect: "sam brenner",
		},
		{
			name:   "hyphens and dots become spaces",
			input:  "J.-P. Dubois",
			expect: "j p dubois",
		},
		{
			name:   "diacritics folded",
			input:  "José Ñáñez",
			expect: "jose nanez",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePerson(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{" Acme,  Inc. ", "José Ñáñez", "Johnson & Johnson", "Sam Brenner"}
	for _, in := range inputs {
		if once, twice := NormalizeCompany(in), NormalizeCompany(NormalizeCompany(in)); once != twice {
			t.Fatalf("company normalization not idempotent for %q: %q vs %q", in, once, twice)
		}
		if once, twice := NormalizePerson(in), NormalizePerson(NormalizePerson(in)); once != twice {
			t.Fatalf("person normalization not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestNormalizeEquivalentSpellings(t *testing.T) {
	t.Parallel()

	if NormalizeCompany(" Acme,  Inc. ") != NormalizeCompany("acme inc") {
		t.Fatalf("expected whitespace and suffix variants to normalize identically")
	}
}
