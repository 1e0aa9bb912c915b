package matching

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Kind selects the comparison rules: company names tolerate reordering and
// suffix noise, person names get stricter false-positive suppression.
type Kind string

const (
	KindCompany Kind = "company"
	KindPerson  Kind = "person"
)

// MatchType records how a Result was produced, so callers can log the
// scoring rationale instead of a bare boolean.
type MatchType string

const (
	MatchEmpty    MatchType = "empty_input"
	MatchExact    MatchType = "exact_single_token"
	MatchFuzzy    MatchType = "token_set"
	MatchRejected MatchType = "rejected_validation"
)

// Result is the outcome of a single comparison. Scores run 0-100.
type Result struct {
	Score       float64
	IsMatch     bool
	MatchType   MatchType
	NormalizedA string
	NormalizedB string
}

// Score compares two raw strings under the given kind and threshold.
// Thresholds below 1 are treated as fractions and scaled to the 0-100 range.
func Score(a, b string, kind Kind, threshold float64) Result {
	if a == "" || b == "" {
		return Result{MatchType: MatchEmpty}
	}

	if threshold < 1 {
		threshold *= 100
	}

	switch kind {
	case KindCompany:
		na, nb := NormalizeCompany(a), NormalizeCompany(b)
		score := tokenSetRatio(na, nb)
		return Result{
			Score:       score,
			IsMatch:     score >= threshold,
			MatchType:   MatchFuzzy,
			NormalizedA: na,
			NormalizedB: nb,
		}
	case KindPerson:
		return scorePerson(a, b, threshold)
	default:
		return Result{MatchType: MatchEmpty}
	}
}

func scorePerson(a, b string, threshold float64) Result {
	na, nb := NormalizePerson(a), NormalizePerson(b)
	tokensA := strings.Fields(na)
	tokensB := strings.Fields(nb)

	// Single-token names are too ambiguous for fuzzy comparison; only an
	// exact normalized match counts.
	if len(tokensA) < 2 || len(tokensB) < 2 {
		if na == nb && na != "" {
			return Result{Score: 100, IsMatch: true, MatchType: MatchExact, NormalizedA: na, NormalizedB: nb}
		}
		return Result{MatchType: MatchExact, NormalizedA: na, NormalizedB: nb}
	}

	score := tokenSetRatio(na, nb)
	matchType := MatchFuzzy

	// The guard runs after the base score so low scores are never laundered
	// by coincidental initial matches: plain token overlap alone conflates
	// "Sam Brenner" with "Sam Frenzel".
	if score >= threshold && !validPersonMatch(tokensA, tokensB, score) {
		score -= 30
		if score < 0 {
			score = 0
		}
		matchType = MatchRejected
	}

	return Result{
		Score:       score,
		IsMatch:     score >= threshold,
		MatchType:   matchType,
		NormalizedA: na,
		NormalizedB: nb,
	}
}

// validPersonMatch suppresses false positives between merely similar-looking
// people. Both token slices are guaranteed non-empty with at least 2 entries.
func validPersonMatch(tokensA, tokensB []string, score float64) bool {
	if score >= 95 {
		return true
	}

	firstA, lastA := tokensA[0], tokensA[len(tokensA)-1]
	firstB, lastB := tokensB[0], tokensB[len(tokensB)-1]

	if charRatio(lastA, lastB) < 60 {
		// A single-character surname is an initial; initials are never
		// trusted as surname evidence.
		if len(lastA) == 1 || len(lastB) == 1 {
			return false
		}
		if charRatio(lastA, lastB) < 40 {
			return false
		}
		if charRatio(firstA, firstB) < 80 {
			return false
		}
	}

	if initials(tokensA) != initials(tokensB) && score < 85 {
		return false
	}

	return true
}

func initials(tokens []string) string {
	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteRune([]rune(t)[0])
	}
	return sb.String()
}

// charRatio is the character-level similarity of two tokens, scaled 0-100,
// based on Levenshtein distance over the longer token.
func charRatio(a, b string) float64 {
	if a == b {
		return 100
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// tokenSetRatio compares the sets of whitespace tokens in two strings,
// insensitive to token order and duplication: the unique tokens are split
// into intersection and differences, and the best pairwise indel ratio of
// {intersection, intersection+diffA, intersection+diffB} wins. Equal token
// sets therefore score 100 regardless of ordering.
func tokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for _, t := range setA {
		if contains(setB, t) {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range setB {
		if !contains(setA, t) {
			onlyB = append(onlyB, t)
		}
	}

	base := strings.Join(common, " ")
	combinedA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := indelRatio(combinedA, combinedB)
	if base != "" {
		if r := indelRatio(base, combinedA); r > best {
			best = r
		}
		if r := indelRatio(base, combinedB); r > best {
			best = r
		}
	}
	return best
}

func tokenSet(s string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range strings.Fields(s) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func contains(set []string, t string) bool {
	for _, s := range set {
		if s == t {
			return true
		}
	}
	return false
}

// indelRatio is the insert/delete similarity of two strings scaled 0-100:
// 200*LCS/(len(a)+len(b)). Substitutions count as a delete plus an insert,
// matching the ratio underlying token-set scoring.
func indelRatio(a, b string) float64 {
	if a == b {
		return 100
	}
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcs(ra, rb)) / float64(total)
}

func lcs(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
