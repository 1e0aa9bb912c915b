// Package matching implements name and company normalization plus the
// fuzzy-similarity scoring used to decide whether two identity strings
// refer to the same person or employer.
package matching

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	personPunct  = regexp.MustCompile(`[.,\-]`)
	companyPunct = regexp.MustCompile(`[.,&()\-]`)
	whitespace   = regexp.MustCompile(`\s+`)

	// Legal-entity suffixes are dropped as whole tokens only, never as
	// substrings, so "Incorporated Bank" keeps its first token while
	// "Acme Inc" loses its last.
	companySuffixes = map[string]struct{}{
		"inc": {}, "incorporated": {}, "corp": {}, "corporation": {},
		"ltd": {}, "limited": {}, "llc": {}, "co": {}, "company": {},
		"gmbh": {}, "ag": {}, "sa": {}, "sab": {}, "de": {}, "cv": {},
		"spa": {}, "bv": {}, "nv": {}, "ab": {}, "as": {}, "oy": {},
		"se": {}, "plc": {}, "pty": {}, "pvt": {}, "private": {}, "public": {},
	}

	foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// NormalizePerson canonicalizes a person name: lowercase, diacritics folded
// to ASCII, dots/commas/hyphens turned into spaces, whitespace collapsed.
// Empty input yields an empty string; warning the caller about it is the
// caller's job, not ours.
func NormalizePerson(name string) string {
	if name == "" {
		return ""
	}
	name = transliterate(strings.ToLower(name))
	name = personPunct.ReplaceAllString(name, " ")
	return collapse(name)
}

// NormalizeCompany canonicalizes a company name the same way as
// NormalizePerson, with a wider punctuation set and legal-entity suffix
// tokens removed.
func NormalizeCompany(name string) string {
	if name == "" {
		return ""
	}
	name = transliterate(strings.ToLower(name))
	name = companyPunct.ReplaceAllString(name, " ")
	name = collapse(name)

	tokens := strings.Fields(name)
	kept := tokens[:0]
	for _, t := range tokens {
		if _, drop := companySuffixes[t]; !drop {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func transliterate(s string) string {
	out, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		return s
	}
	return out
}
