package linkedin

import (
	"encoding/json"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// Position is a single employment entry extracted from a profile.
// IsCurrent is true when the date range is open-ended.
type Position struct {
	JobTitle  string
	Company   string
	DateRange string
	IsCurrent bool
}

var (
	codeBlockRe   = regexp.MustCompile(`(?s)<code[^>]*>(.*?)</code>`)
	companyRe     = regexp.MustCompile(`"companyName":\s*"((?:[^"\\]|\\.)*)"`)
	monthYearRe   = regexp.MustCompile(`"month":\s*(\d+)|"year":\s*(\d+)`)
	currentWordRe = regexp.MustCompile(`\b(present|current|now|today)\b`)
)

var shortMonths = [...]string{"", "jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// ParsePositions extracts employment entries from a profile page body.
// LinkedIn embeds profile data as HTML-encoded JSON inside <code> blocks;
// each position entity carries companyName, title, and a dateRange whose
// missing end marks a current position. The parser is deliberately
// tolerant: anything it cannot interpret is skipped, never an error.
func ParsePositions(body []byte) []Position {
	content := string(body)

	blocks := extractCodeBlocks(content)
	if len(blocks) == 0 {
		blocks = []string{content}
	}

	var out []Position
	seen := map[string]struct{}{}
	for _, block := range blocks {
		if !strings.Contains(block, `"companyName":`) {
			continue
		}
		for _, anchor := range companyRe.FindAllStringSubmatchIndex(block, -1) {
			p, ok := parseEntity(block, anchor)
			if !ok {
				continue
			}
			key := p.Company + "|" + p.JobTitle + "|" + p.DateRange
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func extractCodeBlocks(content string) []string {
	matches := codeBlockRe.FindAllStringSubmatch(content, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, html.UnescapeString(m[1]))
	}
	return blocks
}

// parseEntity extracts one position from the entity surrounding a
// companyName match. Fields inside position entities appear in no fixed
// order, so each companion field is resolved by taking the occurrence
// nearest to the companyName anchor.
func parseEntity(block string, anchor []int) (Position, bool) {
	var company string
	if err := jsonUnquote(block[anchor[2]:anchor[3]], &company); err != nil {
		company = block[anchor[2]:anchor[3]]
	}
	if company == "" {
		return Position{}, false
	}

	p := Position{
		Company:  company,
		JobTitle: nearestJSONString(block, titleRe, anchor[0]),
	}
	p.DateRange, p.IsCurrent = parseDateRange(block, anchor[0])
	return p, true
}

var titleRe = regexp.MustCompile(`"title":\s*"((?:[^"\\]|\\.)*)"`)

// nearestJSONString returns the string value of the field occurrence
// closest to anchor, or "" when the field is absent.
func nearestJSONString(block string, re *regexp.Regexp, anchor int) string {
	var raw string
	bestDist := -1
	for _, m := range re.FindAllStringSubmatchIndex(block, -1) {
		if d := distance(m[0], anchor); bestDist < 0 || d < bestDist {
			bestDist = d
			raw = block[m[2]:m[3]]
		}
	}
	if bestDist < 0 {
		return ""
	}
	var unescaped string
	if err := jsonUnquote(raw, &unescaped); err != nil {
		return raw
	}
	return unescaped
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// parseDateRange handles both representations seen in the wild: a plain
// string ("jun 2024 - present") and the structured object with start/end
// year-month pairs, where a null or absent end means open-ended. The
// occurrence nearest to the companyName anchor wins.
func parseDateRange(block string, anchor int) (string, bool) {
	const marker = `"dateRange":`
	idx, next := -1, strings.Index(block, marker)
	for next >= 0 {
		if idx < 0 || distance(next, anchor) < distance(idx, anchor) {
			idx = next
		}
		offset := next + len(marker)
		rel := strings.Index(block[offset:], marker)
		if rel < 0 {
			break
		}
		next = offset + rel
	}
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(block[idx+len(marker):], " \t\n")
	if rest == "" {
		return "", false
	}

	if rest[0] == '"' {
		s := quotedString(rest)
		return s, currentWordRe.MatchString(strings.ToLower(s))
	}
	if rest[0] != '{' {
		return "", false
	}

	obj := balancedObject(rest)
	start := objectField(obj, "start")
	end := objectField(obj, "end")

	rangeStr := formatYearMonth(start)
	current := end == ""
	if current {
		if rangeStr != "" {
			rangeStr += " - present"
		}
	} else if to := formatYearMonth(end); to != "" && rangeStr != "" {
		rangeStr += " - " + to
	}
	return rangeStr, current
}

// quotedString decodes the JSON string literal starting at s[0].
func quotedString(s string) string {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			var out string
			if err := jsonUnquote(s[1:i], &out); err != nil {
				return s[1:i]
			}
			return out
		}
	}
	return ""
}

// balancedObject returns the {...} object starting at s[0].
func balancedObject(s string) string {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		switch {
		case inString:
			if s[i] == '\\' {
				i++
			} else if s[i] == '"' {
				inString = false
			}
		case s[i] == '"':
			inString = true
		case s[i] == '{':
			depth++
		case s[i] == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return s
}

// objectField returns the object value of a field, or "" when the value is
// null or missing.
func objectField(obj, field string) string {
	idx := strings.Index(obj, `"`+field+`":`)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimLeft(obj[idx+len(field)+3:], " \t\n")
	if !strings.HasPrefix(rest, "{") {
		return ""
	}
	return balancedObject(rest)
}

func formatYearMonth(obj string) string {
	if obj == "" {
		return ""
	}
	var month, year int
	for _, m := range monthYearRe.FindAllStringSubmatch(obj, -1) {
		if m[1] != "" {
			month, _ = strconv.Atoi(m[1])
		}
		if m[2] != "" {
			year, _ = strconv.Atoi(m[2])
		}
	}
	if year == 0 {
		return ""
	}
	if month >= 1 && month <= 12 {
		return shortMonths[month] + " " + strconv.Itoa(year)
	}
	return strconv.Itoa(year)
}

func jsonUnquote(s string, out *string) error {
	return json.Unmarshal([]byte(`"`+s+`"`), out)
}
