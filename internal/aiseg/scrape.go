package aiseg

// Pure markup parsers for the appliance's HTML/JSON hybrid pages. Every
// input is untrusted: a miss yields a zero value, never an error that could
// abort sibling work.

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)
	kwhSpanRe     = regexp.MustCompile(`(?i)<span[^>]*id="val_kwh"[^>]*>\s*([0-9][0-9,.]*)\s*</span>`)
	tokenFieldRe  = regexp.MustCompile(`name="token"\s+value="(\d+)"`)
)

// extractCallArgument locates the first inline <script> block containing
// marker, then slices out the balanced-parenthesis argument of the call that
// follows it and returns it when it is valid JSON. A block that contains the
// marker but no parseable argument is skipped in favor of the next
// candidate; nil is returned when no block qualifies.
func extractCallArgument(markup, marker string) []byte {
	for _, m := range scriptBlockRe.FindAllStringSubmatch(markup, -1) {
		block := m[1]
		idx := strings.Index(block, marker)
		if idx < 0 {
			continue
		}
		arg := balancedArgument(block[idx+len(marker):])
		if arg == "" || !json.Valid([]byte(arg)) {
			continue
		}
		return []byte(arg)
	}
	return nil
}

// balancedArgument returns the text between the first '(' of s and its
// matching ')'. Parentheses inside JSON string literals do not count toward
// the balance.
func balancedArgument(s string) string {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[open+1 : i])
			}
		}
	}
	return ""
}

// scrapeKWhValue finds the embedded numeric span of a totals/graph page and
// parses it as a comma-grouped decimal.
func scrapeKWhValue(markup string) (float64, bool) {
	m := kwhSpanRe.FindStringSubmatch(markup)
	if m == nil {
		return 0, false
	}
	v, err := parseGroupedFloat(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// scrapeToken finds the session-token hidden field of the device listing
// page.
func scrapeToken(markup string) (string, bool) {
	m := tokenFieldRe.FindStringSubmatch(markup)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// parseGroupedFloat parses a locale-formatted decimal such as "1,234.56".
func parseGroupedFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

// lenientFloat is parseGroupedFloat with the appliance-client defaulting
// rule: absent or unparseable numerics become 0 so they never null-propagate
// into downstream arithmetic.
func lenientFloat(s string) float64 {
	v, err := parseGroupedFloat(s)
	if err != nil {
		return 0
	}
	return v
}
