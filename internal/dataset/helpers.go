package dataset

import "strings"

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SafeRatio divides num by den, returning 0 when den is not positive.
// All ratio fields on profiles and suggestions go through this helper so a
// zero denominator can never panic or produce NaN/Inf.
func SafeRatio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Uniq returns the distinct values of ss, preserving first-seen order.
func Uniq(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Take returns at most n leading elements of ss without copying the backing
// array further than needed.
func Take(ss []string, n int) []string {
	if n < 0 {
		n = 0
	}
	if len(ss) <= n {
		return ss
	}
	return ss[:n]
}

// NormalizeName converts an arbitrary header or identifier into a safe
// lowercase token: runs of non-alphanumeric characters collapse to a single
// underscore, leading/trailing underscores are trimmed.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}

// SplitTopLevel splits s on commas that sit at paren depth zero and outside
// single/double-quoted spans. It is the shared scanner behind SQL column
// lists, VALUES tuples, and SELECT lists: commas inside nested parens (e.g.
// NUMERIC(10,2)) or string literals are never split points.
//
// Quote handling is deliberately simple: a quote character toggles its span;
// a doubled quote inside a span is consumed as an escaped literal.
func SplitTopLevel(s string) []string {
	var (
		parts   []string
		start   int
		depth   int
		inSingle, inDouble bool
	)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				if i+1 < len(s) && s[i+1] == '"' {
					i++
					continue
				}
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}

	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}
