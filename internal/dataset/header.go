package dataset

import "strings"

// DetectHeader decides whether the first record of a parsed table is a
// header row. The same heuristic serves every tabular source format.
//
// The first record is a header iff:
//   - all of its cells are unique case-insensitively,
//   - at least 60% of cells are non-empty,
//   - at most 20% of cells look numeric,
//   - no cell exceeds 80 characters.
//
// When a second record exists and looks more numeric than the first, that
// reinforces the decision: a candidate header that fails only the numeric
// check is still accepted when the data beneath it is clearly more numeric.
func DetectHeader(records [][]string) bool {
	if len(records) == 0 {
		return false
	}
	first := records[0]
	if len(first) == 0 {
		return false
	}

	seen := make(map[string]struct{}, len(first))
	nonEmpty := 0
	numeric := 0
	for _, cell := range first {
		c := strings.TrimSpace(cell)
		if len(c) > 80 {
			return false
		}
		if c == "" {
			continue
		}
		nonEmpty++
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		if looksNumeric(c) {
			numeric++
		}
	}

	if SafeRatio(nonEmpty, len(first)) < 0.6 {
		return false
	}
	if SafeRatio(numeric, len(first)) > 0.2 {
		if len(records) > 1 && rowNumericRatio(records[1]) > rowNumericRatio(first) {
			return true
		}
		return false
	}
	return true
}

// rowNumericRatio reports the share of non-empty numeric-looking cells.
func rowNumericRatio(row []string) float64 {
	nonEmpty := 0
	numeric := 0
	for _, cell := range row {
		c := strings.TrimSpace(cell)
		if c == "" {
			continue
		}
		nonEmpty++
		if looksNumeric(c) {
			numeric++
		}
	}
	return SafeRatio(numeric, nonEmpty)
}

// looksNumeric is a looser check than full number inference: digits plus
// sign/grouping punctuation only.
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == ',' || r == '-' || r == '+':
		default:
			return false
		}
	}
	return digits > 0
}
