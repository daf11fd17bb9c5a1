package dataset

import (
	"fmt"
	"strings"
)

// lengthSampleCap bounds how many non-empty values contribute to the
// min/avg/max length statistics per column.
const lengthSampleCap = 1000

// distinctCapPerColumn bounds distinct-value tracking per column. Once the
// cap is reached the backing set is dropped so extremely high-cardinality
// columns (UUIDs, row-level IDs) cannot grow memory without bound.
const distinctCapPerColumn = 10000

// BuildColumns profiles every column of a parsed table.
//
// Behavior:
//   - columnNames keeps source order and may contain duplicates; the
//     normalized names on the returned profiles are de-duplicated by
//     suffixing (email, email_2, ...), and each collision produces one
//     warning.
//   - rows must be rectangular and aligned with columnNames; values beyond a
//     short row are treated as empty.
//   - Never returns an error: malformed shapes degrade to empty profiles.
//
// The second return value is the list of collision warnings (possibly nil).
func BuildColumns(columnNames []string, rows [][]string) ([]*ColumnProfile, []string) {
	profiles := make([]*ColumnProfile, 0, len(columnNames))
	var warnings []string

	taken := make(map[string]int, len(columnNames))
	for i, name := range columnNames {
		values := columnValues(rows, i)
		p := buildColumn(name, values)

		// De-duplicate normalized names deterministically. The raw header in
		// ColumnNames keeps the duplicate; only the normalized handle moves.
		base := p.NormalizedName
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
			p.NormalizedName = base
		}
		if n := taken[base]; n > 0 {
			suffixed := fmt.Sprintf("%s_%d", base, n+1)
			warnings = append(warnings, fmt.Sprintf(
				"column %q normalizes to %q which collides with an earlier column; renamed to %q",
				name, base, suffixed))
			p.NormalizedName = suffixed
		}
		taken[base]++

		profiles = append(profiles, p)
	}

	return profiles, warnings
}

// buildColumn computes a single column profile from raw values. Empty or
// whitespace-only strings count as nullish.
func buildColumn(name string, values []string) *ColumnProfile {
	p := &ColumnProfile{
		Name:           name,
		NormalizedName: NormalizeName(name),
	}

	distinct := make(map[string]struct{})
	capped := false

	lengthSamples := 0
	lengthSum := 0

	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			p.NullishCount++
			continue
		}
		p.NonEmptyCount++

		if !capped {
			distinct[v] = struct{}{}
			if len(distinct) >= distinctCapPerColumn {
				capped = true
			}
		}

		if lengthSamples < lengthSampleCap {
			n := len(v)
			if lengthSamples == 0 || n < p.MinLength {
				p.MinLength = n
			}
			if n > p.MaxLength {
				p.MaxLength = n
			}
			lengthSum += n
			lengthSamples++
		}

		if len(p.Samples) < MaxSampleRows {
			p.Samples = append(p.Samples, v)
		}
	}

	p.UniqueCount = len(distinct)
	p.NonEmptyRatio = SafeRatio(p.NonEmptyCount, p.NonEmptyCount+p.NullishCount)
	p.UniqueRatio = Clamp(SafeRatio(p.UniqueCount, p.NonEmptyCount), 0, 1)
	p.AvgLength = SafeRatio(lengthSum, lengthSamples)

	inf := InferColumn(values)
	p.InferredType = inf.Type
	p.InferredTypeConfidence = inf.Confidence
	p.InferenceStats = inf.Stats
	p.DetectedPatterns = inf.Patterns

	return p
}

// columnValues extracts column i from every row, padding short rows with "".
func columnValues(rows [][]string, i int) []string {
	out := make([]string, len(rows))
	for r, row := range rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// SampleOf returns the leading sample slice of rows respecting the global
// sample cap. The returned slice aliases rows.
func SampleOf(rows [][]string) [][]string {
	if len(rows) <= MaxSampleRows {
		return rows
	}
	return rows[:MaxSampleRows]
}
