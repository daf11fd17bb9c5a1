package preview

import (
	"fmt"
	"sort"
	"strings"

	"ingest/internal/dataset"
	"ingest/internal/match"
)

// Report renders a Result as a human-readable per-column profile report.
//
// The report is intended for interactive analysis and scripting: one block
// per dataset, one line per column, stable ordering. Callers that need
// machine-readable output should use the JSON form of Result instead.
func Report(res *Result) string {
	if res == nil || len(res.Datasets) == 0 {
		return "preview: no datasets"
	}

	var b strings.Builder
	for i, ds := range res.Datasets {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeDatasetReport(&b, ds)

		if i < len(res.SchemaSuggestions) {
			writeSuggestionLine(&b, res.SchemaSuggestions[i].BestTable)
		}
		for _, w := range ds.Warnings {
			fmt.Fprintf(&b, "  warning: %s\n", w)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeDatasetReport(b *strings.Builder, ds *dataset.Dataset) {
	fmt.Fprintf(b, "dataset %q (%s): %d columns, %d rows sampled",
		ds.Name, ds.SourceType, len(ds.Columns), ds.RowCount)
	if ds.Meta.Truncated {
		b.WriteString(" (truncated)")
	}
	b.WriteByte('\n')

	width := 0
	for _, col := range ds.Columns {
		if len(col.NormalizedName) > width {
			width = len(col.NormalizedName)
		}
	}
	for _, col := range ds.Columns {
		fmt.Fprintf(b, "  %-*s  %-9s conf=%.2f  fill=%.2f  distinct=%.2f%s\n",
			width, col.NormalizedName, col.InferredType,
			col.InferredTypeConfidence, col.NonEmptyRatio, col.UniqueRatio,
			patternSuffix(col.DetectedPatterns))
	}
}

func patternSuffix(patterns []string) string {
	if len(patterns) == 0 {
		return ""
	}
	sorted := append([]string(nil), patterns...)
	sort.Strings(sorted)
	return "  [" + strings.Join(sorted, " ") + "]"
}

func writeSuggestionLine(b *strings.Builder, best *match.TableMatchSuggestion) {
	if best == nil {
		b.WriteString("  match: no table above threshold\n")
		return
	}
	fmt.Fprintf(b, "  match: %s score=%.2f (%d field(s) mapped)\n",
		best.Table, best.Score, len(best.SuggestedMapping))
}
