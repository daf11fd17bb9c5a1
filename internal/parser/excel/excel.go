// Package excel parses Excel workbooks into the normalized dataset shape,
// one dataset per worksheet.
//
// Workbook decoding is delegated to excelize, which resolves rich text runs,
// formula results, hyperlink display text, and cell number formats (so date
// cells arrive as formatted strings). This package only normalizes the
// resulting cell values and applies the shared header heuristic.
//
// Decode-level failures (a corrupt or non-Excel binary) propagate to the
// caller untouched; only sheet-level ambiguity degrades to warnings.
package excel

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"ingest/internal/dataset"
)

// DefaultMaxRows bounds materialized data rows per sheet when Options.MaxRows
// is unset.
const DefaultMaxRows = 1000

// Options control workbook parsing.
type Options struct {
	// Name is the base label; the sheet name is appended per dataset.
	Name string
	// SheetName restricts parsing to a single worksheet. Empty parses all.
	SheetName string
	// MaxRows caps materialized data rows per sheet; 0 means DefaultMaxRows.
	MaxRows int
	// ForceHeader, when non-nil, overrides the header heuristic.
	ForceHeader *bool
}

// ParseDatasets decodes buf as an Excel workbook and returns one dataset per
// worksheet (or the single requested sheet).
//
// The decode is synchronous and CPU-bound; ctx is checked between sheets so
// large multi-sheet workbooks remain cancellable.
//
// Errors:
//   - A workbook that cannot be decoded returns the excelize error.
//   - A requested sheet that does not exist returns an error.
//   - A sheet with no non-empty rows still produces a dataset (empty
//     columns, a warning) and never fails the parse.
func ParseDatasets(ctx context.Context, buf []byte, opt Options) ([]*dataset.Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if opt.SheetName != "" {
		if !containsSheet(sheets, opt.SheetName) {
			return nil, fmt.Errorf("sheet %q not found in workbook", opt.SheetName)
		}
		sheets = []string{opt.SheetName}
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	out := make([]*dataset.Dataset, 0, len(sheets))
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		out = append(out, sheetDataset(rows, sheet, opt, maxRows))
	}
	return out, nil
}

func sheetDataset(raw [][]string, sheet string, opt Options, maxRows int) *dataset.Dataset {
	name := sheet
	if opt.Name != "" {
		name = fmt.Sprintf("%s (%s)", opt.Name, sheet)
	}

	ds := &dataset.Dataset{
		SourceType: dataset.SourceExcel,
		Name:       name,
		Meta:       dataset.Meta{SheetName: sheet},
	}

	records := make([][]string, 0, len(raw))
	for _, row := range raw {
		cells := make([]string, len(row))
		empty := true
		for i, c := range row {
			cells[i] = resolveCell(c)
			if cells[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		records = append(records, cells)
	}

	if len(records) == 0 {
		ds.ColumnNames = []string{}
		ds.SampleRows = [][]string{}
		ds.Columns = []*dataset.ColumnProfile{}
		ds.Warn(fmt.Sprintf("sheet %q has no non-empty rows", sheet))
		return ds
	}

	hasHeader := dataset.DetectHeader(records)
	if opt.ForceHeader != nil {
		hasHeader = *opt.ForceHeader
	}
	ds.Meta.HasHeader = &hasHeader

	var header []string
	rows := records
	if hasHeader {
		header = records[0]
		rows = records[1:]
	}
	if len(rows) > maxRows {
		rows = rows[:maxRows]
		ds.Meta.Truncated = true
	}

	width := len(header)
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	names := make([]string, width)
	for i := range names {
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			names[i] = strings.TrimSpace(header[i])
		} else {
			names[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	ds.ColumnNames = names
	ds.RowCount = len(rows)
	ds.SampleRows = dataset.SampleOf(rows)

	cols, warns := dataset.BuildColumns(names, rows)
	ds.Columns = cols
	ds.Warnings = append(ds.Warnings, warns...)
	return ds
}

// resolveCell normalizes one evaluated cell value: trims whitespace and
// rewrites excelize's default short date rendering ("m-d-yy") to ISO so
// downstream inference sees one canonical date shape.
func resolveCell(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if iso, ok := rewriteShortDate(v); ok {
		return iso
	}
	return v
}

// rewriteShortDate converts "1-2-06" / "01-02-2006" style values (the
// rendering excelize applies to date-styled numeric cells) to ISO dates.
// Values that do not parse cleanly are returned unchanged.
func rewriteShortDate(v string) (string, bool) {
	parts := strings.Split(v, "-")
	if len(parts) != 3 {
		return "", false
	}
	for _, p := range parts {
		if p == "" {
			return "", false
		}
		if _, err := strconv.Atoi(p); err != nil {
			return "", false
		}
	}

	for _, lay := range []string{"1-2-06", "01-02-06", "1-2-2006", "01-02-2006"} {
		if t, err := time.Parse(lay, v); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

func containsSheet(sheets []string, want string) bool {
	for _, s := range sheets {
		if s == want {
			return true
		}
	}
	return false
}
