// Package htmltab extracts HTML <table> elements into the normalized
// dataset shape, one dataset per table.
//
// Uploaded "spreadsheets" are frequently HTML exports wearing an .xls
// extension; this parser gives those files the same profiling path as real
// workbooks. Extraction is resilient by design: tables that yield no rows
// are reported as warnings, never as errors.
package htmltab

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ingest/internal/dataset"
)

// DefaultMaxRows bounds materialized data rows per table when Options.MaxRows
// is unset.
const DefaultMaxRows = 1000

// Options control HTML table extraction.
type Options struct {
	// Name is the base label; a table index (and <caption> text, when
	// present) is appended per dataset.
	Name string
	// MaxRows caps materialized data rows per table; 0 means DefaultMaxRows.
	MaxRows int
}

// ParseDatasets parses html and returns one dataset per <table>, preserving
// DOM order.
//
// Behavior:
//   - A leading row of <th> cells (or a <thead> row) is the header; absent
//     that, the shared first-row heuristic decides.
//   - Nested tables contribute their own datasets; their text is not
//     flattened into the parent.
//   - A document without tables yields a single empty dataset plus a
//     warning. Only unparseable markup returns an error.
func ParseDatasets(html string, opt Options) ([]*dataset.Dataset, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	var out []*dataset.Dataset
	doc.Find("table").Each(func(idx int, tbl *goquery.Selection) {
		out = append(out, tableDataset(tbl, idx, opt, maxRows))
	})

	if len(out) == 0 {
		ds := &dataset.Dataset{
			SourceType:  dataset.SourceHTML,
			Name:        labelFor(opt.Name, 0, ""),
			ColumnNames: []string{},
			SampleRows:  [][]string{},
			Columns:     []*dataset.ColumnProfile{},
		}
		ds.Warn("no <table> elements found in document")
		out = append(out, ds)
	}
	return out, nil
}

func tableDataset(tbl *goquery.Selection, idx int, opt Options, maxRows int) *dataset.Dataset {
	caption := strings.TrimSpace(tbl.Find("caption").First().Text())
	ds := &dataset.Dataset{
		SourceType: dataset.SourceHTML,
		Name:       labelFor(opt.Name, idx, caption),
	}

	var (
		header  []string
		records [][]string
	)

	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		// Skip rows belonging to a nested table; they get their own dataset.
		if tr.Closest("table").Get(0) != tbl.Get(0) {
			return
		}

		// Direct children only: a nested table's cells are descendants of
		// this row but belong to their own dataset.
		cells := tr.ChildrenFiltered("th, td")
		row := make([]string, 0, cells.Length())
		ths := 0
		cells.Each(func(_ int, cell *goquery.Selection) {
			if goquery.NodeName(cell) == "th" {
				ths++
			}
			row = append(row, strings.TrimSpace(cell.Text()))
		})

		if allEmpty(row) {
			return
		}
		if header == nil && len(records) == 0 && ths > 0 && ths == len(row) {
			header = row
			return
		}
		records = append(records, row)
	})

	// No <th> header: fall back to the shared heuristic.
	hasHeader := header != nil
	if !hasHeader && dataset.DetectHeader(records) {
		header = records[0]
		records = records[1:]
		hasHeader = true
	}
	ds.Meta.HasHeader = &hasHeader

	if len(records) > maxRows {
		records = records[:maxRows]
		ds.Meta.Truncated = true
	}

	if header == nil && len(records) == 0 {
		ds.ColumnNames = []string{}
		ds.SampleRows = [][]string{}
		ds.Columns = []*dataset.ColumnProfile{}
		ds.Warn("table has no rows")
		return ds
	}

	width := len(header)
	for _, r := range records {
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
	ds.RowCount = len(records)
	ds.SampleRows = dataset.SampleOf(records)

	cols, warns := dataset.BuildColumns(names, records)
	ds.Columns = cols
	ds.Warnings = append(ds.Warnings, warns...)
	return ds
}

func labelFor(base string, idx int, caption string) string {
	tableLabel := fmt.Sprintf("table %d", idx+1)
	if caption != "" {
		tableLabel = caption
	}
	if base == "" {
		return tableLabel
	}
	return fmt.Sprintf("%s (%s)", base, tableLabel)
}

func allEmpty(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
