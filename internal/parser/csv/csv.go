// Package csv parses delimited text into the normalized dataset shape.
//
// The tokenizer is hand-written rather than built on encoding/csv because
// probing needs behavior the stdlib reader does not offer:
//   - delimiter sniffing over a bounded window, outside quoted spans
//   - hard row caps with an explicit truncation signal
//   - blank-line skipping without losing track of quoted embedded newlines
//   - best-effort recovery: malformed quoting degrades to literal characters
//     instead of failing the whole parse
package csv

import (
	"fmt"
	"strings"

	"ingest/internal/dataset"
)

// DefaultMaxRows bounds how many records are materialized when Options.MaxRows
// is unset.
const DefaultMaxRows = 1000

// sniffWindow bounds how many bytes delimiter detection examines.
const sniffWindow = 16 * 1024

// HeaderMode controls header-row handling.
type HeaderMode int

const (
	// HeaderAuto decides from the first two candidate rows.
	HeaderAuto HeaderMode = iota
	// HeaderYes forces the first record to be treated as a header.
	HeaderYes
	// HeaderNo synthesizes column_N names and keeps every record as data.
	HeaderNo
)

// Options control CSV parsing.
type Options struct {
	// Name is the human label for the produced dataset.
	Name string
	// MaxRows caps materialized data rows; 0 means DefaultMaxRows.
	MaxRows int
	// Header selects explicit or heuristic header detection.
	Header HeaderMode
	// Delimiter is the field separator; 0 means sniff from content.
	Delimiter rune
}

// ParseDataset parses input into a single Dataset.
//
// Behavior:
//   - \r\n and bare \r are normalized to \n before tokenizing.
//   - Records consisting of one empty field (blank lines) are discarded.
//   - Parsing stops after MaxRows+1 records and sets meta.truncated.
//   - Header collisions are auto-suffixed with a warning.
//   - All-blank input yields rowCount 0, no columns, and a warning; this
//     function never returns an error for content-shaped problems.
func ParseDataset(input string, opt Options) *dataset.Dataset {
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	delim := opt.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(input)
	}

	records, truncated := readRecords(input, delim, maxRows+1)

	ds := &dataset.Dataset{
		SourceType: dataset.SourceCSV,
		Name:       opt.Name,
		Meta: dataset.Meta{
			Delimiter: string(delim),
			Truncated: truncated,
		},
	}

	if len(records) == 0 {
		ds.SampleRows = [][]string{}
		ds.ColumnNames = []string{}
		ds.Columns = []*dataset.ColumnProfile{}
		ds.Warn("no rows parsed from input")
		return ds
	}

	hasHeader := resolveHeader(records, opt.Header)
	ds.Meta.HasHeader = &hasHeader

	var header []string
	var rows [][]string
	if hasHeader {
		header = records[0]
		rows = records[1:]
	} else {
		rows = records
	}

	// Row width may exceed the header when trailing fields appear mid-file;
	// pad names so columns and profiles stay aligned.
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

	// Respect the row cap on data rows, not on raw records: when a header is
	// present the extra record consumed above keeps truncation accurate.
	if len(rows) > maxRows {
		rows = rows[:maxRows]
		ds.Meta.Truncated = true
	}

	ds.ColumnNames = names
	ds.RowCount = len(rows)
	ds.SampleRows = dataset.SampleOf(rows)

	cols, warns := dataset.BuildColumns(names, rows)
	ds.Columns = cols
	ds.Warnings = append(ds.Warnings, warns...)

	return ds
}

// DetectDelimiter counts candidate separators outside quoted spans over the
// first unquoted line of a bounded window and returns the most frequent one.
// Ties and empty samples fall back to comma.
func DetectDelimiter(input string) rune {
	if len(input) > sniffWindow {
		input = input[:sniffWindow]
	}

	counts := map[rune]int{',': 0, '\t': 0, ';': 0, '|': 0}
	inQuotes := false

scan:
	for i := 0; i < len(input); i++ {
		switch c := input[i]; c {
		case '"':
			inQuotes = !inQuotes
		case '\n':
			if !inQuotes {
				break scan
			}
		case ',', '\t', ';', '|':
			if !inQuotes {
				counts[rune(c)]++
			}
		}
	}

	best := ','
	bestN := counts[',']
	// Fixed evaluation order keeps ties deterministic (comma wins them).
	for _, cand := range []rune{'\t', ';', '|'} {
		if counts[cand] > bestN {
			best = cand
			bestN = counts[cand]
		}
	}
	return best
}

// readRecords tokenizes input into records with a single-pass scanner.
//
// Quoting rules:
//   - '"' toggles the quoted state, unless immediately followed by a second
//     '"' inside quotes, which is consumed as one literal quote.
//   - The delimiter splits fields only outside quotes.
//   - '\n' ends a record only outside quotes (\r\n and \r normalize to \n).
//
// A record with a single empty field is a blank line and is discarded.
// Scanning stops once maxRecords records are collected; the second return
// value reports whether input remained.
func readRecords(input string, delim rune, maxRecords int) ([][]string, bool) {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")

	var (
		records  [][]string
		fields   []string
		field    strings.Builder
		inQuotes bool
	)

	endField := func() {
		fields = append(fields, field.String())
		field.Reset()
	}
	endRecord := func() bool {
		endField()
		blank := len(fields) == 1 && strings.TrimSpace(fields[0]) == ""
		if !blank {
			records = append(records, fields)
		}
		fields = nil
		return len(records) >= maxRecords
	}

	d := byte(delim)
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(input) && input[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == d && !inQuotes:
			endField()
		case c == '\n' && !inQuotes:
			if endRecord() {
				return records, strings.TrimSpace(input[i+1:]) != ""
			}
		default:
			field.WriteByte(c)
		}
	}

	// Flush a trailing record without a final newline.
	if field.Len() > 0 || len(fields) > 0 {
		endRecord()
	}
	return records, false
}

// resolveHeader applies the explicit mode or the shared first-row heuristic.
func resolveHeader(records [][]string, mode HeaderMode) bool {
	switch mode {
	case HeaderYes:
		return true
	case HeaderNo:
		return false
	}
	return dataset.DetectHeader(records)
}
