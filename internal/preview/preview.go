// Package preview orchestrates the ingestion pipeline: it resolves which
// parser should handle an input, decodes text to UTF-8, runs the parser,
// and matches the resulting datasets against a schema registry.
//
// Resolution never fails on ambiguity. An input that cannot be identified
// is treated as CSV, because the CSV parser degrades gracefully on
// arbitrary text (a one-column dataset with warnings) while the other
// parsers do not.
package preview

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ingest/internal/dataset"
	"ingest/internal/match"
	"ingest/internal/metrics"
	"ingest/internal/parser/csv"
	"ingest/internal/parser/excel"
	"ingest/internal/parser/htmltab"
	jsonparse "ingest/internal/parser/json"
	"ingest/internal/parser/sqltext"
	"ingest/internal/schema"
	"ingest/internal/textenc"
)

// Format selects a parser. The empty Format means "resolve it for me".
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatSQL   Format = "sql"
	FormatHTML  Format = "html"
	FormatJSON  Format = "json"
)

// sniffWindow bounds how much of the input content sniffing inspects.
const sniffWindow = 4096

// Config configures a preview Service.
type Config struct {
	// Tables is the schema registry suggestions target. Nil means the
	// built-in default registry.
	Tables []schema.Table

	// Metrics receives parse/match counters and durations. Nil means no
	// metrics are emitted.
	Metrics metrics.Backend

	// Match overrides matcher thresholds; zero values take the matcher's
	// defaults.
	Match match.Options

	// MaxRows caps materialized rows per dataset; 0 means each parser's
	// default.
	MaxRows int
}

// Service is the pipeline entry point. The zero value is not usable; use
// NewService.
type Service struct {
	cfg Config
}

// NewService builds a Service, filling in registry and metrics defaults.
func NewService(cfg Config) *Service {
	if cfg.Tables == nil {
		cfg.Tables = schema.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	return &Service{cfg: cfg}
}

// BufferRequest describes a raw (possibly binary) input.
type BufferRequest struct {
	Buffer   []byte
	Filename string // used for extension-based format resolution
	MIMEType string // used when the extension is not decisive
	Format   Format // explicit override; wins over everything
	Sheet    string // Excel only: restrict to one sheet
	Name     string // label for produced datasets; default from Filename
}

// TextRequest describes an already-textual input (e.g. pasted content).
type TextRequest struct {
	Text   string
	Format Format // required for FromText, ignored by FromTextAuto
	Name   string
}

// Result is the preview payload: the parsed datasets and one schema
// suggestion per dataset, index-aligned.
type Result struct {
	Datasets          []*dataset.Dataset            `json:"datasets"`
	SchemaSuggestions []match.SchemaMatchSuggestion `json:"schemaSuggestions"`
}

// FromBuffer previews a raw upload. Format resolution order: explicit
// request Format, then filename extension, then MIME type, then content
// sniffing, then CSV.
func (s *Service) FromBuffer(ctx context.Context, req BufferRequest) (*Result, error) {
	name := req.Name
	if name == "" && req.Filename != "" {
		name = strings.TrimSuffix(filepath.Base(req.Filename), filepath.Ext(req.Filename))
	}

	format := req.Format
	if format == "" {
		format = resolveFormat(req.Filename, req.MIMEType, req.Buffer)
	}

	if format == FormatExcel {
		return s.run(ctx, format, func() ([]*dataset.Dataset, error) {
			return excel.ParseDatasets(ctx, req.Buffer, excel.Options{
				Name:      name,
				SheetName: req.Sheet,
				MaxRows:   s.cfg.MaxRows,
			})
		})
	}

	text, encoding, err := textenc.Decode(req.Buffer)
	if err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	res, err := s.parseText(ctx, format, text, name)
	if err != nil {
		return nil, err
	}
	noteEncoding(res.Datasets, encoding)
	return res, nil
}

// FromText previews textual input in an explicitly named format.
//
// Edge cases:
//   - Format is required; empty Format is an error (use FromTextAuto).
//   - FormatExcel is an error: workbooks are binary and cannot arrive as
//     text.
func (s *Service) FromText(ctx context.Context, req TextRequest) (*Result, error) {
	switch req.Format {
	case "":
		return nil, fmt.Errorf("preview: missing format (use FromTextAuto to sniff)")
	case FormatExcel:
		return nil, fmt.Errorf("preview: excel input must be a binary buffer")
	case FormatCSV, FormatSQL, FormatHTML, FormatJSON:
	default:
		return nil, fmt.Errorf("preview: unknown format %q", req.Format)
	}
	return s.parseText(ctx, req.Format, req.Text, req.Name)
}

// FromTextAuto previews textual input, sniffing the format from content.
func (s *Service) FromTextAuto(ctx context.Context, req TextRequest) (*Result, error) {
	return s.parseText(ctx, sniffFormat(req.Text), req.Text, req.Name)
}

func (s *Service) parseText(ctx context.Context, format Format, text, name string) (*Result, error) {
	return s.run(ctx, format, func() ([]*dataset.Dataset, error) {
		switch format {
		case FormatSQL:
			return sqltext.ParseDatasets(text, sqltext.Options{
				Name:          name,
				MaxSampleRows: s.cfg.MaxRows,
			}), nil
		case FormatHTML:
			return htmltab.ParseDatasets(text, htmltab.Options{
				Name:    name,
				MaxRows: s.cfg.MaxRows,
			})
		case FormatJSON:
			return []*dataset.Dataset{jsonparse.ParseDataset(text, jsonparse.Options{
				Name:    name,
				MaxRows: s.cfg.MaxRows,
			})}, nil
		default:
			return []*dataset.Dataset{csv.ParseDataset(text, csv.Options{
				Name:    name,
				MaxRows: s.cfg.MaxRows,
			})}, nil
		}
	})
}

// run executes a parse closure, matches every produced dataset, and emits
// metrics for both stages.
func (s *Service) run(ctx context.Context, format Format, parse func() ([]*dataset.Dataset, error)) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tag := "format:" + string(format)

	start := time.Now()
	datasets, err := parse()
	s.cfg.Metrics.ObserveHistogram("ingest.parse.duration_ms", msSince(start), tag)
	if err != nil {
		return nil, err
	}

	warnings := 0
	for _, ds := range datasets {
		warnings += len(ds.Warnings)
	}
	s.cfg.Metrics.IncCounter("ingest.parse.datasets", float64(len(datasets)), tag)
	s.cfg.Metrics.IncCounter("ingest.parse.warnings", float64(warnings), tag)

	start = time.Now()
	suggestions := make([]match.SchemaMatchSuggestion, 0, len(datasets))
	for _, ds := range datasets {
		suggestions = append(suggestions, match.SuggestSchemaMatches(ds, s.cfg.Tables, s.cfg.Match))
	}
	s.cfg.Metrics.ObserveHistogram("ingest.match.duration_ms", msSince(start), tag)
	s.cfg.Metrics.IncCounter("ingest.match.suggestions", float64(len(suggestions)), tag)

	return &Result{Datasets: datasets, SchemaSuggestions: suggestions}, nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// noteEncoding records a conversion warning on each dataset when the input
// was not already UTF-8.
func noteEncoding(datasets []*dataset.Dataset, encoding string) {
	if encoding == "" || encoding == "utf-8" {
		return
	}
	for _, ds := range datasets {
		ds.Meta.SourceEncoding = encoding
		ds.Warn(fmt.Sprintf("input decoded from %s to UTF-8", encoding))
	}
}

// resolveFormat picks a parser for a raw upload. Extension beats MIME type
// beats content sniffing; unresolvable inputs fall back to CSV.
func resolveFormat(filename, mimeType string, buf []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv":
		return FormatCSV
	case ".xlsx", ".xlsm":
		return FormatExcel
	case ".xls":
		// HTML exports masquerading as .xls and legacy OLE workbooks share
		// this extension; only a ZIP container is a workbook the decoder can
		// open, so anything else is resolved from content.
		if isXLSX(buf) {
			return FormatExcel
		}
		return sniffBuffer(buf)
	case ".sql":
		return FormatSQL
	case ".html", ".htm":
		return FormatHTML
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	}

	switch mt, _, _ := strings.Cut(strings.ToLower(mimeType), ";"); strings.TrimSpace(mt) {
	case "text/csv", "text/tab-separated-values":
		return FormatCSV
	case "application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatExcel
	case "application/sql", "text/x-sql":
		return FormatSQL
	case "text/html":
		return FormatHTML
	case "application/json", "application/x-ndjson":
		return FormatJSON
	}

	if isXLSX(buf) {
		return FormatExcel
	}
	return sniffBuffer(buf)
}

// sniffBuffer content-sniffs a raw buffer's leading window.
func sniffBuffer(buf []byte) Format {
	window := buf
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	return sniffFormat(string(window))
}

// isXLSX recognizes the ZIP local-file-header magic; .xlsx workbooks are
// ZIP containers.
func isXLSX(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 'P' && buf[1] == 'K' && buf[2] == 3 && buf[3] == 4
}

// sniffFormat inspects textual content. SQL keywords and HTML tags are
// checked first; everything else falls through to CSV, which tolerates
// arbitrary text.
func sniffFormat(text string) Format {
	window := text
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	lower := strings.ToLower(window)

	// JSON documents announce themselves with their first byte; check before
	// keyword scans so SQL-looking strings inside JSON values cannot win.
	switch trimmed := strings.TrimLeft(lower, " \t\r\n"); {
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return FormatJSON
	}

	for _, kw := range []string{"create table", "insert into", "select "} {
		if strings.Contains(lower, kw) {
			return FormatSQL
		}
	}
	for _, tag := range []string{"<table", "<!doctype html", "<html"} {
		if strings.Contains(lower, tag) {
			return FormatHTML
		}
	}
	return FormatCSV
}
