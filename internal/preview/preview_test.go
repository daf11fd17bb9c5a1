package preview

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"unicode/utf16"

	"ingest/internal/dataset"
	"ingest/internal/metrics"
)

// recordingBackend captures metric calls for assertions.
type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	observed map[string]int
}

var _ metrics.Backend = (*recordingBackend)(nil)

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{
		counters: map[string]float64{},
		observed: map[string]int{},
	}
}

func (b *recordingBackend) IncCounter(name string, delta float64, _ ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[name] += delta
}

func (b *recordingBackend) ObserveHistogram(name string, _ float64, _ ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observed[name]++
}

func (b *recordingBackend) Flush(context.Context) error { return nil }
func (b *recordingBackend) Close(context.Context) error { return nil }

//
// format resolution
//

// TestResolveFormat verifies the resolution ladder: extension, then MIME
// type, then content sniffing, then the CSV fallback.
func TestResolveFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		mime     string
		buf      string
		want     Format
	}{
		{"csv extension", "donors.csv", "", "", FormatCSV},
		{"tsv extension", "donors.tsv", "", "", FormatCSV},
		{"xlsx extension", "book.XLSX", "", "", FormatExcel},
		{"xls with zip magic is excel", "book.xls", "", "PK\x03\x04rest", FormatExcel},
		{"xls html masquerade resolves to html", "export.xls", "application/vnd.ms-excel",
			"<html><table><tr><td>x</td></tr></table></html>", FormatHTML},
		{"xls without workbook magic falls back to csv", "data.xls", "", "a,b\n1,2\n", FormatCSV},
		{"sql extension", "dump.sql", "", "", FormatSQL},
		{"html extension", "export.htm", "", "", FormatHTML},
		{"extension beats mime", "dump.sql", "text/csv", "", FormatSQL},
		{"mime csv", "noext", "text/csv; charset=utf-8", "", FormatCSV},
		{"mime excel", "noext", "application/vnd.ms-excel", "", FormatExcel},
		{"mime html", "noext", "text/html", "", FormatHTML},
		{"json extension", "rows.json", "", "", FormatJSON},
		{"jsonl extension", "rows.ndjson", "", "", FormatJSON},
		{"mime json", "noext", "application/json", "", FormatJSON},
		{"sniff sql", "", "", "CREATE TABLE t (a INT);", FormatSQL},
		{"sniff insert", "", "", "insert into t values (1);", FormatSQL},
		{"sniff html", "", "", "<!DOCTYPE html><table>", FormatHTML},
		{"sniff json array", "", "", "  [{\"a\": 1}]", FormatJSON},
		{"sniff json object beats sql keywords", "", "", `{"q": "select * from t"}`, FormatJSON},
		{"sniff falls back to csv", "", "", "a,b,c\n1,2,3\n", FormatCSV},
		{"zip magic is excel", "", "", "PK\x03\x04rest", FormatExcel},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := resolveFormat(tt.filename, tt.mime, []byte(tt.buf))
			if got != tt.want {
				t.Fatalf("resolveFormat(%q, %q, ..) = %q, want %q",
					tt.filename, tt.mime, got, tt.want)
			}
		})
	}
}

//
// FromText / FromTextAuto
//

// TestFromTextValidation verifies the explicit-format contract: missing
// formats and binary-only formats are caller errors.
func TestFromTextValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(Config{})
	ctx := context.Background()

	if _, err := svc.FromText(ctx, TextRequest{Text: "a,b"}); err == nil {
		t.Fatal("missing format must error")
	}
	if _, err := svc.FromText(ctx, TextRequest{Text: "x", Format: FormatExcel}); err == nil {
		t.Fatal("excel text must error")
	}
	if _, err := svc.FromText(ctx, TextRequest{Text: "x", Format: Format("parquet")}); err == nil {
		t.Fatal("unknown format must error")
	}
	if _, err := svc.FromText(ctx, TextRequest{Text: "a,b\n1,2\n", Format: FormatCSV}); err != nil {
		t.Fatalf("valid csv request: %v", err)
	}
}

// TestFromTextAutoSQL verifies content sniffing on pasted SQL.
func TestFromTextAutoSQL(t *testing.T) {
	t.Parallel()

	svc := NewService(Config{})
	res, err := svc.FromTextAuto(context.Background(), TextRequest{
		Text: "CREATE TABLE donors (id INT, email TEXT);",
		Name: "paste",
	})
	if err != nil {
		t.Fatalf("FromTextAuto: %v", err)
	}
	if len(res.Datasets) != 1 {
		t.Fatalf("got %d datasets, want 1", len(res.Datasets))
	}
	if res.Datasets[0].SourceType != dataset.SourceSQL {
		t.Fatalf("sourceType = %v, want sql", res.Datasets[0].SourceType)
	}
	if len(res.SchemaSuggestions) != len(res.Datasets) {
		t.Fatal("suggestions must be index-aligned with datasets")
	}
}

// TestFromTextAutoJSON verifies a pasted JSON array flows through the JSON
// parser.
func TestFromTextAutoJSON(t *testing.T) {
	t.Parallel()

	svc := NewService(Config{})
	res, err := svc.FromTextAuto(context.Background(), TextRequest{
		Text: `[{"email": "a@x.org", "amount": "10"}, {"email": "b@y.org", "amount": "20"}]`,
		Name: "paste",
	})
	if err != nil {
		t.Fatalf("FromTextAuto: %v", err)
	}
	ds := res.Datasets[0]
	if ds.SourceType != dataset.SourceJSON {
		t.Fatalf("sourceType = %v, want json", ds.SourceType)
	}
	if ds.RowCount != 2 || len(ds.ColumnNames) != 2 {
		t.Fatalf("shape = %d rows x %d cols, want 2x2", ds.RowCount, len(ds.ColumnNames))
	}
}

//
// FromBuffer
//

// TestFromBufferUTF16 verifies that a UTF-16LE BOM'd upload parses to the
// same dataset shape as its UTF-8 form, with the conversion recorded.
func TestFromBufferUTF16(t *testing.T) {
	t.Parallel()

	const text = "name,email\nAlice,alice@x.org\nBob,bob@y.org\n"

	units := append([]uint16{0xFEFF}, utf16.Encode([]rune(text))...)
	buf := make([]byte, 0, 2*len(units))
	for _, u := range units {
		buf = append(buf, byte(u), byte(u>>8))
	}

	svc := NewService(Config{})
	ctx := context.Background()

	utf16Res, err := svc.FromBuffer(ctx, BufferRequest{Buffer: buf, Filename: "d.csv"})
	if err != nil {
		t.Fatalf("utf16 parse: %v", err)
	}
	utf8Res, err := svc.FromBuffer(ctx, BufferRequest{Buffer: []byte(text), Filename: "d.csv"})
	if err != nil {
		t.Fatalf("utf8 parse: %v", err)
	}

	a, b := utf16Res.Datasets[0], utf8Res.Datasets[0]
	if !reflect.DeepEqual(a.ColumnNames, b.ColumnNames) {
		t.Fatalf("column names differ: %v vs %v", a.ColumnNames, b.ColumnNames)
	}
	if !reflect.DeepEqual(a.SampleRows, b.SampleRows) {
		t.Fatalf("rows differ: %v vs %v", a.SampleRows, b.SampleRows)
	}
	if a.Meta.SourceEncoding != "utf-16le" {
		t.Fatalf("sourceEncoding = %q, want utf-16le", a.Meta.SourceEncoding)
	}
	if b.Meta.SourceEncoding != "" {
		t.Fatalf("utf-8 input should record no conversion, got %q", b.Meta.SourceEncoding)
	}
	if len(a.Warnings) == 0 {
		t.Fatal("conversion should add a warning")
	}
}

// TestFromBufferName verifies dataset naming falls back to the filename
// stem.
func TestFromBufferName(t *testing.T) {
	t.Parallel()

	svc := NewService(Config{})
	res, err := svc.FromBuffer(context.Background(), BufferRequest{
		Buffer:   []byte("a,b\n1,2\n"),
		Filename: "/tmp/uploads/donors-2024.csv",
	})
	if err != nil {
		t.Fatalf("FromBuffer: %v", err)
	}
	if got := res.Datasets[0].Name; got != "donors-2024" {
		t.Fatalf("dataset name = %q, want filename stem", got)
	}
}

// TestMetricsEmission verifies the parse/match counters and duration
// histograms reach the configured backend.
func TestMetricsEmission(t *testing.T) {
	t.Parallel()

	backend := newRecordingBackend()
	svc := NewService(Config{Metrics: backend})

	_, err := svc.FromText(context.Background(), TextRequest{
		Text:   "a,b\n1,2\n",
		Format: FormatCSV,
	})
	if err != nil {
		t.Fatalf("FromText: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.counters["ingest.parse.datasets"] != 1 {
		t.Fatalf("parse.datasets = %v, want 1", backend.counters["ingest.parse.datasets"])
	}
	if backend.counters["ingest.match.suggestions"] != 1 {
		t.Fatalf("match.suggestions = %v, want 1", backend.counters["ingest.match.suggestions"])
	}
	for _, h := range []string{"ingest.parse.duration_ms", "ingest.match.duration_ms"} {
		if backend.observed[h] != 1 {
			t.Fatalf("histogram %s observed %d times, want 1", h, backend.observed[h])
		}
	}
}

// TestFromBufferCancelled verifies the ctx guard before parsing starts.
func TestFromBufferCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(Config{})
	if _, err := svc.FromBuffer(ctx, BufferRequest{Buffer: []byte("a,b\n")}); err == nil {
		t.Fatal("cancelled context must error")
	}
}
