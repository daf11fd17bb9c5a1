package csv

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"ingest/internal/dataset"
)

//
// DetectDelimiter
//

// TestDetectDelimiter verifies delimiter sniffing over the first line.
//
// This function is correctness-critical because a wrong delimiter silently
// produces a one-column dataset. Quoted spans must not contribute counts,
// and ties must deterministically fall to comma.
func TestDetectDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3\n", ','},
		{"tab", "a\tb\tc\n1\t2\t3\n", '\t'},
		{"semicolon", "a;b;c\n", ';'},
		{"pipe", "a|b|c\n", '|'},
		{"quoted separators ignored", "\"a;b;c\",x\n", ','},
		{"tie falls to comma", "a,b;c;d,e\n", ','},
		{"empty input", "", ','},
		{"first line only", "a,b\nx;y;z;w\n", ','},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectDelimiter(tt.in); got != tt.want {
				t.Fatalf("DetectDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

//
// readRecords
//

// TestReadRecordsQuoting verifies the tokenizer's quote handling: embedded
// delimiters, doubled-quote escapes, and embedded newlines inside quoted
// fields must all survive round-trip.
func TestReadRecordsQuoting(t *testing.T) {
	t.Parallel()

	in := "name,note\n" +
		"\"Smith, Jr.\",\"said \"\"hi\"\"\"\n" +
		"\"line1\nline2\",plain\n"

	records, truncated := readRecords(in, ',', 100)
	if truncated {
		t.Fatal("unexpected truncation")
	}
	want := [][]string{
		{"name", "note"},
		{"Smith, Jr.", `said "hi"`},
		{"line1\nline2", "plain"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("records = %#v, want %#v", records, want)
	}
}

// TestReadRecordsBlankLines verifies blank-line skipping and CRLF
// normalization.
func TestReadRecordsBlankLines(t *testing.T) {
	t.Parallel()

	records, _ := readRecords("a,b\r\n\r\n1,2\r\n   \r\n", ',', 100)
	want := [][]string{{"a", "b"}, {"1", "2"}}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("records = %#v, want %#v", records, want)
	}
}

// TestReadRecordsCap verifies that scanning stops at the record cap and
// reports remaining input.
func TestReadRecordsCap(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "row%d\n", i)
	}

	records, truncated := readRecords(b.String(), ',', 3)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if !truncated {
		t.Fatal("want truncated=true with remaining input")
	}
}

//
// ParseDataset
//

// TestParseDataset verifies the end-to-end CSV path: header detection,
// profiling, and metadata.
func TestParseDataset(t *testing.T) {
	t.Parallel()

	in := "First Name,Email,Amount\n" +
		"Alice,alice@x.org,10.50\n" +
		"Bob,bob@y.org,3\n"

	ds := ParseDataset(in, Options{Name: "donors"})

	if ds.SourceType != dataset.SourceCSV {
		t.Fatalf("sourceType = %v", ds.SourceType)
	}
	if ds.Meta.HasHeader == nil || !*ds.Meta.HasHeader {
		t.Fatal("header should be detected")
	}
	if ds.RowCount != 2 {
		t.Fatalf("rowCount = %d, want 2", ds.RowCount)
	}
	wantNames := []string{"First Name", "Email", "Amount"}
	if !reflect.DeepEqual(ds.ColumnNames, wantNames) {
		t.Fatalf("columnNames = %#v", ds.ColumnNames)
	}
	if got := ds.Columns[1].InferredType; got != dataset.TypeEmail {
		t.Fatalf("email column inferred %v", got)
	}
	if got := ds.Columns[2].InferredType; got != dataset.TypeNumber {
		t.Fatalf("amount column inferred %v", got)
	}
}

// TestParseDatasetHeaderless verifies synthesized names when the first row
// is data.
func TestParseDatasetHeaderless(t *testing.T) {
	t.Parallel()

	ds := ParseDataset("1,2\n3,4\n", Options{})
	if ds.Meta.HasHeader == nil || *ds.Meta.HasHeader {
		t.Fatal("numeric first row must not be a header")
	}
	if ds.RowCount != 2 {
		t.Fatalf("rowCount = %d, want 2", ds.RowCount)
	}
	if !reflect.DeepEqual(ds.ColumnNames, []string{"column_1", "column_2"}) {
		t.Fatalf("columnNames = %#v", ds.ColumnNames)
	}
}

// TestParseDatasetForcedHeader verifies both explicit header modes.
func TestParseDatasetForcedHeader(t *testing.T) {
	t.Parallel()

	in := "1,2\n3,4\n"

	yes := ParseDataset(in, Options{Header: HeaderYes})
	if yes.RowCount != 1 || yes.ColumnNames[0] != "1" {
		t.Fatalf("HeaderYes: rowCount=%d names=%v", yes.RowCount, yes.ColumnNames)
	}

	no := ParseDataset("a,b\nc,d\n", Options{Header: HeaderNo})
	if no.RowCount != 2 || no.ColumnNames[0] != "column_1" {
		t.Fatalf("HeaderNo: rowCount=%d names=%v", no.RowCount, no.ColumnNames)
	}
}

// TestParseDatasetEmpty verifies graceful degradation on unusable input:
// a dataset with a warning, never an error or panic.
func TestParseDatasetEmpty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "\n\n\n", "   \n  \n"} {
		ds := ParseDataset(in, Options{Name: "empty"})
		if ds.RowCount != 0 || len(ds.Columns) != 0 {
			t.Fatalf("input %q: rowCount=%d cols=%d", in, ds.RowCount, len(ds.Columns))
		}
		if len(ds.Warnings) == 0 {
			t.Fatalf("input %q: want a warning", in)
		}
	}
}

// TestParseDatasetTruncation verifies the row cap and the truncation flag,
// including the header-aware off-by-one.
func TestParseDatasetTruncation(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("id,name\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "%d,row%d\n", i, i)
	}

	ds := ParseDataset(b.String(), Options{MaxRows: 5})
	if ds.RowCount != 5 {
		t.Fatalf("rowCount = %d, want 5", ds.RowCount)
	}
	if !ds.Meta.Truncated {
		t.Fatal("want truncated=true")
	}

	exact := ParseDataset("id,name\n1,a\n2,b\n", Options{MaxRows: 5})
	if exact.Meta.Truncated {
		t.Fatal("input under cap must not be truncated")
	}
}

// TestParseDatasetRaggedRows verifies that a wide row mid-file grows the
// column set with positional names instead of dropping values.
func TestParseDatasetRaggedRows(t *testing.T) {
	t.Parallel()

	ds := ParseDataset("a,b\n1,2\n3,4,5\n", Options{Header: HeaderYes})
	want := []string{"a", "b", "column_3"}
	if !reflect.DeepEqual(ds.ColumnNames, want) {
		t.Fatalf("columnNames = %#v, want %#v", ds.ColumnNames, want)
	}
	if ds.Columns[2].NonEmptyCount != 1 {
		t.Fatalf("padded column nonEmpty = %d, want 1", ds.Columns[2].NonEmptyCount)
	}
}
