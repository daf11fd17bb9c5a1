package htmltab

import (
	"reflect"
	"testing"

	"ingest/internal/dataset"
)

//
// ParseDatasets
//

// TestParseDatasetsThHeader verifies the <th> header path and profiling.
func TestParseDatasetsThHeader(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<table>
  <tr><th>Name</th><th>Email</th></tr>
  <tr><td>Alice</td><td>alice@x.org</td></tr>
  <tr><td>Bob</td><td>bob@y.org</td></tr>
</table>
</body></html>`

	out, err := ParseDatasets(html, Options{Name: "export"})
	if err != nil {
		t.Fatalf("ParseDatasets: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d datasets, want 1", len(out))
	}

	ds := out[0]
	if ds.SourceType != dataset.SourceHTML {
		t.Fatalf("sourceType = %v", ds.SourceType)
	}
	if ds.Meta.HasHeader == nil || !*ds.Meta.HasHeader {
		t.Fatal("th row must be the header")
	}
	if !reflect.DeepEqual(ds.ColumnNames, []string{"Name", "Email"}) {
		t.Fatalf("columnNames = %#v", ds.ColumnNames)
	}
	if ds.RowCount != 2 {
		t.Fatalf("rowCount = %d, want 2", ds.RowCount)
	}
	if ds.Columns[1].InferredType != dataset.TypeEmail {
		t.Fatalf("email column inferred %v", ds.Columns[1].InferredType)
	}
}

// TestParseDatasetsHeuristicHeader verifies the fallback when the table has
// only <td> rows: the shared first-row heuristic decides.
func TestParseDatasetsHeuristicHeader(t *testing.T) {
	t.Parallel()

	html := `<table>
  <tr><td>name</td><td>amount</td></tr>
  <tr><td>Alice</td><td>10</td></tr>
</table>`

	out, err := ParseDatasets(html, Options{})
	if err != nil {
		t.Fatalf("ParseDatasets: %v", err)
	}
	ds := out[0]
	if ds.Meta.HasHeader == nil || !*ds.Meta.HasHeader {
		t.Fatal("textual first row should be detected as header")
	}
	if !reflect.DeepEqual(ds.ColumnNames, []string{"name", "amount"}) {
		t.Fatalf("columnNames = %#v", ds.ColumnNames)
	}
	if ds.RowCount != 1 {
		t.Fatalf("rowCount = %d, want 1", ds.RowCount)
	}
}

// TestParseDatasetsMultipleTables verifies one dataset per table in DOM
// order with caption-based labels.
func TestParseDatasetsMultipleTables(t *testing.T) {
	t.Parallel()

	html := `
<table><caption>People</caption><tr><th>a</th></tr><tr><td>1</td></tr></table>
<table><tr><th>b</th></tr><tr><td>2</td></tr></table>`

	out, err := ParseDatasets(html, Options{})
	if err != nil {
		t.Fatalf("ParseDatasets: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d datasets, want 2", len(out))
	}
	if out[0].Name != "People" {
		t.Fatalf("first label = %q, want caption", out[0].Name)
	}
	if out[1].Name != "table 2" {
		t.Fatalf("second label = %q", out[1].Name)
	}
}

// TestParseDatasetsNestedTable verifies that a nested table produces its
// own dataset and its rows do not leak into the parent.
func TestParseDatasetsNestedTable(t *testing.T) {
	t.Parallel()

	html := `
<table>
  <tr><th>outer</th></tr>
  <tr><td>
    <table><tr><th>inner</th></tr><tr><td>x</td></tr></table>
  </td></tr>
</table>`

	out, err := ParseDatasets(html, Options{})
	if err != nil {
		t.Fatalf("ParseDatasets: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d datasets, want 2", len(out))
	}

	outer, inner := out[0], out[1]
	if !reflect.DeepEqual(outer.ColumnNames, []string{"outer"}) {
		t.Fatalf("outer columns = %#v", outer.ColumnNames)
	}
	if outer.RowCount != 1 {
		t.Fatalf("outer rowCount = %d, want 1", outer.RowCount)
	}
	if !reflect.DeepEqual(inner.ColumnNames, []string{"inner"}) {
		t.Fatalf("inner columns = %#v", inner.ColumnNames)
	}
	if inner.RowCount != 1 {
		t.Fatalf("inner rowCount = %d, want 1", inner.RowCount)
	}
}

// TestParseDatasetsNoTables verifies the degraded single-dataset shape.
func TestParseDatasetsNoTables(t *testing.T) {
	t.Parallel()

	out, err := ParseDatasets("<p>just text</p>", Options{Name: "page"})
	if err != nil {
		t.Fatalf("ParseDatasets: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d datasets, want 1", len(out))
	}
	if len(out[0].Warnings) == 0 {
		t.Fatal("want a warning about missing tables")
	}
	if out[0].RowCount != 0 || len(out[0].Columns) != 0 {
		t.Fatalf("degraded shape: %+v", out[0])
	}
}

// TestParseDatasetsTruncation verifies the per-table row cap.
func TestParseDatasetsTruncation(t *testing.T) {
	t.Parallel()

	html := `<table><tr><th>n</th></tr>
<tr><td>1</td></tr><tr><td>2</td></tr><tr><td>3</td></tr></table>`

	out, err := ParseDatasets(html, Options{MaxRows: 2})
	if err != nil {
		t.Fatalf("ParseDatasets: %v", err)
	}
	ds := out[0]
	if ds.RowCount != 2 {
		t.Fatalf("rowCount = %d, want 2", ds.RowCount)
	}
	if !ds.Meta.Truncated {
		t.Fatal("want truncated=true")
	}
}
