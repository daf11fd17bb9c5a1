// Package dataset defines the normalized output shape shared by every
// ingestion parser, plus the per-column profiling and type inference that
// parsers delegate to.
//
// The dataset package is responsible for:
//   - The Dataset and ColumnProfile value objects (JSON-ready, immutable
//     after construction)
//   - The closed set of inferred column type tags
//   - Per-column semantic type inference with confidence scoring
//   - Small shared helpers (clamp, safe ratios, name normalization,
//     top-level list splitting)
//
// Design constraints:
//   - Everything here is pure computation over in-memory values.
//   - Profiling is bounded: sample caps are enforced here so parsers cannot
//     accidentally materialize unbounded per-column state.
//   - Nothing in this package knows about target schemas or matching.
package dataset

// SourceType identifies which parser produced a Dataset.
type SourceType string

const (
	SourceCSV   SourceType = "csv"
	SourceExcel SourceType = "excel"
	SourceSQL   SourceType = "sql"
	SourceHTML  SourceType = "html"
	SourceJSON  SourceType = "json"
)

// ColumnType is the closed set of semantic column types the inferencer can
// produce. Code that branches on a ColumnType (the matcher's value-hint
// scorer, the type compatibility table) must switch over every tag.
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeNumber   ColumnType = "number"
	TypeCurrency ColumnType = "currency"
	TypeBoolean  ColumnType = "boolean"
	TypeDate     ColumnType = "date"
	TypeDateTime ColumnType = "datetime"
	TypeUUID     ColumnType = "uuid"
	TypeEmail    ColumnType = "email"
	TypePhone    ColumnType = "phone"
	TypeUnknown  ColumnType = "unknown"
)

// MaxSampleRows caps sampleRows and per-column sample values on every
// Dataset, regardless of source format.
const MaxSampleRows = 25

// ColumnProfile describes one source column: its raw and normalized name,
// the inferred semantic type, and bounded descriptive statistics.
//
// Invariant: NonEmptyCount + NullishCount == the owning Dataset's RowCount.
type ColumnProfile struct {
	Name           string `json:"name"`
	NormalizedName string `json:"normalizedName"`

	InferredType           ColumnType         `json:"inferredType"`
	InferredTypeConfidence float64            `json:"inferredTypeConfidence"`
	InferenceStats         map[ColumnType]int `json:"inferenceStats"`
	DetectedPatterns       []string           `json:"detectedPatterns"`

	NonEmptyCount int     `json:"nonEmptyCount"`
	NullishCount  int     `json:"nullishCount"`
	UniqueCount   int     `json:"uniqueCount"`
	NonEmptyRatio float64 `json:"nonEmptyRatio"`
	UniqueRatio   float64 `json:"uniqueRatio"`

	// Length statistics are computed over a bounded sample of non-empty
	// values, not the full column.
	MinLength int     `json:"minLength"`
	MaxLength int     `json:"maxLength"`
	AvgLength float64 `json:"avgLength"`

	// Samples holds up to MaxSampleRows representative non-empty values.
	Samples []string `json:"samples"`
}

// Meta carries format-specific extras attached to a Dataset.
//
// Only the fields relevant to the producing parser are populated; the rest
// are omitted from JSON.
type Meta struct {
	// CSV
	Delimiter string `json:"delimiter,omitempty"`
	HasHeader *bool  `json:"hasHeader,omitempty"`

	// Excel
	SheetName string `json:"sheetName,omitempty"`

	// SQL
	Table         string `json:"table,omitempty"`
	StatementType string `json:"statementType,omitempty"`

	// JSON. EnvelopeKey names the object field whose array of objects
	// supplied the rows, when the root was an envelope object.
	EnvelopeKey string `json:"envelopeKey,omitempty"`

	// InsertRowCount is the total number of INSERT tuples observed in the
	// source text, including tuples beyond the materialized sample. RowCount
	// on the Dataset stays the materialized count; this field exists so the
	// two are never conflated.
	InsertRowCount int `json:"insertRowCount,omitempty"`

	// Truncated indicates parsing stopped at a row cap before the source
	// was exhausted.
	Truncated bool `json:"truncated,omitempty"`

	// SourceEncoding records a charset conversion applied before parsing
	// (e.g. "utf-16le", "windows-1252"). Empty for plain UTF-8 input.
	SourceEncoding string `json:"sourceEncoding,omitempty"`
}

// Dataset is the normalized output of any parser: one parsed table, sheet,
// or statement shape.
//
// Invariants:
//   - len(Columns) == len(ColumnNames)
//   - len(SampleRows) == min(RowCount, MaxSampleRows)
//   - ColumnNames preserves source order and may contain duplicates;
//     normalized names on Columns are de-duplicated by suffixing.
type Dataset struct {
	SourceType  SourceType       `json:"sourceType"`
	Name        string           `json:"name"`
	ColumnNames []string         `json:"columnNames"`
	RowCount    int              `json:"rowCount"`
	SampleRows  [][]string       `json:"sampleRows"`
	Columns     []*ColumnProfile `json:"columns"`
	Warnings    []string         `json:"warnings"`
	Meta        Meta             `json:"meta"`
}

// Warn appends a non-fatal diagnostic to the dataset.
func (d *Dataset) Warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}
