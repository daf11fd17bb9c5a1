// Package sqltext extracts table shapes from raw SQL dumps.
//
// This is a best-effort extractor of CREATE TABLE / INSERT / SELECT shapes,
// not a SQL parser. Three independent passes run over the comment-stripped
// text; anything the passes do not recognize is ignored rather than
// rejected, and a fully unrecognized input degrades to a single empty
// dataset with a diagnostic warning.
//
// All scanning threads explicit offsets: match positions come from
// index-returning regexp calls anchored at a caller-held cursor, and the
// tuple/body scanners are plain loops over a position. Nothing here relies
// on hidden iteration state, so every pass is restartable and testable in
// isolation.
package sqltext

import (
	"fmt"
	"regexp"
	"strings"

	"ingest/internal/dataset"
)

// DefaultMaxSampleRows bounds how many INSERT tuples are materialized per
// dataset when Options.MaxSampleRows is unset.
const DefaultMaxSampleRows = 50

// Options control SQL extraction.
type Options struct {
	// Name is the base label for produced datasets; the table name and
	// statement type are appended per dataset.
	Name string
	// MaxSampleRows caps materialized INSERT rows; 0 means
	// DefaultMaxSampleRows. The total tuple count is always recorded in
	// meta.insertRowCount even when sampling stops early.
	MaxSampleRows int
}

var (
	identPat = `[\x60"\[]?[\w.$]+[\x60"\]]?`

	createTableRe = regexp.MustCompile(`(?is)\bcreate\s+table\s+(?:if\s+not\s+exists\s+)?(` + identPat + `)\s*\(`)

	insertColsRe = regexp.MustCompile(`(?is)\binsert\s+(?:ignore\s+)?into\s+(` + identPat + `)\s*\(([^)]*)\)\s*values\s*\(`)
	insertBareRe = regexp.MustCompile(`(?is)\binsert\s+(?:ignore\s+)?into\s+(` + identPat + `)\s+values\s*\(`)

	selectRe = regexp.MustCompile(`(?is)\bselect\s+(.*?)\s+from\s+(` + identPat + `)`)

	asAliasRe = regexp.MustCompile(`(?i)\s+as\s+(` + identPat + `)\s*$`)
)

// constraint-leading keywords whose CREATE TABLE body items are not columns.
var constraintKeywords = map[string]struct{}{
	"constraint": {},
	"primary":    {},
	"foreign":    {},
	"unique":     {},
	"check":      {},
	"key":        {},
	"index":      {},
}

// ParseDatasets extracts zero or more datasets from sql.
//
// Behavior:
//   - CREATE TABLE yields one zero-row dataset per table (columns only).
//   - INSERT yields one dataset per statement with up to MaxSampleRows
//     materialized value rows; column-less INSERTs inherit columns from a
//     prior CREATE TABLE of the same table in the same text.
//   - SELECT yields one zero-row dataset describing the output shape.
//   - Unrecognized input yields a single empty dataset with a warning.
//
// This function never returns an error; every recoverable ambiguity becomes
// a dataset warning.
func ParseDatasets(sql string, opt Options) []*dataset.Dataset {
	maxRows := opt.MaxSampleRows
	if maxRows <= 0 {
		maxRows = DefaultMaxSampleRows
	}

	cleaned := stripComments(sql)

	var out []*dataset.Dataset

	createCols := map[string][]string{}
	out = append(out, extractCreates(cleaned, opt.Name, createCols)...)
	out = append(out, extractInserts(cleaned, opt.Name, maxRows, createCols)...)
	out = append(out, extractSelects(cleaned, opt.Name)...)

	if len(out) == 0 {
		ds := emptyDataset(opt.Name, "")
		ds.Warn("no CREATE TABLE, INSERT, or SELECT shapes recognized in input")
		out = append(out, ds)
	}
	return out
}

// stripComments removes -- line comments and /* */ block comments while
// leaving single-quoted string literals intact.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inString:
			b.WriteByte(c)
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					b.WriteByte(s[i+1])
					i++
					continue
				}
				inString = false
			}
		case c == '\'':
			inString = true
			b.WriteByte(c)
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++ // skip the trailing '/'
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// extractCreates locates every CREATE TABLE, splits its body on top-level
// commas, and records column order into createCols for later INSERT
// inheritance.
func extractCreates(s, name string, createCols map[string][]string) []*dataset.Dataset {
	var out []*dataset.Dataset

	cursor := 0
	for cursor < len(s) {
		loc := createTableRe.FindStringSubmatchIndex(s[cursor:])
		if loc == nil {
			break
		}
		table := unquoteIdent(s[cursor+loc[2] : cursor+loc[3]])
		bodyStart := cursor + loc[1] // just past the opening paren
		body, end := scanBalanced(s, bodyStart)
		cursor = end

		var cols []string
		for _, item := range dataset.SplitTopLevel(body) {
			col, ok := columnFromBodyItem(item)
			if ok {
				cols = append(cols, col)
			}
		}
		createCols[strings.ToLower(table)] = cols

		ds := newSQLDataset(name, table, "create_table", cols, nil)
		if len(cols) == 0 {
			ds.Warn(fmt.Sprintf("no columns recognized in CREATE TABLE %s", table))
		}
		out = append(out, ds)
	}
	return out
}

// columnFromBodyItem returns the first token of a CREATE TABLE body item as
// a column name, rejecting constraint clauses.
func columnFromBodyItem(item string) (string, bool) {
	item = strings.TrimSpace(item)
	if item == "" {
		return "", false
	}
	first := item
	if i := strings.IndexAny(item, " \t\n("); i >= 0 {
		first = item[:i]
	}
	if _, isConstraint := constraintKeywords[strings.ToLower(first)]; isConstraint {
		return "", false
	}
	col := unquoteIdent(first)
	if col == "" {
		return "", false
	}
	return col, true
}

// extractInserts runs both INSERT forms. Column-list matches run first and
// their offsets guard the column-less pass against double counting: a bare
// match whose "VALUES" actually belongs to a column-list statement starts at
// the same offset and is skipped.
func extractInserts(s, name string, maxRows int, createCols map[string][]string) []*dataset.Dataset {
	var out []*dataset.Dataset
	claimed := map[int]struct{}{}

	cursor := 0
	for cursor < len(s) {
		loc := insertColsRe.FindStringSubmatchIndex(s[cursor:])
		if loc == nil {
			break
		}
		start := cursor + loc[0]
		claimed[start] = struct{}{}

		table := unquoteIdent(s[cursor+loc[2] : cursor+loc[3]])
		colList := s[cursor+loc[4]:cursor+loc[5]]

		var cols []string
		for _, c := range dataset.SplitTopLevel(colList) {
			if c = unquoteIdent(c); c != "" {
				cols = append(cols, c)
			}
		}

		// loc[1] is just past the first tuple's opening paren.
		rows, total, end := scanTuples(s, cursor+loc[1]-1, maxRows)
		cursor = end

		ds := newSQLDataset(name, table, "insert", cols, rows)
		ds.Meta.InsertRowCount = total
		if total > len(rows) {
			ds.Meta.Truncated = true
		}
		out = append(out, ds)
	}

	cursor = 0
	for cursor < len(s) {
		loc := insertBareRe.FindStringSubmatchIndex(s[cursor:])
		if loc == nil {
			break
		}
		start := cursor + loc[0]
		if _, dup := claimed[start]; dup {
			cursor = cursor + loc[1]
			continue
		}

		table := unquoteIdent(s[cursor+loc[2] : cursor+loc[3]])
		rows, total, end := scanTuples(s, cursor+loc[1]-1, maxRows)
		cursor = end

		cols := createCols[strings.ToLower(table)]
		ds := newSQLDataset(name, table, "insert", cols, rows)
		ds.Meta.InsertRowCount = total
		if total > len(rows) {
			ds.Meta.Truncated = true
		}
		if len(cols) == 0 {
			ds.RowCount = 0
			ds.SampleRows = [][]string{}
			ds.Columns = []*dataset.ColumnProfile{}
			ds.ColumnNames = []string{}
			ds.Warn(fmt.Sprintf("INSERT INTO %s has no column list and no prior CREATE TABLE; columns unknown", table))
		}
		out = append(out, ds)
	}

	return out
}

// extractSelects extracts output column names from each SELECT list.
func extractSelects(s, name string) []*dataset.Dataset {
	var out []*dataset.Dataset

	cursor := 0
	for cursor < len(s) {
		loc := selectRe.FindStringSubmatchIndex(s[cursor:])
		if loc == nil {
			break
		}
		list := s[cursor+loc[2] : cursor+loc[3]]
		table := unquoteIdent(s[cursor+loc[4]:cursor+loc[5]])
		cursor = cursor + loc[1]

		var cols []string
		for _, expr := range dataset.SplitTopLevel(list) {
			if col := selectOutputName(expr); col != "" {
				cols = append(cols, col)
			}
		}
		if len(cols) == 0 {
			continue
		}

		ds := newSQLDataset(name, table, "select", cols, nil)
		out = append(out, ds)
	}
	return out
}

// selectOutputName resolves one SELECT list expression to an output column
// name: an explicit AS alias wins, then a trailing bare identifier, then the
// last dot-segment of a qualified reference. "*" produces no column.
func selectOutputName(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "*" || strings.HasSuffix(expr, ".*") {
		return ""
	}

	if m := asAliasRe.FindStringSubmatch(expr); m != nil {
		return unquoteIdent(m[1])
	}

	// Trailing bare identifier after an expression ("count(*) total").
	if i := strings.LastIndexAny(expr, " \t\n"); i >= 0 {
		tail := expr[i+1:]
		if isIdent(tail) {
			return unquoteIdent(tail)
		}
		return ""
	}

	// Qualified reference: keep the last dot segment.
	if i := strings.LastIndexByte(expr, '.'); i >= 0 {
		expr = expr[i+1:]
	}
	if isIdent(expr) {
		return unquoteIdent(expr)
	}
	return ""
}

// scanBalanced returns the text between the paren opened just before start
// and its matching close, honoring nested parens and quoted spans. The
// second return value is the offset just past the closing paren (or the end
// of input when unbalanced).
func scanBalanced(s string, start int) (string, int) {
	depth := 1
	inSingle, inDouble := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return s[start:i], i + 1
			}
		}
	}
	return s[start:], len(s)
}

// scanTuples parses "(...), (...), ..." starting at the offset of the first
// tuple's opening paren. It materializes up to maxRows value rows but keeps
// counting tuples to the end of the statement, so callers can report the
// true tuple count alongside the sampled rows.
func scanTuples(s string, start int, maxRows int) (rows [][]string, total int, end int) {
	i := start
	for i < len(s) {
		// Expect an opening paren (skipping whitespace).
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
			i++
		}
		if i >= len(s) || s[i] != '(' {
			break
		}
		body, next := scanBalanced(s, i+1)
		i = next
		total++

		if len(rows) < maxRows {
			parts := dataset.SplitTopLevel(body)
			row := make([]string, len(parts))
			for j, p := range parts {
				row[j] = unquoteValue(p)
			}
			rows = append(rows, row)
		}

		// Continue only across a top-level comma between tuples.
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
			i++
		}
		if i < len(s) && s[i] == ',' {
			i++
			continue
		}
		break
	}
	return rows, total, i
}

// unquoteValue converts a SQL literal to its dataset string form. The
// literal NULL (any case) maps to the empty string, which the profiler
// treats as nullish.
func unquoteValue(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "null") {
		return ""
	}
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		inner := v[1 : len(v)-1]
		return strings.ReplaceAll(inner, "''", "'")
	}
	// N'...' and similar prefixed strings.
	if len(v) >= 3 && (v[0] == 'N' || v[0] == 'n') && v[1] == '\'' && v[len(v)-1] == '\'' {
		inner := v[2 : len(v)-1]
		return strings.ReplaceAll(inner, "''", "'")
	}
	return v
}

func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`\"[]")
	return s
}

func isIdent(s string) bool {
	s = strings.Trim(s, "`\"[]")
	if s == "" {
		return false
	}
	for _, r := range s {
		ok := r == '_' || r == '$' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return false
		}
	}
	return true
}

func newSQLDataset(name, table, stmt string, cols []string, rows [][]string) *dataset.Dataset {
	var label string
	if name != "" {
		label = fmt.Sprintf("%s (%s %s)", name, table, stmt)
	} else {
		label = fmt.Sprintf("%s (%s)", table, stmt)
	}

	ds := &dataset.Dataset{
		SourceType:  dataset.SourceSQL,
		Name:        label,
		ColumnNames: append([]string(nil), cols...),
		RowCount:    len(rows),
		SampleRows:  dataset.SampleOf(rows),
		Meta: dataset.Meta{
			Table:         table,
			StatementType: stmt,
		},
	}
	if ds.ColumnNames == nil {
		ds.ColumnNames = []string{}
	}
	if ds.SampleRows == nil {
		ds.SampleRows = [][]string{}
	}

	profiles, warns := dataset.BuildColumns(ds.ColumnNames, rows)
	ds.Columns = profiles
	ds.Warnings = append(ds.Warnings, warns...)
	return ds
}

func emptyDataset(name, table string) *dataset.Dataset {
	label := name
	if label == "" {
		label = "sql"
	}
	return &dataset.Dataset{
		SourceType:  dataset.SourceSQL,
		Name:        label,
		ColumnNames: []string{},
		SampleRows:  [][]string{},
		Columns:     []*dataset.ColumnProfile{},
		Meta:        dataset.Meta{Table: table},
	}
}
