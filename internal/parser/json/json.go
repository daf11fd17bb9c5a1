// Package json parses JSON uploads into the normalized dataset shape.
//
// Accepted shapes, decided from the first token:
//   - a root array of objects: each object becomes a row
//   - an envelope object: the first field whose value is an array of objects
//     supplies the rows, the remaining fields are skipped
//   - a single object: one row
//   - trailing JSONL objects after the root value: appended as extra rows
//
// Column names are object keys in first-seen order across the sampled rows.
// The decoder is token-driven so key order survives and envelope payloads
// stream without materializing the whole document.
package json

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ingest/internal/dataset"
)

// DefaultMaxRows bounds how many rows are materialized when Options.MaxRows
// is unset.
const DefaultMaxRows = 1000

// Options control JSON parsing.
type Options struct {
	// Name is the human label for the produced dataset.
	Name string
	// MaxRows caps materialized rows; 0 means DefaultMaxRows.
	MaxRows int
	// ArrayJoinSeparator flattens arrays of strings into one cell value.
	// Empty means ",".
	ArrayJoinSeparator string
}

// ParseDataset parses input into a single Dataset.
//
// Content-shaped problems never fail the parse: a malformed document yields
// the rows decoded so far plus a warning, and non-object array elements are
// skipped with one warning each.
func ParseDataset(input string, opt Options) *dataset.Dataset {
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	sep := strings.TrimSpace(opt.ArrayJoinSeparator)
	if sep == "" {
		sep = ","
	}

	ds := &dataset.Dataset{
		SourceType: dataset.SourceJSON,
		Name:       opt.Name,
	}

	c := &collector{
		ds:       ds,
		sep:      sep,
		maxRows:  maxRows,
		colIndex: map[string]int{},
	}

	dec := json.NewDecoder(strings.NewReader(input))
	dec.UseNumber()

	if err := parseRoot(dec, c, ds); err != nil && err != errRowLimit {
		ds.Warn("json parse stopped early: " + err.Error())
	}
	if c.truncated {
		ds.Meta.Truncated = true
	}

	c.finish()
	if ds.RowCount == 0 && len(ds.ColumnNames) == 0 {
		ds.Warn("no rows parsed from input")
	}
	return ds
}

// errRowLimit aborts the token walk once the row cap is hit. It is a control
// signal, not a parse failure.
var errRowLimit = fmt.Errorf("row limit reached")

// collector accumulates ordered rows while the column set is still growing,
// then aligns everything at the end.
type collector struct {
	ds       *dataset.Dataset
	sep      string
	maxRows  int
	cols     []string
	colIndex map[string]int
	rows     []map[string]string

	truncated bool
}

func (c *collector) emit(keys []string, obj map[string]any) error {
	if len(c.rows) >= c.maxRows {
		c.truncated = true
		return errRowLimit
	}

	row := make(map[string]string, len(keys))
	for _, k := range keys {
		if _, seen := c.colIndex[k]; !seen {
			c.colIndex[k] = len(c.cols)
			c.cols = append(c.cols, k)
		}
		row[k] = flattenValue(obj[k], c.sep)
	}
	c.rows = append(c.rows, row)
	return nil
}

func (c *collector) finish() {
	rows := make([][]string, len(c.rows))
	for i, m := range c.rows {
		aligned := make([]string, len(c.cols))
		for j, col := range c.cols {
			aligned[j] = m[col]
		}
		rows[i] = aligned
	}

	c.ds.ColumnNames = c.cols
	if c.ds.ColumnNames == nil {
		c.ds.ColumnNames = []string{}
	}
	c.ds.RowCount = len(rows)
	c.ds.SampleRows = dataset.SampleOf(rows)

	cols, warns := dataset.BuildColumns(c.cols, rows)
	c.ds.Columns = cols
	c.ds.Warnings = append(c.ds.Warnings, warns...)
}

func parseRoot(dec *json.Decoder, c *collector, ds *dataset.Dataset) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read first token: %w", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("unsupported root token %v (want object or array)", tok)
	}

	switch d {
	case '[':
		if err := streamArrayOfObjects(dec, c); err != nil {
			return err
		}
		if end, err := dec.Token(); err != nil {
			return fmt.Errorf("read array end: %w", err)
		} else if end != json.Delim(']') {
			return fmt.Errorf("expected array end, got %v", end)
		}
		return streamTrailingObjects(dec, c)

	case '{':
		streamed, keys, single, envKey, err := parseEnvelopeOrSingle(dec, c)
		if streamed {
			ds.Meta.EnvelopeKey = envKey
		}
		if err != nil {
			return err
		}
		if end, err := dec.Token(); err != nil {
			return fmt.Errorf("read object end: %w", err)
		} else if end != json.Delim('}') {
			return fmt.Errorf("expected object end, got %v", end)
		}
		if !streamed && len(keys) > 0 {
			if err := c.emit(keys, single); err != nil {
				return err
			}
		}
		return streamTrailingObjects(dec, c)

	default:
		return fmt.Errorf("unsupported root delimiter %q", d)
	}
}

// streamArrayOfObjects consumes elements of the current array ('[' already
// read). Object elements become rows; null and non-object elements are
// skipped with a warning.
func streamArrayOfObjects(dec *json.Decoder, c *collector) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read array element: %w", err)
		}
		if d, ok := tok.(json.Delim); ok && d == '{' {
			keys, obj, err := decodeObject(dec)
			if err != nil {
				return err
			}
			if err := c.emit(keys, obj); err != nil {
				return err
			}
			continue
		}
		if tok == nil {
			continue
		}
		c.ds.Warn(fmt.Sprintf("skipped non-object array element %v", tok))
		if err := skipValueFromFirstToken(dec, tok); err != nil {
			return err
		}
	}
	return nil
}

// streamTrailingObjects accepts JSONL-style objects after the root value.
func streamTrailingObjects(dec *json.Decoder, c *collector) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read trailing token: %w", err)
		}
		d, ok := tok.(json.Delim)
		if !ok || d != '{' {
			return fmt.Errorf("unexpected trailing token %v (want object)", tok)
		}
		keys, obj, err := decodeObject(dec)
		if err != nil {
			return err
		}
		if err := c.emit(keys, obj); err != nil {
			return err
		}
	}
}

// parseEnvelopeOrSingle walks a root object ('{' already read).
//
// The first field whose value is an array of objects wins: its elements are
// streamed as rows and the remaining fields are skipped without decoding.
// If no such field exists the accumulated fields form one row.
func parseEnvelopeOrSingle(dec *json.Decoder, c *collector) (streamed bool, keys []string, single map[string]any, envKey string, _ error) {
	single = make(map[string]any)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return false, nil, nil, "", fmt.Errorf("read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return false, nil, nil, "", fmt.Errorf("object key not a string (got %T)", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return false, nil, nil, "", fmt.Errorf("read value for %q: %w", key, err)
		}

		if d, ok := valTok.(json.Delim); ok && d == '[' {
			isObjects, arr, err := streamArrayOrMaterialize(dec, c)
			if err != nil {
				return isObjects, nil, nil, key, err
			}
			if isObjects {
				// Envelope found; skip the rest of the root object.
				for dec.More() {
					if _, err := dec.Token(); err != nil {
						return true, nil, nil, key, fmt.Errorf("skip envelope key: %w", err)
					}
					if err := skipNextValue(dec); err != nil {
						return true, nil, nil, key, err
					}
				}
				return true, nil, nil, key, nil
			}
			keys = append(keys, key)
			single[key] = arr
			continue
		}

		val, err := materializeValueFromFirstToken(dec, valTok)
		if err != nil {
			return false, nil, nil, "", err
		}
		keys = append(keys, key)
		single[key] = val
	}

	return false, keys, single, "", nil
}

// streamArrayOrMaterialize resolves the envelope ambiguity: the current
// array ('[' already read) is either rows (first element is an object) or a
// plain value. The first element decides; scalar arrays come back
// materialized so the caller can keep them as a cell value.
func streamArrayOrMaterialize(dec *json.Decoder, c *collector) (isObjects bool, arr []any, _ error) {
	first := true
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return false, nil, fmt.Errorf("read array element: %w", err)
		}

		if d, ok := tok.(json.Delim); ok && d == '{' {
			keys, obj, err := decodeObject(dec)
			if err != nil {
				return false, nil, err
			}
			if first {
				isObjects = true
			}
			if isObjects {
				if err := c.emit(keys, obj); err != nil {
					return true, nil, err
				}
			} else {
				arr = append(arr, obj)
			}
			first = false
			continue
		}

		if isObjects {
			// Rows mode already decided; tolerate stray non-objects.
			if tok != nil {
				c.ds.Warn(fmt.Sprintf("skipped non-object array element %v", tok))
			}
			if err := skipValueFromFirstToken(dec, tok); err != nil {
				return true, nil, err
			}
			first = false
			continue
		}

		val, err := materializeValueFromFirstToken(dec, tok)
		if err != nil {
			return false, nil, err
		}
		arr = append(arr, val)
		first = false
	}

	if end, err := dec.Token(); err != nil {
		return isObjects, nil, fmt.Errorf("read array end: %w", err)
	} else if end != json.Delim(']') {
		return isObjects, nil, fmt.Errorf("expected array end, got %v", end)
	}
	return isObjects, arr, nil
}

// decodeObject materializes the current object ('{' already read) while
// preserving key order.
func decodeObject(dec *json.Decoder) ([]string, map[string]any, error) {
	keys := make([]string, 0, 8)
	obj := make(map[string]any, 8)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("object key not a string (got %T)", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("read value for %q: %w", key, err)
		}
		val, err := materializeValueFromFirstToken(dec, valTok)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := obj[key]; !dup {
			keys = append(keys, key)
		}
		obj[key] = val
	}

	if end, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("read object end: %w", err)
	} else if end != json.Delim('}') {
		return nil, nil, fmt.Errorf("expected object end, got %v", end)
	}
	return keys, obj, nil
}

// materializeValueFromFirstToken builds a Go value for the current JSON
// value, given its first token has already been read.
func materializeValueFromFirstToken(dec *json.Decoder, tok json.Token) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch d {
	case '{':
		_, obj, err := decodeObject(dec)
		return obj, err

	case '[':
		var arr []any
		for dec.More() {
			vt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("read array element token: %w", err)
			}
			v, err := materializeValueFromFirstToken(dec, vt)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if end, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("read array end: %w", err)
		} else if end != json.Delim(']') {
			return nil, fmt.Errorf("expected array end, got %v", end)
		}
		return arr, nil

	default:
		return nil, fmt.Errorf("unexpected delimiter %q", d)
	}
}

// skipNextValue discards the next JSON value without materializing it.
func skipNextValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("skip value token: %w", err)
	}
	return skipValueFromFirstToken(dec, tok)
}

func skipValueFromFirstToken(dec *json.Decoder, tok json.Token) error {
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch d {
	case '{':
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return fmt.Errorf("skip object key: %w", err)
			}
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
		if end, err := dec.Token(); err != nil {
			return fmt.Errorf("skip object end: %w", err)
		} else if end != json.Delim('}') {
			return fmt.Errorf("expected object end, got %v", end)
		}
		return nil

	case '[':
		for dec.More() {
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
		if end, err := dec.Token(); err != nil {
			return fmt.Errorf("skip array end: %w", err)
		} else if end != json.Delim(']') {
			return fmt.Errorf("expected array end, got %v", end)
		}
		return nil

	default:
		return fmt.Errorf("unexpected delimiter %q", d)
	}
}

// flattenValue renders a decoded JSON value as one cell.
//
// Arrays of strings join with the configured separator; nested objects and
// mixed arrays fall back to their compact JSON encoding so no data is lost
// in the preview.
func flattenValue(v any, sep string) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()

	case []any:
		if len(t) == 0 {
			return ""
		}
		ss := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			s, ok := it.(string)
			if !ok {
				return compactJSON(v)
			}
			ss = append(ss, s)
		}
		return strings.Join(ss, sep)

	default:
		return compactJSON(v)
	}
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
