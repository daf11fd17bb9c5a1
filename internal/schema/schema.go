// Package schema holds the target-schema registry that ingestion previews
// are matched against, plus the type-compatibility scoring between inferred
// column types and registry field types.
//
// The registry is read-only configuration from the matcher's point of view:
// it can come from the built-in default catalog, a JSON file, or live
// database introspection (see the introspect subpackages). The matcher
// never mutates it.
package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"ingest/internal/dataset"
)

// Field is one target column in a registry table.
type Field struct {
	Field    string   `json:"field"`
	Type     string   `json:"type"`
	Required bool     `json:"required,omitempty"`
	Aliases  []string `json:"aliases,omitempty"`
}

// Table is one target table in the registry.
type Table struct {
	Table   string   `json:"table"`
	Label   string   `json:"label,omitempty"`
	Fields  []Field  `json:"fields"`
	Aliases []string `json:"aliases,omitempty"`
}

// Load decodes a registry from JSON and validates its shape.
func Load(r io.Reader) ([]Table, error) {
	var tables []Table
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tables); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if err := Validate(tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// LoadFile reads a registry JSON file.
func LoadFile(path string) ([]Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks registry invariants: non-empty table and field names,
// at least one field per table, and no duplicate normalized table names.
func Validate(tables []Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("registry has no tables")
	}
	seen := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		norm := dataset.NormalizeName(t.Table)
		if norm == "" {
			return fmt.Errorf("registry table with empty name")
		}
		if _, dup := seen[norm]; dup {
			return fmt.Errorf("registry table %q duplicated", t.Table)
		}
		seen[norm] = struct{}{}

		if len(t.Fields) == 0 {
			return fmt.Errorf("registry table %q has no fields", t.Table)
		}
		for _, f := range t.Fields {
			if dataset.NormalizeName(f.Field) == "" {
				return fmt.Errorf("registry table %q has a field with empty name", t.Table)
			}
		}
	}
	return nil
}

// TypeCompatibilityScore rates how well an inferred column type fits a
// registry field type, in [0,1].
//
// The switch over ColumnType is exhaustive on purpose: adding a new
// inferred type must force a decision here.
func TypeCompatibilityScore(inferred dataset.ColumnType, fieldType string) float64 {
	ft := dataset.NormalizeName(fieldType)

	// String-ish targets accept everything to some degree; they are the
	// fallback column type of most schemas.
	stringTarget := ft == "string" || ft == "text" || ft == "varchar"

	switch inferred {
	case dataset.TypeString:
		if stringTarget {
			return 1
		}
		switch ft {
		case "email", "phone", "uuid", "id":
			return 0.4
		case "date", "datetime", "timestamp", "number", "currency", "boolean":
			return 0.2
		}
		return 0.3
	case dataset.TypeNumber:
		switch ft {
		case "number", "integer", "float", "decimal":
			return 1
		case "currency":
			return 0.9
		case "id":
			return 0.7
		}
		if stringTarget {
			return 0.5
		}
		return 0.1
	case dataset.TypeCurrency:
		switch ft {
		case "currency":
			return 1
		case "number", "decimal", "float":
			return 0.9
		}
		if stringTarget {
			return 0.4
		}
		return 0.1
	case dataset.TypeBoolean:
		switch ft {
		case "boolean", "bool":
			return 1
		}
		if stringTarget {
			return 0.4
		}
		return 0.1
	case dataset.TypeDate:
		switch ft {
		case "date":
			return 1
		case "datetime", "timestamp":
			return 0.85
		}
		if stringTarget {
			return 0.4
		}
		return 0.1
	case dataset.TypeDateTime:
		switch ft {
		case "datetime", "timestamp":
			return 1
		case "date":
			return 0.85
		}
		if stringTarget {
			return 0.4
		}
		return 0.1
	case dataset.TypeUUID:
		switch ft {
		case "uuid", "id":
			return 1
		}
		if stringTarget {
			return 0.6
		}
		return 0.1
	case dataset.TypeEmail:
		switch ft {
		case "email":
			return 1
		}
		if stringTarget {
			return 0.7
		}
		return 0.1
	case dataset.TypePhone:
		switch ft {
		case "phone":
			return 1
		}
		if stringTarget {
			return 0.7
		}
		return 0.1
	case dataset.TypeUnknown:
		return 0.3
	}
	return 0.3
}
