// Package sqlite implements schema introspection for SQLite.
//
// SQLite has no information_schema; table names come from sqlite_master and
// column details from PRAGMA table_info. Declared column types are free
// text under SQLite's affinity rules, so mapping is keyword-based.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"ingest/internal/schema"
	"ingest/internal/schema/introspect"
)

func init() {
	introspect.Register("sqlite", New)
}

// Introspector reads table definitions via sqlite_master and PRAGMAs.
type Introspector struct {
	db *sql.DB
}

// New opens the database file (or :memory:) at cfg.DSN.
func New(ctx context.Context, cfg introspect.Config) (introspect.Introspector, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Introspector{db: db}, nil
}

// Close releases the database handle.
func (in *Introspector) Close() { _ = in.db.Close() }

// Tables returns one registry entry per user table, columns in declaration
// order. Internal sqlite_* tables are excluded. A column is Required when
// it is NOT NULL with no default.
func (in *Introspector) Tables(ctx context.Context) ([]schema.Table, error) {
	names, err := in.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]schema.Table, 0, len(names))
	for _, name := range names {
		fields, err := in.tableFields(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, schema.Table{Table: name, Fields: fields})
	}
	return out, nil
}

func (in *Introspector) tableNames(ctx context.Context) ([]string, error) {
	rows, err := in.db.QueryContext(ctx, `
SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (in *Introspector) tableFields(ctx context.Context, table string) ([]schema.Field, error) {
	// PRAGMA table_info does not accept bound parameters; quote_ident-style
	// doubling keeps table names with quotes safe.
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`
	rows, err := in.db.QueryContext(ctx, `SELECT name, type, "notnull", dflt_value FROM pragma_table_info(`+quoted+`)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []schema.Field
	for rows.Next() {
		var (
			name, declType string
			notNull        int
			dflt           sql.NullString
		)
		if err := rows.Scan(&name, &declType, &notNull, &dflt); err != nil {
			return nil, err
		}
		fields = append(fields, schema.Field{
			Field:    name,
			Type:     mapType(declType),
			Required: notNull == 1 && !dflt.Valid,
		})
	}
	return fields, rows.Err()
}

// mapType reduces a declared SQLite column type to a registry type using
// keyword matching, in the spirit of SQLite's own affinity rules.
func mapType(declType string) string {
	t := strings.ToLower(declType)
	switch {
	case strings.Contains(t, "uuid"):
		return "uuid"
	case strings.Contains(t, "bool"):
		return "boolean"
	case strings.Contains(t, "datetime"), strings.Contains(t, "timestamp"):
		return "datetime"
	case strings.Contains(t, "date"):
		return "date"
	case strings.Contains(t, "money"), strings.Contains(t, "currency"):
		return "currency"
	case strings.Contains(t, "int"), strings.Contains(t, "real"),
		strings.Contains(t, "floa"), strings.Contains(t, "doub"),
		strings.Contains(t, "num"), strings.Contains(t, "dec"):
		return "number"
	default:
		return "string"
	}
}
