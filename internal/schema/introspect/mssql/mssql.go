// Package mssql implements schema introspection for SQL Server.
package mssql

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"ingest/internal/schema"
	"ingest/internal/schema/introspect"
)

func init() {
	introspect.Register("mssql", New)
}

// Introspector reads table definitions from INFORMATION_SCHEMA.
type Introspector struct {
	db *sql.DB
}

// New opens a connection against cfg.DSN.
func New(ctx context.Context, cfg introspect.Config) (introspect.Introspector, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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

const columnsQuery = `
SELECT c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE,
       CASE WHEN c.COLUMN_DEFAULT IS NULL THEN 0 ELSE 1 END
FROM INFORMATION_SCHEMA.COLUMNS c
JOIN INFORMATION_SCHEMA.TABLES t
  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
WHERE t.TABLE_TYPE = 'BASE TABLE'
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

// Tables returns one registry entry per user table, columns in ordinal
// order. A column is Required when it is NOT NULL and has no default.
func (in *Introspector) Tables(ctx context.Context) ([]schema.Table, error) {
	rows, err := in.db.QueryContext(ctx, columnsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out     []schema.Table
		current *schema.Table
	)
	for rows.Next() {
		var (
			table, column, dataType, nullable string
			hasDefault                        int
		)
		if err := rows.Scan(&table, &column, &dataType, &nullable, &hasDefault); err != nil {
			return nil, err
		}

		if current == nil || current.Table != table {
			out = append(out, schema.Table{Table: table})
			current = &out[len(out)-1]
		}
		current.Fields = append(current.Fields, schema.Field{
			Field:    column,
			Type:     mapType(dataType),
			Required: nullable == "NO" && hasDefault == 0,
		})
	}
	return out, rows.Err()
}

// mapType reduces SQL Server data types to registry types.
func mapType(dataType string) string {
	switch strings.ToLower(dataType) {
	case "uniqueidentifier":
		return "uuid"
	case "bit":
		return "boolean"
	case "date":
		return "date"
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset", "time":
		return "datetime"
	case "money", "smallmoney":
		return "currency"
	case "tinyint", "smallint", "int", "bigint",
		"numeric", "decimal", "real", "float":
		return "number"
	default:
		return "string"
	}
}
