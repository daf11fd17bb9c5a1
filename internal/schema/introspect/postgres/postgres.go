// Package postgres implements schema introspection for PostgreSQL.
package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"ingest/internal/schema"
	"ingest/internal/schema/introspect"
)

func init() {
	introspect.Register("postgres", New)
}

// Introspector reads table definitions from information_schema.
type Introspector struct {
	pool *pgxpool.Pool
}

// New opens a connection pool against cfg.DSN.
func New(ctx context.Context, cfg introspect.Config) (introspect.Introspector, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Introspector{pool: pool}, nil
}

// Close closes the connection pool.
func (in *Introspector) Close() { in.pool.Close() }

const columnsQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable, c.column_default IS NOT NULL
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE t.table_type = 'BASE TABLE'
  AND c.table_schema NOT IN ('pg_catalog', 'information_schema')
ORDER BY c.table_name, c.ordinal_position`

// Tables returns one registry entry per user table, columns in ordinal
// order. A column is Required when it is NOT NULL and has no default: those
// are the only columns an import cannot leave blank.
func (in *Introspector) Tables(ctx context.Context) ([]schema.Table, error) {
	rows, err := in.pool.Query(ctx, columnsQuery)
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
			hasDefault                        bool
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
			Required: nullable == "NO" && !hasDefault,
		})
	}
	return out, rows.Err()
}

// mapType reduces Postgres data types to registry types.
func mapType(dataType string) string {
	switch t := strings.ToLower(dataType); {
	case t == "uuid":
		return "uuid"
	case t == "boolean":
		return "boolean"
	case t == "date":
		return "date"
	case strings.HasPrefix(t, "timestamp"), t == "time with time zone", t == "time without time zone":
		return "datetime"
	case t == "money":
		return "currency"
	case t == "smallint", t == "integer", t == "bigint",
		t == "numeric", t == "decimal", t == "real", t == "double precision":
		return "number"
	default:
		return "string"
	}
}
