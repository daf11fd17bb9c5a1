// Package introspect builds schema registries from live destination
// databases.
//
// The built-in default registry (schema.Default) is a convenience; real
// deployments point previews at their actual destination schema. This
// package reads that schema from the database catalog so field names,
// types, and NOT NULL constraints stay in sync with reality instead of a
// hand-maintained JSON file.
//
// Backends register themselves from init() in their own packages (see the
// postgres, mssql, and sqlite subpackages), so importing a backend is what
// enables its kind.
package introspect

import (
	"context"
	"fmt"
	"sync"

	"ingest/internal/schema"
)

// Config is the minimal configuration needed to open an introspector.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Introspector reads table definitions from a destination database.
type Introspector interface {
	// Tables returns every user table in the connected database as a
	// registry entry, with fields in ordinal order.
	//
	// Edge cases:
	//   - System/catalog tables are excluded.
	//   - A database with no user tables returns an empty slice, not an
	//     error.
	Tables(ctx context.Context) ([]schema.Table, error)

	// Close releases the underlying connection. Treat as "call once".
	Close()
}

type factory func(ctx context.Context, cfg Config) (Introspector, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend factory under a kind (e.g. "postgres").
//
// Edge cases:
//   - kind must be non-empty.
//   - f must be non-nil.
//   - Registering the same kind more than once panics. This is intentional
//     to fail fast and avoid ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("introspect: Register called with empty kind")
	}
	if f == nil {
		panic("introspect: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("introspect: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs an Introspector using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Introspector, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("introspect: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported introspect kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for error messages and CLI
// help text. Order is not specified.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
