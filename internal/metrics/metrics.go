// Package metrics defines the minimal backend interface the ingestion
// pipeline emits into. Core code depends only on Backend; concrete
// implementations (see the datadog subpackage) live behind it so no vendor
// SDK leaks into parsing or matching code.
package metrics

import "context"

// Backend receives counters and histogram samples.
//
// Implementations must be safe for concurrent use; the preview service may
// serve parses from multiple goroutines.
type Backend interface {
	// IncCounter adds delta to the named counter.
	IncCounter(name string, delta float64, tags ...string)
	// ObserveHistogram records one sample of the named distribution.
	ObserveHistogram(name string, value float64, tags ...string)
	// Flush submits buffered metrics now.
	Flush(ctx context.Context) error
	// Close flushes one final time and releases resources.
	Close(ctx context.Context) error
}

// Noop is the default backend: it discards everything.
type Noop struct{}

func (Noop) IncCounter(string, float64, ...string)       {}
func (Noop) ObserveHistogram(string, float64, ...string) {}
func (Noop) Flush(context.Context) error                 { return nil }
func (Noop) Close(context.Context) error                 { return nil }
