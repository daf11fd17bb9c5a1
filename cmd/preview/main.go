// Command preview samples a tabular input file and prints an ingestion
// preview: parsed datasets with per-column type profiles, plus schema
// match suggestions against a registry.
//
// Supported input formats are CSV/TSV, Excel workbooks (.xlsx), SQL dumps
// (CREATE TABLE / INSERT / SELECT), HTML table exports, and JSON (arrays of
// objects, envelope objects, JSONL). The format is detected from the file
// extension and content unless -format is given.
//
// Output modes
//
//   - Default mode: prints the preview result as JSON to stdout.
//   - Report mode (-report): prints a human-readable per-column profile
//     report and suppresses JSON output. This makes the command convenient
//     for interactive analysis and scripting.
//
// Registry selection
//
// Suggestions target the built-in registry unless -registry points at a
// registry JSON file (for example one produced by cmd/schema-pull).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"ingest/internal/match"
	"ingest/internal/metrics"
	"ingest/internal/metrics/datadog"
	"ingest/internal/preview"
	"ingest/internal/schema"
)

func main() {
	var (
		// flagFile is the input path. "-" reads from stdin, which makes the
		// command usable in pipelines (curl ... | preview -file -).
		flagFile = flag.String("file", "", "Input file path (CSV, Excel, SQL, or HTML); \"-\" reads stdin")

		// flagFormat overrides format detection. When empty, the format is
		// resolved from the file extension and, failing that, the content.
		flagFormat = flag.String("format", "", "Force input format: csv|excel|sql|html|json (default: detect)")

		// flagName labels the produced datasets. When empty, the label is
		// derived from the input filename.
		flagName = flag.String("name", "", "Dataset name (default: derived from -file)")

		// flagSheet restricts Excel parsing to a single sheet by name.
		// Ignored for non-Excel inputs.
		flagSheet = flag.String("sheet", "", "Excel only: parse a single named sheet")

		// flagRegistry points at a registry JSON file describing the target
		// schema. When empty, the built-in registry is used.
		flagRegistry = flag.String("registry", "", "Registry JSON file (default: built-in registry)")

		// flagMaxRows caps how many data rows each parser materializes.
		// 0 uses each parser's default. Larger values improve inference on
		// sparse columns at the cost of time and memory.
		flagMaxRows = flag.Int("max-rows", 0, "Max data rows to materialize per dataset (0 = parser default)")

		// flagReport enables report mode: a human-readable per-column
		// profile instead of JSON.
		flagReport = flag.Bool("report", false, "Print per-column profile report (suppresses JSON output)")

		// flagPretty controls JSON indentation. Ignored in report mode,
		// because no JSON is printed.
		flagPretty = flag.Bool("pretty", true, "Pretty-print JSON output")

		// flagMinScore overrides the per-column acceptance floor: candidate
		// scores below it never enter a table's suggested mapping. 0 keeps
		// the matcher default.
		flagMinScore = flag.Float64("min-score", 0, "Minimum candidate score for a column mapping to be accepted (0 = default)")

		// flagMetricsBackend selects the metrics backend. "datadog" buffers
		// and submits via the Datadog API (credentials from DD_API_KEY /
		// DD_APP_KEY); "none" disables metrics. Extra tags come from the
		// METRICS_TAGS env var as a comma-separated list.
		flagMetricsBackend = flag.String("metrics-backend", "none", "Metrics backend: datadog|none")
	)
	flag.Parse()

	if strings.TrimSpace(*flagFile) == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		flag.Usage()
		os.Exit(2)
	}

	buf, err := readInput(*flagFile)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}

	tables, err := loadRegistry(*flagRegistry)
	if err != nil {
		log.Fatalf("load registry: %v", err)
	}

	// Previews should be fast and predictable; prefer failing quickly over
	// hanging on a pathological input.
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	backend, closeBackend := setupMetrics(ctx, *flagMetricsBackend)
	defer closeBackend()

	svc := preview.NewService(preview.Config{
		Tables:  tables,
		Metrics: backend,
		Match:   match.Options{MinAcceptedMappingScore: *flagMinScore},
		MaxRows: *flagMaxRows,
	})

	res, err := svc.FromBuffer(ctx, preview.BufferRequest{
		Buffer:   buf,
		Filename: filenameFor(*flagFile),
		Format:   preview.Format(strings.ToLower(strings.TrimSpace(*flagFormat))),
		Sheet:    *flagSheet,
		Name:     *flagName,
	})
	if err != nil {
		log.Fatalf("preview: %v", err)
	}

	if *flagReport {
		fmt.Fprintln(os.Stdout, preview.Report(res))
		return
	}

	enc := json.NewEncoder(os.Stdout)
	if *flagPretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// filenameFor returns the name used for extension-based format detection.
// Stdin has no extension, so detection falls through to content sniffing.
func filenameFor(path string) string {
	if path == "-" {
		return ""
	}
	return path
}

func loadRegistry(path string) ([]schema.Table, error) {
	if strings.TrimSpace(path) == "" {
		return schema.Default(), nil
	}
	return schema.LoadFile(path)
}

// setupMetrics constructs the selected metrics backend. Failures degrade to
// the noop backend with a log line; a preview must never fail because a
// metrics endpoint is down.
func setupMetrics(ctx context.Context, name string) (metrics.Backend, func()) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			Service: "preview",
			Tags:    datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; metrics disabled", err)
			return metrics.Noop{}, func() {}
		}
		return b, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := b.Close(closeCtx); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
		}
	case "", "none":
		return metrics.Noop{}, func() {}
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
		return metrics.Noop{}, func() {}
	}
}
