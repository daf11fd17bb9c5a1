// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// NOTE ABOUT FLUSHING:
// Preview parses are short-lived calls inside a potentially long-lived
// process. Submitting only once at process exit can make Datadog
// dashboards/monitors awkward (you get a single spike rather than a time
// series).
//
// Therefore we:
//   - buffer metrics in-memory (fast, lock-protected)
//   - periodically Flush() on a ticker (default: once per minute)
//   - Flush() one final time on Close()
//
// Concurrency model:
//   - Any goroutine can call IncCounter/ObserveHistogram at any time
//   - Flush snapshots+resets buffers under a mutex, then submits out-of-lock
//   - The flush loop calls Flush() periodically; Close() stops the loop
//
// If the process is killed with SIGKILL/OOM, Close() won't run (no backend
// can fix that).
//
// Core ingestion code depends only on metrics.Backend; nothing
// Datadog-specific leaks out of this package.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// Service becomes tag "service:<name>" on every metric.
	// If empty, defaults to "ingest".
	Service string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// The following fields are unexported test seams. Production code never
	// sets them; unit tests use them to avoid real network submission and
	// nondeterministic clocks/tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal interface needed to submit metrics.
// The SDK exposes a concrete *datadogV2.MetricsApi; depending on this tiny
// private interface instead enables deterministic tests with a fake.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter

	ctx        context.Context
	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
	keys     map[string]seriesKey
}

// seriesKey remembers the metric name and tag set behind a buffer key.
type seriesKey struct {
	name string
	tags []string
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.Service is empty, defaults to "ingest".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Errors occur during Flush (network), not construction; API credentials
// come from the usual DD_API_KEY / DD_APP_KEY environment.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	service := opts.Service
	if service == "" {
		service = "ingest"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "service:"+service)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[string]float64),
		samples:    make(map[string][]float64),
		keys:       make(map[string]seriesKey),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush(b.ctx)
		case <-b.stopCh:
			return
		}
	}
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, tags ...string) {
	if name == "" || delta <= 0 {
		return
	}
	k, sk := bufferKey(name, tags)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[k] += delta
	b.keys[k] = sk
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, tags ...string) {
	if name == "" || value < 0 {
		return
	}
	k, sk := bufferKey(name, tags)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples[k] = append(b.samples[k], value)
	b.keys[k] = sk
}

// bufferKey canonicalizes a (name, tags) pair. Tags are sorted so call-site
// tag order does not split series.
func bufferKey(name string, tags []string) (string, seriesKey) {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return name + "|" + strings.Join(sorted, ","), seriesKey{name: name, tags: sorted}
}

// snapshot is the detached buffered state used to build one flush payload.
// Flush must reset buffers under the lock but submit out-of-lock; this type
// separates the two phases.
type snapshot struct {
	counters map[string]float64
	samples  map[string][]float64
	keys     map[string]seriesKey
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{counters: b.counters, samples: b.samples, keys: b.keys}
	b.counters = make(map[string]float64)
	b.samples = make(map[string][]float64)
	b.keys = make(map[string]seriesKey)
	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.counters) == 0 && len(s.samples) == 0
}

// Flush submits buffered metrics to Datadog and resets local buffers.
//
// Buffers are reset even when submission fails: parsing must never block on
// metrics delivery, and a retrying buffer would grow without bound on a
// broken network.
func (b *Backend) Flush(ctx context.Context) error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// Close stops the background flush loop and performs one final Flush.
// Close must be called at most once.
func (b *Backend) Close(ctx context.Context) error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush(ctx)
}

// buildSeries constructs Datadog series for a snapshot at a fixed
// timestamp. It is pure (no locks, no network, no clocks), which keeps the
// naming/tagging contract unit-testable.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	point := func(v float64) []datadogV2.MetricPoint {
		return []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(v)},
		}
	}

	series := make([]datadogV2.MetricSeries, 0, len(s.counters)+4*len(s.samples))

	for k, v := range s.counters {
		if v == 0 {
			continue
		}
		sk := s.keys[k]
		series = append(series, datadogV2.MetricSeries{
			Metric: sk.name,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: point(v),
			Tags:   withTags(b.baseTags, sk.tags...),
		})
	}

	for k, samples := range s.samples {
		if len(samples) == 0 {
			continue
		}
		sk := s.keys[k]
		tags := withTags(b.baseTags, sk.tags...)

		summary := summarize(samples)
		for _, suffix := range summaryOrder {
			series = append(series, datadogV2.MetricSeries{
				Metric: sk.name + "." + suffix,
				Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
				Points: point(summary[suffix]),
				Tags:   tags,
			})
		}
	}

	return series
}

// summaryOrder fixes the series order per histogram so payloads are
// deterministic for tests.
var summaryOrder = []string{"count", "avg", "max", "p95"}

// summarize reduces a sample set to the fixed gauges submitted per window.
func summarize(samples []float64) map[string]float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	n := len(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	p95 := (95 * n) / 100
	if p95 >= n {
		p95 = n - 1
	}

	return map[string]float64{
		"count": float64(n),
		"avg":   sum / float64(n),
		"max":   sorted[n-1],
		"p95":   sorted[p95],
	}
}

// ParseTagsCSV parses a comma-separated tag list ("env:prod,team:data")
// into a slice, dropping empty entries. Useful for env-var driven tags.
func ParseTagsCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func withTags(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	out = append(out, extra...)
	return out
}
