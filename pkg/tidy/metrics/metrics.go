// Package metrics counts clean runs with prometheus collectors and exports
// them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/tidy/pkg/tidy/cleaner"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tidy"

// Mode label values.
const (
	ModeTrash  = "trash"
	ModeDryRun = "dry_run"
)

// Collector holds the run metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	scanned      prometheus.Counter
	excluded     prometheus.Counter
	matched      *prometheus.CounterVec
	bytesMatched *prometheus.CounterVec
	duration     prometheus.Gauge
	lastRun      prometheus.Gauge
	failures     prometheus.Counter
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		scanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_scanned_total",
			Help:      "Directory entries listed by clean runs.",
		}),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_excluded_total",
			Help:      "Directory entries skipped by the exclusion filter.",
		}),
		matched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_matched_total",
			Help:      "Directory entries that satisfied a condition.",
		}, []string{"mode"}),
		bytesMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_matched_total",
			Help:      "Size of matched directory entries in bytes.",
		}, []string{"mode"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last successful clean run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last successful clean run finished.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Clean runs aborted by an error.",
		}),
	}

	c.registry.MustRegister(c.scanned, c.excluded, c.matched, c.bytesMatched, c.duration, c.lastRun, c.failures)

	// Pre-create label values so both modes are exported from the start.
	for _, mode := range []string{ModeTrash, ModeDryRun} {
		c.matched.WithLabelValues(mode)
		c.bytesMatched.WithLabelValues(mode)
	}
	return c
}

// Registry exposes the underlying registry, e.g. for gathering in tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records a finished run.
func (c *Collector) Observe(report *cleaner.Report) {
	mode := ModeTrash
	if report.DryRun {
		mode = ModeDryRun
	}

	c.scanned.Add(float64(report.Scanned))
	c.excluded.Add(float64(report.Excluded))
	c.matched.WithLabelValues(mode).Add(float64(len(report.Matched)))
	c.bytesMatched.WithLabelValues(mode).Add(float64(report.MatchedBytes()))
	c.duration.Set(report.Duration().Seconds())
	if !report.Finished.IsZero() {
		c.lastRun.Set(float64(report.Finished.Unix()))
	}
}

// ObserveFailure records an aborted run.
func (c *Collector) ObserveFailure() {
	c.failures.Inc()
}

// WriteTextfile writes all metrics to path for the node_exporter textfile
// collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
