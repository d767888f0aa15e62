// Package output renders the summary of a clean run in various formats
// (pretty, plain, json, yaml).
//
// Formatters are looked up by name in a registry:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.NewResult(report, time.Now())); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/tidy/pkg/tidy/cleaner"
)

// Entry is a matched directory entry prepared for display.
type Entry struct {
	// Path is relative to the cleaned directory.
	Path      string        `json:"path" yaml:"path"`
	Name      string        `json:"name" yaml:"name"`
	IsDir     bool          `json:"is_dir" yaml:"is_dir"`
	Size      int64         `json:"size" yaml:"size"`
	SizeHuman string        `json:"size_human" yaml:"size_human"`
	ModTime   time.Time     `json:"mod_time" yaml:"mod_time"`
	Age       time.Duration `json:"-" yaml:"-"`
	Condition string        `json:"condition" yaml:"condition"`
	Trashed   bool          `json:"trashed" yaml:"trashed"`
}

// Stats holds the counters of a run.
type Stats struct {
	Scanned  int           `json:"scanned" yaml:"scanned"`
	Excluded int           `json:"excluded" yaml:"excluded"`
	Matched  int           `json:"matched" yaml:"matched"`
	Duration time.Duration `json:"-" yaml:"-"`
}

// Result is the data every formatter renders.
type Result struct {
	Root     string
	DryRun   bool
	Entries  []Entry
	Stats    Stats
	Warnings []string
}

// NewResult builds a Result from report. Entries are sorted by path so the
// output does not depend on directory listing order; ages are relative to now.
func NewResult(report *cleaner.Report, now time.Time) *Result {
	r := &Result{
		Root:   report.Root,
		DryRun: report.DryRun,
		Stats: Stats{
			Scanned:  report.Scanned,
			Excluded: report.Excluded,
			Matched:  len(report.Matched),
			Duration: report.Duration(),
		},
		Entries: make([]Entry, 0, len(report.Matched)),
	}

	for _, m := range report.Matched {
		r.Entries = append(r.Entries, Entry{
			Path:      cleaner.DisplayPath(report.Root, m.Path),
			Name:      m.Name,
			IsDir:     m.IsDir,
			Size:      m.Size,
			SizeHuman: humanize.IBytes(uint64(m.Size)),
			ModTime:   m.ModTime,
			Age:       now.Sub(m.ModTime),
			Condition: m.Condition,
			Trashed:   m.Trashed,
		})
	}

	sort.Slice(r.Entries, func(i, j int) bool {
		return r.Entries[i].Path < r.Entries[j].Path
	})
	return r
}

// TotalSize returns the sum of all entry sizes.
func (r *Result) TotalSize() int64 {
	var total int64
	for _, e := range r.Entries {
		total += e.Size
	}
	return total
}

// Action describes what happened to matched entries.
func (r *Result) Action() string {
	if r.DryRun {
		return "would trash"
	}
	return "trashed"
}

// Formatter is the interface that all output formatters implement.
type Formatter interface {
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any existing one with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the sorted names of all registered formatters.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// formatDuration formats d for people: "850ms", "4.2s", "3m 12s", "5h 2m", "3d 4h".
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}
