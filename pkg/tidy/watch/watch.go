// Package watch runs clean passes repeatedly: when new entries appear in the
// watched directory, on a cron schedule, or both.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/robfig/cron/v3"
)

// Trigger names why a run started.
type Trigger string

const (
	TriggerStart    Trigger = "start"
	TriggerChange   Trigger = "change"
	TriggerSchedule Trigger = "schedule"
)

// DefaultDebounce is the quiet period after the last change before a run.
const DefaultDebounce = 2 * time.Second

// ErrNoTriggers is returned when neither change events nor a schedule are enabled.
var ErrNoTriggers = errors.New("watch needs change events or a schedule")

// RunFunc performs one clean pass. A returned error is logged and counted;
// watching continues.
type RunFunc func(ctx context.Context, trigger Trigger) error

// Watcher drives RunFunc from filesystem events and a schedule.
type Watcher struct {
	dir        string
	run        RunFunc
	schedule   cron.Schedule
	spec       string
	debounce   time.Duration
	fsEvents   bool
	runOnStart bool

	runs     atomic.Int64
	failures atomic.Int64
}

// Option is a functional option for configuring a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period after a change. Non-positive values
// use DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithFsEvents enables or disables runs on directory changes.
func WithFsEvents(enabled bool) Option {
	return func(w *Watcher) {
		w.fsEvents = enabled
	}
}

// WithRunOnStart controls whether Run performs a pass immediately.
func WithRunOnStart(enabled bool) Option {
	return func(w *Watcher) {
		w.runOnStart = enabled
	}
}

// New creates a Watcher for dir. schedule is a standard cron expression or
// descriptor ("@hourly", "@every 10m"); empty disables scheduled runs.
func New(dir string, schedule string, run RunFunc, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", dir, err)
	}

	w := &Watcher{
		dir:        abs,
		run:        run,
		spec:       schedule,
		debounce:   DefaultDebounce,
		fsEvents:   true,
		runOnStart: true,
	}
	for _, opt := range opts {
		opt(w)
	}

	if schedule != "" {
		if w.schedule, err = cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}
	}
	if !w.fsEvents && w.schedule == nil {
		return nil, ErrNoTriggers
	}
	return w, nil
}

// Runs returns the number of completed passes, failed ones included.
func (w *Watcher) Runs() int64 {
	return w.runs.Load()
}

// Failures returns the number of passes that returned an error.
func (w *Watcher) Failures() int64 {
	return w.failures.Load()
}

// Run blocks until ctx is cancelled. Passes never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	logger := logging.Get("watch")

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.fsEvents {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer fsw.Close()

		if err := fsw.Add(w.dir); err != nil {
			return fmt.Errorf("watching %s: %w", w.dir, err)
		}
		events, errs = fsw.Events, fsw.Errors
	}

	scheduled := make(chan struct{}, 1)
	if w.schedule != nil {
		c := cron.New()
		c.Schedule(w.schedule, cron.FuncJob(func() {
			select {
			case scheduled <- struct{}{}:
			default:
			}
		}))
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	logger.Info("watching", "path", w.dir, "schedule", w.spec, "fs_events", w.fsEvents, "debounce", w.debounce)

	if w.runOnStart {
		w.pass(ctx, TriggerStart)
	}

	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("stopped watching", "path", w.dir, "runs", w.Runs(), "failures", w.Failures())
			return nil

		case event, ok := <-events:
			if !ok {
				return errors.New("watcher event channel closed")
			}
			// Removals and renames away are what a pass itself produces.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			logger.Trace("change", "path", event.Name, "op", event.Op.String())
			if debounce == nil {
				debounce = time.NewTimer(w.debounce)
			} else {
				debounce.Reset(w.debounce)
			}
			debounceC = debounce.C

		case err, ok := <-errs:
			if !ok {
				return errors.New("watcher error channel closed")
			}
			logger.Warn("watcher error", "error", err)

		case <-debounceC:
			debounceC = nil
			w.pass(ctx, TriggerChange)

		case <-scheduled:
			w.pass(ctx, TriggerSchedule)
		}
	}
}

func (w *Watcher) pass(ctx context.Context, trigger Trigger) {
	logger := logging.Get("watch")
	logger.Debug("run starting", "trigger", trigger)

	err := w.run(ctx, trigger)
	w.runs.Add(1)
	if err != nil {
		w.failures.Add(1)
		logger.Error("run failed", "trigger", trigger, "error", err)
		return
	}
	logger.Debug("run finished", "trigger", trigger)
}
