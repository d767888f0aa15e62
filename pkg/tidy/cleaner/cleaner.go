// Package cleaner lists the entries of a single directory and moves those
// matching a condition to the trash.
//
// Entries are processed one at a time in the order the filesystem yields
// them. An entry whose name is excluded is skipped without evaluating any
// condition. Otherwise conditions are evaluated in order and the first one
// that matches decides: the entry is trashed (or only reported in dry-run
// mode) and the remaining conditions are not evaluated. Any error aborts the
// whole run.
package cleaner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/condition"
	"github.com/jamesainslie/tidy/pkg/tidy/exclude"
	"github.com/spf13/afero"
)

// readBatch is the number of directory entries read per call.
const readBatch = 128

// ErrNoConditions is returned by Clean when no condition is configured.
var ErrNoConditions = errors.New("no conditions to check, please add some")

// ErrNotDirectory is returned when the target path is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// PathError records the operation and path that aborted a run.
type PathError struct {
	// Op is "list", "evaluate" or "trash".
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Trasher moves a path to the platform trash.
type Trasher interface {
	MoveToTrash(path string) error
}

// Logger receives leveled records about the run.
type Logger interface {
	Trace(msg string, keyvals ...interface{})
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
}

type nopLogger struct{}

func (nopLogger) Trace(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}

// Cleaner evaluates the entries of one directory against conditions.
type Cleaner struct {
	path       string
	dryRun     bool
	conditions []condition.Condition
	filter     *exclude.Filter

	fs      afero.Fs
	trasher Trasher
	logger  Logger
	now     func() time.Time
}

// Option is a functional option for configuring a Cleaner.
type Option func(*Cleaner)

// WithFs sets the filesystem used to list the target directory.
func WithFs(fs afero.Fs) Option {
	return func(c *Cleaner) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// WithTrasher sets the trash collaborator. Without one, a non-dry run fails
// on the first match.
func WithTrasher(t Trasher) Option {
	return func(c *Cleaner) {
		c.trasher = t
	}
}

// WithLogger sets the record sink.
func WithLogger(l Logger) Option {
	return func(c *Cleaner) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Cleaner for path. A nil filter excludes nothing.
func New(path string, dryRun bool, conditions []condition.Condition, filter *exclude.Filter, opts ...Option) *Cleaner {
	c := &Cleaner{
		path:       path,
		dryRun:     dryRun,
		conditions: conditions,
		filter:     filter,
		fs:         afero.NewOsFs(),
		logger:     nopLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean processes every entry of the target directory once.
// The first error aborts the run; entries already trashed stay trashed.
func (c *Cleaner) Clean() (*Report, error) {
	if len(c.conditions) == 0 {
		return nil, ErrNoConditions
	}

	report := &Report{
		Root:    c.path,
		DryRun:  c.dryRun,
		Started: c.now(),
	}

	dir, err := c.openDir()
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	c.logger.Debug("cleaning", "path", c.path, "dry_run", c.dryRun, "conditions", len(c.conditions))

	for {
		infos, readErr := dir.Readdir(readBatch)
		for _, info := range infos {
			if err := c.process(report, info); err != nil {
				return report, err
			}
		}

		if errors.Is(readErr, io.EOF) || (readErr == nil && len(infos) == 0) {
			break
		}
		if readErr != nil {
			return report, &PathError{Op: "list", Path: c.path, Err: readErr}
		}
	}

	report.Finished = c.now()
	c.logger.Debug("clean finished",
		"path", c.path,
		"scanned", report.Scanned,
		"excluded", report.Excluded,
		"matched", len(report.Matched))
	return report, nil
}

// openDir opens the target and checks it is a directory.
func (c *Cleaner) openDir() (afero.File, error) {
	info, err := c.fs.Stat(c.path)
	if err != nil {
		return nil, &PathError{Op: "list", Path: c.path, Err: err}
	}
	if !info.IsDir() {
		return nil, &PathError{Op: "list", Path: c.path, Err: ErrNotDirectory}
	}

	dir, err := c.fs.Open(c.path)
	if err != nil {
		return nil, &PathError{Op: "list", Path: c.path, Err: err}
	}
	return dir, nil
}

// process evaluates one directory entry.
func (c *Cleaner) process(report *Report, info os.FileInfo) error {
	path := filepath.Join(c.path, info.Name())
	display := DisplayPath(c.path, path)
	report.Scanned++

	if c.filter.ShouldExclude(path) {
		report.Excluded++
		c.logger.Trace("excluded", "path", display)
		return nil
	}

	for _, cond := range c.conditions {
		matched, err := cond.Test(path)
		if err != nil {
			return &PathError{Op: "evaluate", Path: path, Err: err}
		}

		c.logger.Trace("evaluated", "path", display, "condition", cond.String(), "matched", matched)
		if !matched {
			continue
		}

		c.logger.Debug("condition matched", "path", display, "condition", cond.String(), "modified", info.ModTime())
		return c.act(report, path, display, info, cond)
	}

	c.logger.Trace("retained", "path", display)
	return nil
}

// act trashes or reports a matched entry.
func (c *Cleaner) act(report *Report, path, display string, info os.FileInfo, cond condition.Condition) error {
	match := Match{
		Path:      path,
		Name:      info.Name(),
		Condition: cond.String(),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		IsDir:     info.IsDir(),
	}

	if c.dryRun {
		report.Matched = append(report.Matched, match)
		c.logger.Info("would delete", "path", display, "condition", match.Condition, "dry_run", true)
		return nil
	}

	if c.trasher == nil {
		return &PathError{Op: "trash", Path: path, Err: errors.New("no trash configured")}
	}
	if err := c.trasher.MoveToTrash(path); err != nil {
		return &PathError{Op: "trash", Path: path, Err: err}
	}

	match.Trashed = true
	report.Matched = append(report.Matched, match)
	c.logger.Info("deleted", "path", display, "condition", match.Condition, "dry_run", false)
	return nil
}
