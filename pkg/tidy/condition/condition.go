// Package condition provides the predicates tidy evaluates against directory
// entries to decide whether they should be moved to the trash.
//
// A Condition only answers the question; it never deletes anything. The
// cleaner package combines conditions with an exclusion filter and performs
// the actual trash operation.
package condition

import (
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/spf13/afero"
)

// Condition is a single boolean predicate over a filesystem path.
type Condition interface {
	// Test reports whether path should be considered for deletion.
	// It must not modify the filesystem or the condition itself.
	Test(path string) (bool, error)

	// String describes the condition for log records.
	String() string
}

// ErrNoModTime indicates that the filesystem did not report a modification time.
var ErrNoModTime = errors.New("modification time unavailable")

// ErrClockSkew matches any *ClockSkewError via errors.Is.
var ErrClockSkew = errors.New("modification time is after reference time")

// ClockSkewError is returned when a file was modified after the reference
// time the condition was created with. This usually means the system clock
// is wrong or the file carries a future timestamp.
type ClockSkewError struct {
	Path     string
	Modified time.Time
	Now      time.Time
}

func (e *ClockSkewError) Error() string {
	return fmt.Sprintf("%s: modified at %s, after reference time %s (%s in the future)",
		e.Path,
		e.Modified.Format(time.RFC3339Nano),
		e.Now.Format(time.RFC3339Nano),
		e.Modified.Sub(e.Now))
}

// Is makes errors.Is(err, ErrClockSkew) succeed for clock skew errors.
func (e *ClockSkewError) Is(target error) bool {
	return target == ErrClockSkew
}

// LastModifiedIsOlderThan matches entries whose last modification is more
// than a threshold before a fixed reference time.
type LastModifiedIsOlderThan struct {
	threshold time.Duration
	now       time.Time
	fs        afero.Fs
}

// Option configures a LastModifiedIsOlderThan condition.
type Option func(*LastModifiedIsOlderThan)

// WithFs sets the filesystem used to read modification times.
// Defaults to the operating system filesystem.
func WithFs(fs afero.Fs) Option {
	return func(c *LastModifiedIsOlderThan) {
		if fs != nil {
			c.fs = fs
		}
	}
}

// NewLastModifiedIsOlderThan creates an age condition. The reference time now
// is used for every path tested, so all entries of a scan are aged against
// the same instant.
func NewLastModifiedIsOlderThan(threshold time.Duration, now time.Time, opts ...Option) *LastModifiedIsOlderThan {
	c := &LastModifiedIsOlderThan{
		threshold: threshold,
		now:       now,
		fs:        afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(c)
	}

	logging.Get("condition").Trace("adding condition", "condition", c.String(), "now", now.Format(time.RFC3339))
	return c
}

// Threshold returns the configured age threshold.
func (c *LastModifiedIsOlderThan) Threshold() time.Duration {
	return c.threshold
}

// Now returns the reference time ages are computed against.
func (c *LastModifiedIsOlderThan) Now() time.Time {
	return c.now
}

// Age returns how long before the reference time path was last modified.
func (c *LastModifiedIsOlderThan) Age(path string) (time.Duration, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("reading metadata for %q: %w", path, err)
	}

	modified := info.ModTime()
	if modified.IsZero() {
		return 0, fmt.Errorf("%q: %w", path, ErrNoModTime)
	}

	if modified.After(c.now) {
		return 0, &ClockSkewError{Path: path, Modified: modified, Now: c.now}
	}

	return c.now.Sub(modified), nil
}

// Test reports whether path is strictly older than the threshold.
// A file exactly at the threshold is retained.
func (c *LastModifiedIsOlderThan) Test(path string) (bool, error) {
	age, err := c.Age(path)
	if err != nil {
		return false, err
	}
	return age > c.threshold, nil
}

// String returns a description such as "LastModifiedIsOlderThan 168h0m0s".
func (c *LastModifiedIsOlderThan) String() string {
	return fmt.Sprintf("LastModifiedIsOlderThan %s", c.threshold)
}

// Ensure LastModifiedIsOlderThan implements Condition.
var _ Condition = (*LastModifiedIsOlderThan)(nil)
