// Package trash moves files and directories to the platform trash so that a
// deletion can be undone from the desktop environment.
//
// The platform work is done by wastebasket: the freedesktop.org trash on
// Linux and the BSDs, the recycle bin on Windows and the Finder trash on
// macOS. There is no permanent delete fallback. If an item cannot be
// trashed, MoveToTrash fails and the item stays where it was.
package trash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Bios-Marcel/wastebasket/v2"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
)

// ErrStillPresent is returned when the backend reported success but the
// item is still in place.
var ErrStillPresent = errors.New("item still present after trashing")

// Backend moves absolute paths to a trash.
type Backend func(paths ...string) error

// Bin is a trash can. The zero value is not usable; use New.
type Bin struct {
	backend Backend
}

// Option configures a Bin.
type Option func(*Bin)

// WithBackend replaces the platform trash, e.g. with a directory in tests.
func WithBackend(fn Backend) Option {
	return func(b *Bin) {
		if fn != nil {
			b.backend = fn
		}
	}
}

// New creates a Bin for the current platform.
func New(opts ...Option) *Bin {
	b := &Bin{backend: wastebasket.Trash}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MoveToTrash moves a file or directory to the trash.
func (b *Bin) MoveToTrash(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("cannot trash %q: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path for %q: %w", path, err)
	}

	if err := b.backend(absPath); err != nil {
		return fmt.Errorf("cannot trash %q: %w", absPath, err)
	}

	if _, err := os.Lstat(absPath); err == nil {
		return fmt.Errorf("cannot trash %q: %w", absPath, ErrStillPresent)
	}

	logging.Get("trash").Debug("trashed", "path", absPath)
	return nil
}
