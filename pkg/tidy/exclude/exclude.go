// Package exclude protects well-known file names from ever being considered
// for deletion, regardless of which conditions are configured.
package exclude

import (
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

// DefaultPatterns lists metadata files created by desktop environments.
// Callers decide whether to include them; the Filter itself has no defaults.
var DefaultPatterns = []string{
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	".directory",
}

// Filter matches the final path component against exact file names.
// Matching is case-sensitive; there is no glob or partial matching.
type Filter struct {
	patterns []string
	names    map[string]struct{}
}

// New creates a Filter for the given exact-match file names.
func New(patterns ...string) *Filter {
	f := &Filter{
		patterns: slices.Clone(patterns),
		names:    make(map[string]struct{}, len(patterns)),
	}
	for _, p := range patterns {
		f.names[p] = struct{}{}
	}
	return f
}

// Merge returns DefaultPatterns (unless useDefaults is false) followed by extra.
func Merge(useDefaults bool, extra []string) []string {
	var patterns []string
	if useDefaults {
		patterns = append(patterns, DefaultPatterns...)
	}
	return append(patterns, extra...)
}

// Patterns returns a copy of the configured patterns in their original order.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	return slices.Clone(f.patterns)
}

// ShouldExclude reports whether the final component of path equals one of the
// patterns. Paths without a final component (empty, trailing separator, root,
// "." or "..") and names that are not valid UTF-8 are never excluded.
func (f *Filter) ShouldExclude(path string) bool {
	if f == nil || len(f.names) == 0 {
		return false
	}

	name, ok := fileName(path)
	if !ok {
		return false
	}

	_, found := f.names[name]
	return found
}

// fileName returns the final path component, if there is one.
func fileName(path string) (string, bool) {
	if path == "" || strings.HasSuffix(path, string(filepath.Separator)) || strings.HasSuffix(path, "/") {
		return "", false
	}

	name := filepath.Base(path)
	switch name {
	case ".", "..", string(filepath.Separator):
		return "", false
	}

	if !utf8.ValidString(name) {
		return "", false
	}
	return name, true
}
