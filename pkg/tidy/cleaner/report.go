package cleaner

import (
	"path/filepath"
	"strings"
	"time"
)

// Match is an entry that satisfied a condition.
type Match struct {
	Path      string
	Name      string
	Condition string
	Size      int64
	ModTime   time.Time
	IsDir     bool

	// Trashed is false in dry-run mode.
	Trashed bool
}

// Report summarizes one Clean call.
type Report struct {
	Root     string
	DryRun   bool
	Started  time.Time
	Finished time.Time

	// Scanned counts every listed entry, including excluded ones.
	Scanned  int
	Excluded int
	Matched  []Match
}

// MatchedBytes returns the total size of all matched entries.
// Directory sizes are those reported by the directory listing.
func (r *Report) MatchedBytes() int64 {
	var total int64
	for _, m := range r.Matched {
		total += m.Size
	}
	return total
}

// Duration returns how long the run took. It is zero for an unfinished run.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// DisplayPath formats path for records: relative to root when path lies
// inside it, otherwise the cleaned path (which drops any leading "./").
func DisplayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rel
	}
	return filepath.Clean(path)
}
