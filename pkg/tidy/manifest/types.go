// Package manifest keeps a history of clean runs as JSON files.
package manifest

import "time"

// OperationType represents the type of run.
type OperationType string

const (
	// OpClean is a run that moved entries to the trash.
	OpClean OperationType = "clean"
	// OpDryRun is a run that only reported matches.
	OpDryRun OperationType = "dry-run"
)

// Entry is one recorded run.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation OperationType `json:"operation"`
	Root      string        `json:"root"`
	Files     []FileRecord  `json:"files"`
	Summary   Summary       `json:"summary"`
}

// FileRecord is an entry that matched during a run.
type FileRecord struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	IsDir     bool      `json:"is_dir,omitempty"`
	Condition string    `json:"condition"`
	TrashedAt time.Time `json:"trashed_at,omitempty"`
}

// Summary contains run totals.
type Summary struct {
	Scanned    int   `json:"scanned"`
	Excluded   int   `json:"excluded"`
	TotalFiles int64 `json:"total_files"`
	TotalBytes int64 `json:"total_bytes"`
}
