package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jamesainslie/tidy/pkg/tidy/cleaner"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
)

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("entry not found")

// Manifest manages run history in a directory.
type Manifest struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New creates a Manifest rooted at dir. The directory is created on first write.
func New(dir string) (*Manifest, error) {
	if dir == "" {
		return nil, errors.New("manifest directory cannot be empty")
	}
	return &Manifest{dir: dir, now: time.Now}, nil
}

// Dir returns the manifest directory.
func (m *Manifest) Dir() string {
	return m.dir
}

// LogClean records a run that trashed files.
func (m *Manifest) LogClean(root string, files []FileRecord, summary Summary) (*Entry, error) {
	return m.log(OpClean, root, files, summary)
}

// LogDryRun records a run that only reported matches.
func (m *Manifest) LogDryRun(root string, files []FileRecord, summary Summary) (*Entry, error) {
	return m.log(OpDryRun, root, files, summary)
}

// Record logs report with the operation matching its mode.
func (m *Manifest) Record(report *cleaner.Report) (*Entry, error) {
	files, summary := FromReport(report)
	if report.DryRun {
		return m.LogDryRun(report.Root, files, summary)
	}
	return m.LogClean(report.Root, files, summary)
}

// FromReport converts the matches of report into file records.
func FromReport(report *cleaner.Report) ([]FileRecord, Summary) {
	files := make([]FileRecord, 0, len(report.Matched))
	for _, match := range report.Matched {
		rec := FileRecord{
			Path:      match.Path,
			Size:      match.Size,
			ModTime:   match.ModTime,
			IsDir:     match.IsDir,
			Condition: match.Condition,
		}
		if match.Trashed {
			rec.TrashedAt = report.Finished
		}
		files = append(files, rec)
	}
	return files, Summary{Scanned: report.Scanned, Excluded: report.Excluded}
}

func (m *Manifest) log(op OperationType, root string, files []FileRecord, summary Summary) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()

	summary.TotalFiles = int64(len(files))
	summary.TotalBytes = 0
	for _, f := range files {
		summary.TotalBytes += f.Size
	}

	entry := &Entry{
		ID:        generateID(op, now),
		Timestamp: now,
		Operation: op,
		Root:      root,
		Files:     files,
		Summary:   summary,
	}

	if err := m.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write manifest entry: %w", err)
	}

	logging.Get("manifest").Debug("recorded run", "id", entry.ID, "files", len(files))
	return entry, nil
}

// writeEntry writes entry atomically via a temp file and rename.
func (m *Manifest) writeEntry(entry *Entry) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	path := filepath.Join(m.dir, entry.ID+".json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns entries newest first. A limit of 0 or less returns all.
// Unreadable files are skipped.
func (m *Manifest) List(limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.readAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get retrieves a specific entry by ID.
func (m *Manifest) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.readEntryFile(id + ".json")
	if err == nil && entry.ID == id {
		return entry, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Cleanup removes entries recorded more than retentionDays ago and returns
// how many were removed.
func (m *Manifest) Cleanup(retentionDays int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().AddDate(0, 0, -retentionDays)

	entries, err := m.readAll()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, entry.ID+".json")); err != nil {
			logging.Get("manifest").Warn("failed to remove entry", "id", entry.ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (m *Manifest) readAll() ([]Entry, error) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entry, err := m.readEntryFile(f.Name())
		if err != nil {
			logging.Get("manifest").Debug("skipping unreadable entry", "file", f.Name(), "error", err)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (m *Manifest) readEntryFile(filename string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// generateID creates an ID like "clean-2024-06-15T10-30-00-1b4e28ba".
func generateID(op OperationType, ts time.Time) string {
	return fmt.Sprintf("%s-%s-%s", op, ts.Format("2006-01-02T15-04-05"), uuid.NewString()[:8])
}
