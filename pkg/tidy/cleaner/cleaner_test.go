package cleaner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/condition"
	"github.com/jamesainslie/tidy/pkg/tidy/exclude"
	"github.com/jamesainslie/tidy/pkg/tidy/trash"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// record is a single captured log record.
type record struct {
	level   string
	msg     string
	keyvals []interface{}
}

// recordingLogger captures records for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	records []record
}

func (l *recordingLogger) add(level, msg string, keyvals []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record{level: level, msg: msg, keyvals: keyvals})
}

func (l *recordingLogger) Trace(msg string, kv ...interface{}) { l.add("trace", msg, kv) }
func (l *recordingLogger) Debug(msg string, kv ...interface{}) { l.add("debug", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...interface{})  { l.add("info", msg, kv) }
func (l *recordingLogger) Warn(msg string, kv ...interface{})  { l.add("warn", msg, kv) }

// withMessage returns the records with the given message.
func (l *recordingLogger) withMessage(msg string) []record {
	var out []record
	for _, r := range l.records {
		if r.msg == msg {
			out = append(out, r)
		}
	}
	return out
}

// fakeTrasher records trash calls and can be made to fail.
type fakeTrasher struct {
	calls []string
	err   error
}

func (f *fakeTrasher) MoveToTrash(path string) error {
	f.calls = append(f.calls, path)
	return f.err
}

// spyCondition returns a fixed result and counts evaluations.
type spyCondition struct {
	name   string
	result bool
	err    error
	calls  []string
}

func (s *spyCondition) Test(path string) (bool, error) {
	s.calls = append(s.calls, path)
	return s.result, s.err
}

func (s *spyCondition) String() string { return s.name }

// countingFs counts Stat and Open calls.
type countingFs struct {
	afero.Fs
	calls int
}

func (c *countingFs) Stat(name string) (os.FileInfo, error) {
	c.calls++
	return c.Fs.Stat(name)
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.calls++
	return c.Fs.Open(name)
}

// writeAged creates path with a modification time age before testNow.
func writeAged(t *testing.T, fsys afero.Fs, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte("content"), 0o644))
	mod := testNow.Add(-age)
	require.NoError(t, fsys.Chtimes(path, mod, mod))
}

func olderThan(fsys afero.Fs, threshold time.Duration) condition.Condition {
	return condition.NewLastModifiedIsOlderThan(threshold, testNow, condition.WithFs(fsys))
}

func TestClean_NoConditions(t *testing.T) {
	fsys := &countingFs{Fs: afero.NewMemMapFs()}
	trasher := &fakeTrasher{}

	c := New("/data", false, nil, exclude.New(), WithFs(fsys), WithTrasher(trasher))
	report, err := c.Clean()

	require.ErrorIs(t, err, ErrNoConditions)
	assert.Nil(t, report)
	assert.Zero(t, fsys.calls, "no filesystem access before the configuration check")
	assert.Empty(t, trasher.calls)
}

func TestClean_ReadsMetadataOncePerCondition(t *testing.T) {
	mem := afero.NewMemMapFs()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		writeAged(t, mem, "/data/"+name, 3*time.Hour)
	}
	fsys := &countingFs{Fs: mem}
	logger := &recordingLogger{}

	c := New("/data", true, []condition.Condition{olderThan(fsys, time.Hour)}, nil,
		WithFs(fsys), WithLogger(logger))
	report, err := c.Clean()
	require.NoError(t, err)
	require.Len(t, report.Matched, 3)

	// Stat and Open of the directory, then one Stat per entry.
	assert.Equal(t, 2+3, fsys.calls)

	matched := logger.withMessage("condition matched")
	require.Len(t, matched, 3)
	assert.Equal(t, "debug", matched[0].level)
	assert.Contains(t, matched[0].keyvals, testNow.Add(-3*time.Hour))
}

func TestClean_OldFileIsTrashed(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/old.txt", 2*time.Hour)
	trasher := &fakeTrasher{}
	logger := &recordingLogger{}

	c := New("/data", false,
		[]condition.Condition{olderThan(fsys, time.Hour+59*time.Minute)},
		exclude.New(exclude.DefaultPatterns...),
		WithFs(fsys), WithTrasher(trasher), WithLogger(logger))

	report, err := c.Clean()
	require.NoError(t, err)

	assert.Equal(t, []string{"/data/old.txt"}, trasher.calls)
	require.Len(t, report.Matched, 1)
	assert.True(t, report.Matched[0].Trashed)
	assert.Equal(t, "old.txt", report.Matched[0].Name)
	assert.Equal(t, "LastModifiedIsOlderThan 1h59m0s", report.Matched[0].Condition)

	deleted := logger.withMessage("deleted")
	require.Len(t, deleted, 1)
	assert.Equal(t, "info", deleted[0].level)
	assert.Equal(t, []interface{}{"path", "old.txt", "condition", "LastModifiedIsOlderThan 1h59m0s", "dry_run", false}, deleted[0].keyvals)
}

func TestClean_YoungFileIsRetained(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/new.txt", 10*time.Second)
	trasher := &fakeTrasher{}
	logger := &recordingLogger{}

	c := New("/data", false,
		[]condition.Condition{olderThan(fsys, 60*time.Second)},
		nil, WithFs(fsys), WithTrasher(trasher), WithLogger(logger))

	report, err := c.Clean()
	require.NoError(t, err)

	assert.Empty(t, trasher.calls)
	assert.Empty(t, report.Matched)
	assert.Equal(t, 1, report.Scanned)
	assert.Empty(t, logger.withMessage("deleted"))
	assert.Len(t, logger.withMessage("retained"), 1)
}

func TestClean_FutureFileAbortsRun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/future.txt", -5*time.Minute)
	trasher := &fakeTrasher{}

	c := New("/data", false,
		[]condition.Condition{olderThan(fsys, time.Minute)},
		nil, WithFs(fsys), WithTrasher(trasher))

	_, err := c.Clean()
	require.Error(t, err)
	assert.ErrorIs(t, err, condition.ErrClockSkew)

	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "evaluate", pathErr.Op)
	assert.Equal(t, "/data/future.txt", pathErr.Path)

	var skew *condition.ClockSkewError
	require.ErrorAs(t, err, &skew)
	assert.True(t, skew.Now.Equal(testNow))
	assert.Empty(t, trasher.calls)
}

func TestClean_DefaultExclusions(t *testing.T) {
	tests := []struct {
		name        string
		useDefaults bool
		wantTrashed []string
	}{
		{name: "defaults enabled", useDefaults: true, wantTrashed: nil},
		{name: "defaults disabled", useDefaults: false, wantTrashed: []string{"/data/.DS_Store"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeAged(t, fsys, "/data/.DS_Store", 10*24*time.Hour)
			trasher := &fakeTrasher{}
			logger := &recordingLogger{}

			c := New("/data", false,
				[]condition.Condition{olderThan(fsys, 24*time.Hour)},
				exclude.New(exclude.Merge(tt.useDefaults, nil)...),
				WithFs(fsys), WithTrasher(trasher), WithLogger(logger))

			report, err := c.Clean()
			require.NoError(t, err)
			assert.Equal(t, tt.wantTrashed, trasher.calls)
			if tt.useDefaults {
				assert.Equal(t, 1, report.Excluded)
				assert.Empty(t, logger.withMessage("deleted"))
			}
		})
	}
}

func TestClean_ExclusionCheckedBeforeConditions(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/keep.me", 48*time.Hour)
	spy := &spyCondition{name: "always", result: true}
	trasher := &fakeTrasher{}
	logger := &recordingLogger{}

	c := New("/data", true, []condition.Condition{spy}, exclude.New("keep.me"),
		WithFs(fsys), WithTrasher(trasher), WithLogger(logger))

	report, err := c.Clean()
	require.NoError(t, err)

	assert.Empty(t, spy.calls, "excluded entries are never evaluated")
	assert.Empty(t, report.Matched)
	assert.Empty(t, logger.withMessage("would delete"))
	assert.Empty(t, trasher.calls)
}

func TestClean_ShortCircuit(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/a.txt", time.Hour)
	first := &spyCondition{name: "first", result: true}
	second := &spyCondition{name: "second", result: true}
	trasher := &fakeTrasher{}

	c := New("/data", false, []condition.Condition{first, second}, nil,
		WithFs(fsys), WithTrasher(trasher))

	report, err := c.Clean()
	require.NoError(t, err)

	assert.Equal(t, []string{"/data/a.txt"}, trasher.calls, "at most one trash call per entry")
	assert.Len(t, first.calls, 1)
	assert.Empty(t, second.calls)
	require.Len(t, report.Matched, 1)
	assert.Equal(t, "first", report.Matched[0].Condition)
}

func TestClean_ConditionsEvaluatedInOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/a.txt", time.Hour)
	first := &spyCondition{name: "first", result: false}
	second := &spyCondition{name: "second", result: true}
	third := &spyCondition{name: "third", result: true}
	trasher := &fakeTrasher{}

	c := New("/data", false, []condition.Condition{first, second, third}, nil,
		WithFs(fsys), WithTrasher(trasher))

	report, err := c.Clean()
	require.NoError(t, err)

	assert.Len(t, first.calls, 1)
	assert.Len(t, second.calls, 1)
	assert.Empty(t, third.calls)
	require.Len(t, report.Matched, 1)
	assert.Equal(t, "second", report.Matched[0].Condition)
}

func TestClean_DryRunNeverTrashes(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/a.txt", 3*time.Hour)
	writeAged(t, fsys, "/data/b.txt", 4*time.Hour)
	writeAged(t, fsys, "/data/c.txt", time.Minute)
	cond := olderThan(fsys, time.Hour)
	trasher := &fakeTrasher{}

	run := func() ([]record, *Report) {
		logger := &recordingLogger{}
		c := New("/data", true, []condition.Condition{cond}, exclude.New(exclude.DefaultPatterns...),
			WithFs(fsys), WithTrasher(trasher), WithLogger(logger))
		report, err := c.Clean()
		require.NoError(t, err)
		return logger.records, report
	}

	firstRecords, firstReport := run()
	secondRecords, secondReport := run()

	assert.Empty(t, trasher.calls)
	assert.Len(t, firstReport.Matched, 2)
	for _, m := range firstReport.Matched {
		assert.False(t, m.Trashed)
	}

	wouldDelete := 0
	for _, r := range firstRecords {
		if r.msg == "would delete" {
			wouldDelete++
			assert.Equal(t, "info", r.level)
			assert.Equal(t, true, r.keyvals[len(r.keyvals)-1])
		}
	}
	assert.Equal(t, 2, wouldDelete)

	sortRecords(firstRecords)
	sortRecords(secondRecords)
	assert.Equal(t, firstRecords, secondRecords, "dry runs are repeatable")
	assert.Equal(t, len(firstReport.Matched), len(secondReport.Matched))

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		exists, err := afero.Exists(fsys, "/data/"+name)
		require.NoError(t, err)
		assert.True(t, exists, name)
	}
}

// sortRecords orders records by message and path so runs can be compared
// regardless of listing order.
func sortRecords(records []record) {
	key := func(r record) string {
		path := ""
		if len(r.keyvals) >= 2 {
			if s, ok := r.keyvals[1].(string); ok {
				path = s
			}
		}
		return r.level + "|" + r.msg + "|" + path
	}
	sort.SliceStable(records, func(i, j int) bool { return key(records[i]) < key(records[j]) })
}

func TestClean_TargetErrors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/file.txt", time.Hour)
	cond := &spyCondition{name: "always", result: true}

	t.Run("missing directory", func(t *testing.T) {
		_, err := New("/missing", false, []condition.Condition{cond}, nil, WithFs(fsys)).Clean()
		var pathErr *PathError
		require.ErrorAs(t, err, &pathErr)
		assert.Equal(t, "list", pathErr.Op)
		assert.Equal(t, "/missing", pathErr.Path)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("not a directory", func(t *testing.T) {
		_, err := New("/data/file.txt", false, []condition.Condition{cond}, nil, WithFs(fsys)).Clean()
		assert.ErrorIs(t, err, ErrNotDirectory)
		assert.Contains(t, err.Error(), "/data/file.txt")
	})

	assert.Empty(t, cond.calls)
}

func TestClean_TrashFailureAbortsRun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/a.txt", 2*time.Hour)
	writeAged(t, fsys, "/data/b.txt", 2*time.Hour)
	writeAged(t, fsys, "/data/c.txt", 2*time.Hour)
	trasher := &fakeTrasher{err: errors.New("permission denied")}

	c := New("/data", false, []condition.Condition{olderThan(fsys, time.Hour)}, nil,
		WithFs(fsys), WithTrasher(trasher))

	report, err := c.Clean()
	require.Error(t, err)

	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "trash", pathErr.Op)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Len(t, trasher.calls, 1, "no further entries are processed")
	assert.Empty(t, report.Matched)
}

func TestClean_ConditionErrorAbortsBatch(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, name := range []string{"a", "b", "c"} {
		writeAged(t, fsys, "/data/"+name, time.Hour)
	}
	broken := &spyCondition{name: "broken", err: errors.New("stat failed")}

	_, err := New("/data", true, []condition.Condition{broken}, nil, WithFs(fsys)).Clean()
	require.Error(t, err)
	assert.Len(t, broken.calls, 1)
}

func TestClean_NoTrasherConfigured(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/a.txt", 2*time.Hour)

	_, err := New("/data", false, []condition.Condition{olderThan(fsys, time.Hour)}, nil, WithFs(fsys)).Clean()
	var pathErr *PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "trash", pathErr.Op)
}

func TestClean_EmptyDirectory(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/empty", 0o755))

	report, err := New("/empty", false, []condition.Condition{olderThan(fsys, time.Hour)}, nil,
		WithFs(fsys), WithTrasher(&fakeTrasher{})).Clean()
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Empty(t, report.Matched)
	assert.False(t, report.Finished.IsZero())
}

func TestClean_ManyEntries(t *testing.T) {
	fsys := afero.NewMemMapFs()
	total := readBatch*2 + 7
	for i := 0; i < total; i++ {
		writeAged(t, fsys, filepath.Join("/data", fmt.Sprintf("f%03d", i)), 2*time.Hour)
	}
	trasher := &fakeTrasher{}

	report, err := New("/data", false, []condition.Condition{olderThan(fsys, time.Hour)}, nil,
		WithFs(fsys), WithTrasher(trasher)).Clean()
	require.NoError(t, err)
	assert.Equal(t, total, report.Scanned)
	assert.Len(t, trasher.calls, total)
}

func TestClean_SubdirectoriesAreEntries(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAged(t, fsys, "/data/sub/inner.txt", time.Minute)
	mod := testNow.Add(-48 * time.Hour)
	require.NoError(t, fsys.Chtimes("/data/sub", mod, mod))
	trasher := &fakeTrasher{}

	report, err := New("/data", false, []condition.Condition{olderThan(fsys, time.Hour)}, nil,
		WithFs(fsys), WithTrasher(trasher)).Clean()
	require.NoError(t, err)

	assert.Equal(t, []string{"/data/sub"}, trasher.calls, "listing is not recursive")
	assert.Equal(t, 1, report.Scanned)
	require.Len(t, report.Matched, 1)
	assert.True(t, report.Matched[0].IsDir)
}

func TestClean_OSFilesystemWithTrashBin(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "downloads")
	binDir := filepath.Join(root, "Trash")
	require.NoError(t, os.Mkdir(target, 0o755))
	require.NoError(t, os.Mkdir(binDir, 0o700))

	now := time.Now()
	old := filepath.Join(target, "old.txt")
	fresh := filepath.Join(target, "fresh.txt")
	for _, p := range []string{old, fresh} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	require.NoError(t, os.Chtimes(old, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(fresh, now.Add(-time.Minute), now.Add(-time.Minute)))

	bin := trash.New(trash.WithBackend(func(paths ...string) error {
		for _, p := range paths {
			if err := os.Rename(p, filepath.Join(binDir, filepath.Base(p))); err != nil {
				return err
			}
		}
		return nil
	}))
	cond := condition.NewLastModifiedIsOlderThan(time.Hour+59*time.Minute, now)

	report, err := New(target, false, []condition.Condition{cond}, exclude.New(exclude.DefaultPatterns...),
		WithTrasher(bin)).Clean()
	require.NoError(t, err)
	require.Len(t, report.Matched, 1)
	assert.True(t, report.Matched[0].Trashed)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(binDir, "old.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestReport(t *testing.T) {
	r := &Report{
		Started: testNow,
		Matched: []Match{{Size: 100}, {Size: 23}},
	}
	assert.Equal(t, int64(123), r.MatchedBytes())
	assert.Zero(t, r.Duration())

	r.Finished = testNow.Add(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, r.Duration())
}

func TestDisplayPath(t *testing.T) {
	tests := []struct {
		root, path, want string
	}{
		{root: "/data", path: "/data/old.txt", want: "old.txt"},
		{root: ".", path: "./old.txt", want: "old.txt"},
		{root: ".", path: "old.txt", want: "old.txt"},
		{root: "/data", path: "/data/..hidden", want: "..hidden"},
		{root: "/data", path: "/elsewhere/x", want: "/elsewhere/x"},
		{root: "/data", path: "/data", want: "/data"},
		{root: "relative", path: "/abs/x", want: "/abs/x"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayPath(tt.root, tt.path))
		})
	}
}
