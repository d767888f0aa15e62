package exclude

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_ShouldExclude(t *testing.T) {
	f := New(DefaultPatterns...)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "DS_Store in directory", path: "/home/user/Downloads/.DS_Store", want: true},
		{name: "Thumbs.db relative", path: "pictures/Thumbs.db", want: true},
		{name: "bare desktop.ini", path: "desktop.ini", want: true},
		{name: ".directory", path: "./.directory", want: true},
		{name: "ordinary file", path: "/tmp/report.pdf", want: false},
		{name: "case differs", path: "/tmp/thumbs.db", want: false},
		{name: "prefix only", path: "/tmp/.DS_Store.bak", want: false},
		{name: "suffix only", path: "/tmp/my.DS_Store", want: false},
		{name: "pattern as directory component", path: "/tmp/.DS_Store/inner", want: false},
		{name: "trailing separator", path: "/tmp/.DS_Store/", want: false},
		{name: "empty path", path: "", want: false},
		{name: "root", path: "/", want: false},
		{name: "dot", path: ".", want: false},
		{name: "dot dot", path: "/tmp/..", want: false},
		{name: "invalid utf-8", path: "/tmp/\xff\xfe", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldExclude(tt.path))
		})
	}
}

func TestFilter_InvalidUTF8PatternNeverMatches(t *testing.T) {
	f := New("\xff")
	assert.False(t, f.ShouldExclude("/tmp/\xff"))
}

func TestFilter_Empty(t *testing.T) {
	assert.False(t, New().ShouldExclude("/tmp/.DS_Store"))

	var nilFilter *Filter
	assert.False(t, nilFilter.ShouldExclude("/tmp/.DS_Store"))
	assert.Nil(t, nilFilter.Patterns())
}

func TestFilter_CustomPatterns(t *testing.T) {
	f := New("keep.me", "notes.txt")

	assert.True(t, f.ShouldExclude("/data/keep.me"))
	assert.True(t, f.ShouldExclude("/data/notes.txt"))
	assert.False(t, f.ShouldExclude("/data/.DS_Store"))
}

func TestFilter_PatternsIsACopy(t *testing.T) {
	input := []string{"a", "b"}
	f := New(input...)

	input[0] = "changed"
	got := f.Patterns()
	assert.Equal(t, []string{"a", "b"}, got)

	got[1] = "mutated"
	assert.Equal(t, []string{"a", "b"}, f.Patterns())
	assert.True(t, f.ShouldExclude("/x/a"))
}

func TestMerge(t *testing.T) {
	t.Run("defaults then extra", func(t *testing.T) {
		got := Merge(true, []string{"keep.me"})
		want := append(append([]string{}, DefaultPatterns...), "keep.me")
		assert.Equal(t, want, got)
	})

	t.Run("defaults disabled", func(t *testing.T) {
		assert.Equal(t, []string{"keep.me"}, Merge(false, []string{"keep.me"}))
	})

	t.Run("nothing at all", func(t *testing.T) {
		assert.Empty(t, Merge(false, nil))
	})

	t.Run("does not alias DefaultPatterns", func(t *testing.T) {
		got := Merge(true, nil)
		got[0] = "changed"
		assert.Equal(t, ".DS_Store", DefaultPatterns[0])
	})
}
