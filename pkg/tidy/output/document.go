package output

import (
	"bytes"
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Root     string     `json:"root" yaml:"root"`
	DryRun   bool       `json:"dry_run" yaml:"dry_run"`
	Entries  []docEntry `json:"entries" yaml:"entries"`
	Stats    docStats   `json:"stats" yaml:"stats"`
	Warnings []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type docEntry struct {
	Entry `yaml:",inline"`
	Age   string `json:"age" yaml:"age"`
}

type docStats struct {
	Stats      `yaml:",inline"`
	TotalBytes int64  `json:"total_bytes" yaml:"total_bytes"`
	Duration   string `json:"duration" yaml:"duration"`
}

func newDocument(r *Result) document {
	entries := make([]docEntry, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = docEntry{Entry: e, Age: e.Age.Round(time.Second).String()}
	}
	return document{
		Root:    r.Root,
		DryRun:  r.DryRun,
		Entries: entries,
		Stats: docStats{
			Stats:      r.Stats,
			TotalBytes: r.TotalSize(),
			Duration:   r.Stats.Duration.String(),
		},
		Warnings: r.Warnings,
	}
}

// JSONFormatter writes a single indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newDocument(r))
}

// YAMLFormatter writes the same document as JSONFormatter in YAML.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(newDocument(r)); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*YAMLFormatter)(nil)
)
