// Package config provides configuration management for tidy.
package config

import "time"

// Default configuration values for tidy.
const (
	// DefaultLogLevel is the console log level when none is configured.
	DefaultLogLevel = "warn"

	// DefaultRetentionDays is the default number of days to retain manifests.
	DefaultRetentionDays = 30

	// DefaultLogMaxSize is the log size that triggers rotation.
	DefaultLogMaxSize = "10MB"

	// DefaultLogMaxBackups is the number of rotated log files kept.
	DefaultLogMaxBackups = 5

	// DefaultWatchDebounce is the quiet period after a change before a watch run.
	DefaultWatchDebounce = 2 * time.Second

	// DefaultOutput is the summary format.
	DefaultOutput = "pretty"
)

// appName names the xdg subdirectories.
const appName = "tidy"
