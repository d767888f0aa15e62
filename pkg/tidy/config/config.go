package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// ManifestConfig configures run history.
type ManifestConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// MetricsConfig configures the prometheus textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// WatchConfig configures `tidy watch`.
type WatchConfig struct {
	Schedule string        `mapstructure:"schedule"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// Config represents the application configuration.
type Config struct {
	DefaultPath       string         `mapstructure:"default_path"`
	NotModifiedWithin string         `mapstructure:"not_modified_within"`
	Exclude           []string       `mapstructure:"exclude"`
	DefaultExclusions bool           `mapstructure:"default_exclusions"`
	DryRun            bool           `mapstructure:"dry_run"`
	Output            string         `mapstructure:"output"`
	Manifest          ManifestConfig `mapstructure:"manifest"`
	Logging           LoggingConfig  `mapstructure:"logging"`
	Metrics           MetricsConfig  `mapstructure:"metrics"`
	Watch             WatchConfig    `mapstructure:"watch"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("default_path", "")
	v.SetDefault("not_modified_within", "")
	v.SetDefault("exclude", []string{})
	v.SetDefault("default_exclusions", true)
	v.SetDefault("dry_run", false)
	v.SetDefault("output", DefaultOutput)

	v.SetDefault("manifest.enabled", true)
	v.SetDefault("manifest.path", "") // empty means ManifestDir()
	v.SetDefault("manifest.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_backups", DefaultLogMaxBackups)

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("watch.schedule", "")
	v.SetDefault("watch.debounce", DefaultWatchDebounce)
}

// AddConfigPaths points v at the standard config file locations:
//   - $XDG_CONFIG_HOME/tidy/config.yaml
//   - $HOME/.config/tidy/config.yaml
func AddConfigPaths(v *viper.Viper) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, appName))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".config", appName))
	}
}

// BindEnv enables TIDY_ prefixed environment overrides (e.g. TIDY_DRY_RUN,
// TIDY_LOGGING_LEVEL).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("TIDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// ReadIn reads the config file. A missing file is not an error.
func ReadIn(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Load loads configuration from the default file locations and environment
// variables.
func Load() (*Config, error) {
	v := viper.New()
	AddConfigPaths(v)
	BindEnv(v)
	SetDefaults(v)

	if err := ReadIn(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes v into a Config and expands ~ in paths.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.DefaultPath, &cfg.Manifest.Path, &cfg.Logging.Path, &cfg.Metrics.Textfile} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	if cfg.Manifest.Path == "" {
		dir, err := ManifestDir()
		if err != nil {
			return nil, err
		}
		cfg.Manifest.Path = dir
	}

	return &cfg, nil
}

// LoggingSettings converts the logging section into a logging.Config.
func (c *Config) LoggingSettings() (logging.Config, error) {
	rotation, err := c.Logging.Rotation.Parse()
	if err != nil {
		return logging.Config{}, err
	}
	return logging.Config{
		Level:    c.Logging.Level,
		Path:     c.Logging.Path,
		Rotation: rotation,
	}, nil
}

// Parse converts human-readable sizes such as "10MB" into bytes.
func (r RotationConfig) Parse() (logging.RotationConfig, error) {
	out := logging.RotationConfig{MaxBackups: r.MaxBackups}
	if r.MaxSize == "" {
		return out, nil
	}

	size, err := humanize.ParseBytes(r.MaxSize)
	if err != nil {
		return out, fmt.Errorf("invalid logging.rotation.max_size %q: %w", r.MaxSize, err)
	}
	out.MaxSize = int64(size)
	return out, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", appName), nil
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ManifestDir returns the default manifest directory.
func ManifestDir() (string, error) {
	configDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, ".manifest"), nil
}

// StateDir returns $XDG_STATE_HOME/tidy/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// DefaultLogPath returns the suggested log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "tidy.log")
}

// WriteDefault writes a default config file if none exists.
// It returns the path and whether a file was created.
func WriteDefault() (string, bool, error) {
	path, err := ConfigFile()
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# tidy configuration

# Directory cleaned when no path argument is given
default_path: ""

# Trash entries not modified within this duration (e.g. 30min, 12h, 7d, 2w)
not_modified_within: ""

# Extra file names never touched (exact, case-sensitive)
exclude: []

# Also skip .DS_Store, Thumbs.db, desktop.ini and .directory
default_exclusions: true

# Report matches without moving anything to the trash
dry_run: false

# Summary format: pretty, plain, json, yaml
output: %s

# Run history
manifest:
  enabled: true
  path: ""            # empty means ~/.config/tidy/.manifest
  retention_days: %d

logging:
  # trace, debug, info, warn, error
  level: %s
  # Log file (empty disables file logging; suggested: %s)
  path: ""
  rotation:
    max_size: %s
    max_backups: %d

# Prometheus textfile collector output (empty disables)
metrics:
  textfile: ""

# tidy watch
watch:
  schedule: ""        # cron expression, e.g. "@hourly" or "0 3 * * *"
  debounce: %s
`, DefaultOutput, DefaultRetentionDays, DefaultLogLevel, DefaultLogPath(),
		DefaultLogMaxSize, DefaultLogMaxBackups, DefaultWatchDebounce)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write default config: %w", err)
	}

	return path, true, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}
