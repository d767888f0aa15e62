package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/cleaner"
	"github.com/jamesainslie/tidy/pkg/tidy/config"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/manifest"
	"github.com/jamesainslie/tidy/pkg/tidy/metrics"
	"github.com/jamesainslie/tidy/pkg/tidy/output"
	"github.com/jamesainslie/tidy/pkg/tidy/trash"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// errNoTarget is returned when neither a path argument nor default_path is set.
var errNoTarget = errors.New("no directory given and default_path is not configured")

// cli holds the state shared by all commands of one invocation.
type cli struct {
	v   *viper.Viper
	cfg *config.Config

	cfgFile  string
	verbose  int
	quiet    bool
	logLevel string
	excludes []string

	newTrasher func() cleaner.Trasher
	now        func() time.Time
}

func newCLI() *cli {
	return &cli{
		v:          viper.New(),
		newTrasher: func() cleaner.Trasher { return trash.New() },
		now:        time.Now,
	}
}

// Execute runs the root command.
func Execute() error {
	return newCLI().command().Execute()
}

// command builds the command tree bound to a.
func (a *cli) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tidy [path]",
		Short: "Move stale entries of a directory to the trash",
		Long: `Tidy looks at the entries directly inside a directory and moves the ones
matching a condition to the trash. Nothing is deleted permanently.

Entries named .DS_Store, Thumbs.db, desktop.ini or .directory are never
touched unless --no-default-exclusions is given.

Examples:
  tidy -n 7d ~/Downloads          # Trash entries not modified for a week
  tidy -d -n 12h /tmp/scratch     # Show what would be trashed
  tidy -n 30d -e keep.txt ~/Desk  # Never touch keep.txt
  tidy watch -n 2w ~/Downloads    # Keep a directory tidy
  tidy history                    # View past runs`,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		PersistentPreRunE: a.initialize,
		RunE:              a.runClean,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ~/.config/tidy/config.yaml)")
	flags.BoolP("dry-run", "d", false, "only report what would be trashed")
	flags.StringP("not-modified-within", "n", "", "trash entries not modified within this duration (e.g. 30min, 12h, 7d, 2w)")
	flags.StringArrayVarP(&a.excludes, "exclude", "e", nil, "file name to never touch (repeatable)")
	flags.Bool("no-default-exclusions", false, "also consider .DS_Store, Thumbs.db, desktop.ini and .directory")
	flags.StringP("output", "o", config.DefaultOutput, fmt.Sprintf("summary format %v", output.Available()))
	flags.String("metrics-file", "", "write prometheus metrics to this textfile")
	flags.CountVarP(&a.verbose, "verbose", "v", "verbose logging (-vv for trace)")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "print errors only")
	flags.StringVar(&a.logLevel, "log-level", "", "console log level (trace, debug, info, warn, error)")

	_ = a.v.BindPFlag("dry_run", flags.Lookup("dry-run"))
	_ = a.v.BindPFlag("not_modified_within", flags.Lookup("not-modified-within"))
	_ = a.v.BindPFlag("output", flags.Lookup("output"))
	_ = a.v.BindPFlag("metrics.textfile", flags.Lookup("metrics-file"))

	cmd.AddCommand(a.watchCommand(), a.historyCommand(), a.configCommand(), versionCommand())
	return cmd
}

// initialize loads configuration and sets up logging before any command runs.
func (a *cli) initialize(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		config.AddConfigPaths(a.v)
	}
	config.BindEnv(a.v)
	config.SetDefaults(a.v)

	if err := config.ReadIn(a.v); err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("no-default-exclusions"); f != nil && f.Changed {
		a.v.Set("default_exclusions", false)
	}

	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	return a.initializeLogging(cmd)
}

// initializeLogging configures the console and optional file sinks.
func (a *cli) initializeLogging(cmd *cobra.Command) error {
	logCfg, err := a.cfg.LoggingSettings()
	if err != nil {
		return err
	}

	logCfg.FileLevel = a.cfg.Logging.Level
	logCfg.Level = a.consoleLevel(cmd)
	logCfg.Console = cmd.ErrOrStderr()

	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	return nil
}

// consoleLevel resolves the console level from flags and config.
func (a *cli) consoleLevel(cmd *cobra.Command) string {
	switch {
	case a.quiet:
		return "error"
	case cmd.Flags().Changed("log-level"):
		return a.logLevel
	case a.verbose >= 2:
		return "trace"
	case a.verbose == 1:
		return "debug"
	default:
		return a.cfg.Logging.Level
	}
}

// target returns the directory to clean.
func (a *cli) target(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if a.cfg.DefaultPath != "" {
		return a.cfg.DefaultPath, nil
	}
	return "", errNoTarget
}

// runClean performs a single clean pass.
func (a *cli) runClean(cmd *cobra.Command, args []string) error {
	target, err := a.target(args)
	if err != nil {
		return err
	}

	formatter, err := output.Get(a.cfg.Output)
	if err != nil {
		return err
	}

	collector := metrics.New()
	report, runErr := a.cleanOnce(target)
	warnings := a.afterRun(report, runErr, collector)
	if runErr != nil {
		return runErr
	}

	if a.quiet {
		return nil
	}
	result := output.NewResult(report, a.now())
	result.Warnings = warnings
	return render(cmd.OutOrStdout(), formatter, result)
}

// cleanOnce builds fresh conditions and a fresh Cleaner and runs it once.
func (a *cli) cleanOnce(target string) (*cleaner.Report, error) {
	conditions, err := buildConditions(a.cfg, a.now())
	if err != nil {
		return nil, err
	}

	c := cleaner.New(target, a.cfg.DryRun, conditions, buildExclusions(a.cfg, a.excludes),
		cleaner.WithTrasher(a.newTrasher()),
		cleaner.WithLogger(logging.Get("cleaner")))
	return c.Clean()
}

// afterRun records metrics and history. Problems here never fail the run;
// they are logged and returned as warnings.
func (a *cli) afterRun(report *cleaner.Report, runErr error, collector *metrics.Collector) []string {
	logger := logging.Get("cli")
	var warnings []string

	if runErr != nil {
		collector.ObserveFailure()
	} else {
		collector.Observe(report)
	}

	if a.cfg.Manifest.Enabled && report != nil && len(report.Matched) > 0 {
		if err := recordHistory(a.cfg, report); err != nil {
			logger.Warn("failed to record history", "error", err)
			warnings = append(warnings, fmt.Sprintf("history not recorded: %v", err))
		}
	}

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			logger.Warn("failed to write metrics", "path", path, "error", err)
			warnings = append(warnings, fmt.Sprintf("metrics not written: %v", err))
		}
	}

	return warnings
}

func recordHistory(cfg *config.Config, report *cleaner.Report) error {
	m, err := manifest.New(cfg.Manifest.Path)
	if err != nil {
		return err
	}
	if _, err := m.Record(report); err != nil {
		return err
	}
	if cfg.Manifest.RetentionDays > 0 {
		if _, err := m.Cleanup(cfg.Manifest.RetentionDays); err != nil {
			return fmt.Errorf("pruning history: %w", err)
		}
	}
	return nil
}

func render(w io.Writer, formatter output.Formatter, result *output.Result) error {
	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
