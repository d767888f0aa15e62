package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/tidy/pkg/tidy/cleaner"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
	"github.com/jamesainslie/tidy/pkg/tidy/metrics"
	"github.com/jamesainslie/tidy/pkg/tidy/watch"
	"github.com/spf13/cobra"
)

func (a *cli) watchCommand() *cobra.Command {
	var noFsEvents bool

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Clean a directory whenever it changes or on a schedule",
		Long: `Watch runs a clean pass at start, again shortly after new entries appear
in the directory, and on the configured cron schedule.

A failed pass is logged and watching continues. Stop with Ctrl-C.

Examples:
  tidy watch -n 7d ~/Downloads
  tidy watch -n 1d --schedule "@hourly" --no-fs-events /tmp/scratch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd, args, noFsEvents)
		},
	}

	cmd.Flags().String("schedule", "", `cron expression or descriptor, e.g. "0 3 * * *" or "@every 30m"`)
	cmd.Flags().Duration("debounce", 0, "quiet period after a change before cleaning")
	cmd.Flags().BoolVar(&noFsEvents, "no-fs-events", false, "only run on the schedule")

	_ = a.v.BindPFlag("watch.schedule", cmd.Flags().Lookup("schedule"))
	_ = a.v.BindPFlag("watch.debounce", cmd.Flags().Lookup("debounce"))

	return cmd
}

func (a *cli) runWatch(cmd *cobra.Command, args []string, noFsEvents bool) error {
	target, err := a.target(args)
	if err != nil {
		return err
	}

	// Fail fast rather than logging the same error on every pass.
	conditions, err := buildConditions(a.cfg, a.now())
	if err != nil {
		return err
	}
	if len(conditions) == 0 {
		return cleaner.ErrNoConditions
	}

	logger := logging.Get("cli")
	collector := metrics.New()

	w, err := watch.New(target, a.cfg.Watch.Schedule, func(_ context.Context, trigger watch.Trigger) error {
		report, err := a.cleanOnce(target)
		a.afterRun(report, err, collector)
		if err != nil {
			return err
		}
		logger.Info("pass complete",
			"trigger", trigger,
			"scanned", report.Scanned,
			"matched", len(report.Matched),
			"dry_run", report.DryRun)
		return nil
	}, watch.WithDebounce(a.cfg.Watch.Debounce), watch.WithFsEvents(!noFsEvents))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return w.Run(ctx)
}
