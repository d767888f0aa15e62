package main

import (
	"fmt"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/condition"
	"github.com/jamesainslie/tidy/pkg/tidy/config"
	"github.com/jamesainslie/tidy/pkg/tidy/exclude"
)

// buildConditions creates the conditions for one run. now is the reference
// time shared by every condition of the run.
func buildConditions(cfg *config.Config, now time.Time) ([]condition.Condition, error) {
	var conditions []condition.Condition

	if s := cfg.NotModifiedWithin; s != "" {
		d, err := condition.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid not-modified-within %q: %w", s, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid not-modified-within %q: %w: must not be negative", s, condition.ErrInvalidDuration)
		}
		conditions = append(conditions, condition.NewLastModifiedIsOlderThan(d, now))
	}

	return conditions, nil
}

// buildExclusions merges the default names, configured names and names
// given with --exclude.
func buildExclusions(cfg *config.Config, extra []string) *exclude.Filter {
	names := make([]string, 0, len(cfg.Exclude)+len(extra))
	names = append(names, cfg.Exclude...)
	names = append(names, extra...)
	return exclude.New(exclude.Merge(cfg.DefaultExclusions, names)...)
}
