package condition

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Duration constants.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// ErrInvalidDuration indicates that the duration string could not be parsed.
var ErrInvalidDuration = errors.New("invalid duration format")

// durationPattern matches duration strings like "7d", "-2w", "90min", "1.5h", "60".
var durationPattern = regexp.MustCompile(`(?i)^([+-]?)([0-9]+(?:\.[0-9]+)?)\s*(min|m|h|d|w|s)?$`)

// ParseDuration parses a human-readable age threshold.
// It supports the following formats:
//   - Seconds: "45s", or a bare number such as "60"
//   - Minutes: "30m", "30min"
//   - Hours: "12h"
//   - Days: "7d"
//   - Weeks: "2w"
//   - Standard Go duration: "1h30m", "45s"
//
// A leading "-" yields a negative duration, which makes every entry that is
// not dated in the future match.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidDuration)
	}

	matches := durationPattern.FindStringSubmatch(s)
	if matches == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		return d, nil
	}

	value, err := strconv.ParseFloat(matches[2], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	var unit time.Duration
	switch strings.ToLower(matches[3]) {
	case "", "s":
		unit = time.Second
	case "m", "min":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = Day
	case "w":
		unit = Week
	default:
		return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidDuration, matches[3])
	}

	d := time.Duration(value * float64(unit))
	if matches[1] == "-" {
		d = -d
	}
	return d, nil
}
