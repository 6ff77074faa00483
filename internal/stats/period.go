package stats

import (
	"errors"
	"fmt"
	"time"
)

// Granularity is the bucketing unit for grouped series.
type Granularity string

// Supported granularities.
const (
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// ErrBadGranularity is returned for an unknown granularity value.
var ErrBadGranularity = errors.New("granularity must be \"week\" or \"month\"")

// ParseGranularity validates a user-supplied granularity string.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityWeek, GranularityMonth:
		return Granularity(s), nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrBadGranularity, s)
	}
}

// MonthKey returns the bucket key for t's calendar month, e.g. "2024-05".
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// WeekKey returns the bucket key for t's ISO 8601 week, e.g. "2024-W07".
// ISO weeks start on Monday; week 1 contains the year's first Thursday, so
// the ISO year can differ from the calendar year at the boundaries.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// PeriodKey returns the bucket key for t at the given granularity.
func PeriodKey(t time.Time, g Granularity) string {
	if g == GranularityWeek {
		return WeekKey(t)
	}
	return MonthKey(t)
}

// PeriodStart returns the first instant of the period identified by key.
func PeriodStart(key string, g Granularity) (time.Time, error) {
	if g == GranularityWeek {
		var year, week int
		if _, err := fmt.Sscanf(key, "%d-W%d", &year, &week); err != nil {
			return time.Time{}, fmt.Errorf("parsing week key %q: %w", key, err)
		}
		return isoWeekStart(year, week), nil
	}
	var year, month int
	if _, err := fmt.Sscanf(key, "%d-%d", &year, &month); err != nil {
		return time.Time{}, fmt.Errorf("parsing month key %q: %w", key, err)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// PeriodKeys returns the keys of every period fully or partially overlapping
// [from, to], in chronological order.
func PeriodKeys(from, to time.Time, g Granularity) []string {
	if to.Before(from) {
		return nil
	}

	var keys []string
	if g == GranularityMonth {
		cursor := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
		for !cursor.After(to) {
			keys = append(keys, MonthKey(cursor))
			cursor = cursor.AddDate(0, 1, 0)
		}
		return keys
	}

	cursor := mondayOf(from)
	for !cursor.After(to) {
		keys = append(keys, WeekKey(cursor))
		cursor = cursor.AddDate(0, 0, 7)
	}
	return keys
}

// isoWeekStart returns the Monday beginning the given ISO week.
// January 4 is always in week 1.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	return mondayOf(jan4).AddDate(0, 0, (week-1)*7)
}

// mondayOf truncates t to the Monday of its week.
func mondayOf(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}
