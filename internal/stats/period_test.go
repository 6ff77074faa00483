package stats

import (
	"reflect"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekKey(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"mid year", date(2024, time.February, 14), "2024-W07"},
		{"monday boundary", date(2024, time.January, 8), "2024-W02"},
		{"jan 1 belongs to previous iso year", date(2023, time.January, 1), "2022-W52"},
		{"dec 31 belongs to next iso year", date(2024, time.December, 31), "2025-W01"},
		{"week 53 year", date(2020, time.December, 28), "2020-W53"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekKey(tt.in); got != tt.want {
				t.Errorf("WeekKey(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPeriodStartRoundTrips(t *testing.T) {
	tests := []struct {
		key  string
		g    Granularity
		want time.Time
	}{
		{"2024-03", GranularityMonth, date(2024, time.March, 1)},
		{"2024-W07", GranularityWeek, date(2024, time.February, 12)},
		{"2020-W53", GranularityWeek, date(2020, time.December, 28)},
		{"2024-W01", GranularityWeek, date(2024, time.January, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := PeriodStart(tt.key, tt.g)
			if err != nil {
				t.Fatalf("PeriodStart(%q) error = %v", tt.key, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("PeriodStart(%q) = %v, want %v", tt.key, got, tt.want)
			}
			// The start instant must map back to its own key.
			if key := PeriodKey(got, tt.g); key != tt.key {
				t.Errorf("PeriodKey(PeriodStart(%q)) = %q", tt.key, key)
			}
		})
	}
}

func TestPeriodKeysMonths(t *testing.T) {
	keys := PeriodKeys(date(2023, time.November, 15), date(2024, time.February, 10), GranularityMonth)
	want := []string{"2023-11", "2023-12", "2024-01", "2024-02"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("PeriodKeys() = %v, want %v", keys, want)
	}
}

func TestPeriodKeysWeeksAcrossYearRollover(t *testing.T) {
	keys := PeriodKeys(date(2024, time.December, 23), date(2025, time.January, 8), GranularityWeek)
	want := []string{"2024-W52", "2025-W01", "2025-W02"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("PeriodKeys() = %v, want %v", keys, want)
	}
}

func TestPeriodKeysPartialOverlapIncluded(t *testing.T) {
	// Range starts mid-week; the containing week must still appear.
	keys := PeriodKeys(date(2024, time.February, 15), date(2024, time.February, 20), GranularityWeek)
	want := []string{"2024-W07", "2024-W08"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("PeriodKeys() = %v, want %v", keys, want)
	}
}

func TestPeriodKeysInvertedRange(t *testing.T) {
	if keys := PeriodKeys(date(2024, time.March, 1), date(2024, time.February, 1), GranularityMonth); keys != nil {
		t.Errorf("PeriodKeys() on inverted range = %v, want nil", keys)
	}
}

func TestParseGranularity(t *testing.T) {
	if _, err := ParseGranularity("fortnight"); err == nil {
		t.Error("ParseGranularity(\"fortnight\") should fail")
	}
	g, err := ParseGranularity("week")
	if err != nil || g != GranularityWeek {
		t.Errorf("ParseGranularity(\"week\") = %v, %v", g, err)
	}
}
