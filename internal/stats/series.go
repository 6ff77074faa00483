package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/tguillot/straviz/internal/db"
)

// DateRange is an inclusive time range.
type DateRange struct {
	From time.Time
	To   time.Time
}

// contains reports whether t falls within the range.
func (r DateRange) contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// Bucket is one period of a grouped series.
type Bucket struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// CompareRow is one relative period across several compared series. A nil
// value means the series has no such period (as opposed to a recorded
// zero), so chart layers can break the line instead of drawing 0.
type CompareRow struct {
	Label  string     `json:"label"`
	Values []*float64 `json:"values"`
}

// SeriesSummary condenses a single series' raw values.
type SeriesSummary struct {
	Total         float64 `json:"total"`
	Max           float64 `json:"max"`
	Average       float64 `json:"average"` // mean over active periods only
	ActivePeriods int     `json:"activePeriods"`
}

// GroupedSeries buckets the metric over every period overlapping the range,
// in chronological order, zero-filled where no activity matches.
func GroupedSeries(activities []db.Activity, r DateRange, g Granularity, m Metric) []Bucket {
	values, keys := rawSeries(activities, r, g, m)
	buckets := make([]Bucket, len(keys))
	for i, key := range keys {
		buckets[i] = Bucket{Label: key, Value: values[i]}
	}
	return buckets
}

// CumulativeSeries is GroupedSeries with running sums. Periods starting
// after now are excluded so the series never projects into the future.
func CumulativeSeries(activities []db.Activity, r DateRange, g Granularity, m Metric, now time.Time) []Bucket {
	values, keys := rawSeries(activities, r, g, m)

	var buckets []Bucket
	var acc float64
	for i, key := range keys {
		start, err := PeriodStart(key, g)
		if err != nil || start.After(now) {
			break
		}
		acc = round2(acc + values[i])
		buckets = append(buckets, Bucket{Label: key, Value: acc})
	}
	return buckets
}

// CompareSeries computes one series per range and re-indexes them onto a
// relative period offset ("M+1", "W+2", ...) so periods with different
// calendar alignment can be overlaid. Rows are padded with nils beyond a
// series' natural extent.
func CompareSeries(activities []db.Activity, ranges []DateRange, g Granularity, m Metric, cumulative bool, now time.Time) []CompareRow {
	series := make([][]float64, len(ranges))
	maxLen := 0
	for i, r := range ranges {
		values, keys := rawSeries(activities, r, g, m)
		if cumulative {
			var truncated []float64
			var acc float64
			for j, key := range keys {
				start, err := PeriodStart(key, g)
				if err != nil || start.After(now) {
					break
				}
				acc = round2(acc + values[j])
				truncated = append(truncated, acc)
			}
			values = truncated
		}
		series[i] = values
		if len(values) > maxLen {
			maxLen = len(values)
		}
	}

	unit := "M"
	if g == GranularityWeek {
		unit = "W"
	}

	rows := make([]CompareRow, maxLen)
	for i := 0; i < maxLen; i++ {
		row := CompareRow{
			Label:  fmt.Sprintf("%s+%d", unit, i+1),
			Values: make([]*float64, len(series)),
		}
		for si, values := range series {
			if i < len(values) {
				v := values[i]
				row.Values[si] = &v
			}
		}
		rows[i] = row
	}
	return rows
}

// Summarize reports totals over a non-cumulative series. Average is taken
// over active (non-zero) periods only.
func Summarize(buckets []Bucket) SeriesSummary {
	var s SeriesSummary
	for _, b := range buckets {
		s.Total += b.Value
		if b.Value > s.Max {
			s.Max = b.Value
		}
		if b.Value > 0 {
			s.ActivePeriods++
		}
	}
	if s.ActivePeriods > 0 {
		s.Average = s.Total / float64(s.ActivePeriods)
	}
	return s
}

// rawSeries zero-fills every period key in the range and sums the metric
// into the period each activity starts in.
func rawSeries(activities []db.Activity, r DateRange, g Granularity, m Metric) (values []float64, keys []string) {
	keys = PeriodKeys(r.From, r.To, g)
	buckets := make(map[string]float64, len(keys))
	for _, k := range keys {
		buckets[k] = 0
	}

	for _, a := range activities {
		if !r.contains(a.StartDate) {
			continue
		}
		key := PeriodKey(a.StartDate, g)
		if _, ok := buckets[key]; ok {
			buckets[key] += m.Extract(a)
		}
	}

	values = make([]float64, len(keys))
	for i, k := range keys {
		values[i] = round2(buckets[k])
	}
	return values, keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
