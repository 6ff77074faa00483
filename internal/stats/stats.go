// Package stats computes derived statistics over the cached activity set.
// Everything here is a pure function of its inputs; no I/O.
package stats

import (
	"sort"

	"github.com/tguillot/straviz/internal/db"
)

// Totals aggregates the whole (or a filtered) cached set.
type Totals struct {
	Distance      float64 `json:"distance"`      // meters
	MovingTime    int     `json:"movingTime"`    // seconds
	ElevationGain float64 `json:"elevationGain"` // meters
	Activities    int     `json:"activities"`
	ActiveDays    int     `json:"activeDays"` // distinct calendar days with >= 1 activity
}

// Filter narrows the activity set for totals.
type Filter struct {
	// Type keeps only activities of this type when non-empty.
	Type string
	// Range keeps only activities starting within it when non-nil.
	Range *DateRange
}

func (f Filter) match(a db.Activity) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Range != nil && !f.Range.contains(a.StartDate) {
		return false
	}
	return true
}

// ComputeTotals sums distance, moving time, elevation and counts over the
// matching activities.
func ComputeTotals(activities []db.Activity, f Filter) Totals {
	var t Totals
	days := make(map[string]struct{})
	for _, a := range activities {
		if !f.match(a) {
			continue
		}
		t.Distance += a.Distance
		t.MovingTime += a.MovingTime
		t.ElevationGain += a.ElevationGain
		t.Activities++
		days[a.StartDate.UTC().Format("2006-01-02")] = struct{}{}
	}
	t.ActiveDays = len(days)
	return t
}

// YearCount is the number of cached activities starting in a year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// YearBreakdown counts activities per calendar year, most recent first.
func YearBreakdown(activities []db.Activity) []YearCount {
	counts := make(map[int]int)
	for _, a := range activities {
		counts[a.StartDate.UTC().Year()]++
	}

	breakdown := make([]YearCount, 0, len(counts))
	for year, count := range counts {
		breakdown = append(breakdown, YearCount{Year: year, Count: count})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		return breakdown[i].Year > breakdown[j].Year
	})
	return breakdown
}

// TypeCount aggregates activities of one type.
type TypeCount struct {
	Type     string  `json:"type"`
	Count    int     `json:"count"`
	Distance float64 `json:"distance"` // meters
}

// TypeBreakdown aggregates count and distance per activity type, ordered by
// count desc then type name for a stable output.
func TypeBreakdown(activities []db.Activity) []TypeCount {
	byType := make(map[string]*TypeCount)
	for _, a := range activities {
		typ := a.Type
		if typ == "" {
			typ = "Other"
		}
		tc, ok := byType[typ]
		if !ok {
			tc = &TypeCount{Type: typ}
			byType[typ] = tc
		}
		tc.Count++
		tc.Distance += a.Distance
	}

	breakdown := make([]TypeCount, 0, len(byType))
	for _, tc := range byType {
		breakdown = append(breakdown, *tc)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count != breakdown[j].Count {
			return breakdown[i].Count > breakdown[j].Count
		}
		return breakdown[i].Type < breakdown[j].Type
	})
	return breakdown
}
