package stats

import "github.com/tguillot/straviz/internal/db"

// Metric selects a numeric value from an activity for series bucketing.
// Extractors never return NaN: an activity missing an optional field
// contributes 0 to that metric's sums.
type Metric struct {
	Key     string
	Label   string
	Unit    string
	Extract func(a db.Activity) float64
}

// Metrics is the set of chartable metrics, mirroring the dashboard's
// metric picker.
var Metrics = []Metric{
	{
		Key:     "distance",
		Label:   "Distance",
		Unit:    "km",
		Extract: func(a db.Activity) float64 { return a.Distance / 1000 },
	},
	{
		Key:     "moving_time",
		Label:   "Moving time",
		Unit:    "h",
		Extract: func(a db.Activity) float64 { return float64(a.MovingTime) / 3600 },
	},
	{
		Key:     "elapsed_time",
		Label:   "Elapsed time",
		Unit:    "h",
		Extract: func(a db.Activity) float64 { return float64(a.ElapsedTime) / 3600 },
	},
	{
		Key:     "elevation",
		Label:   "Elevation gain",
		Unit:    "m",
		Extract: func(a db.Activity) float64 { return a.ElevationGain },
	},
	{
		Key:     "count",
		Label:   "Activity count",
		Unit:    "activities",
		Extract: func(a db.Activity) float64 { return 1 },
	},
	{
		Key:     "suffer_score",
		Label:   "Suffer score",
		Unit:    "pts",
		Extract: func(a db.Activity) float64 { return orZero(a.SufferScore) },
	},
	{
		Key:     "average_heartrate",
		Label:   "Average heart rate",
		Unit:    "bpm",
		Extract: func(a db.Activity) float64 { return orZero(a.AverageHeartrate) },
	},
	{
		Key:     "kilojoules",
		Label:   "Energy",
		Unit:    "kJ",
		Extract: func(a db.Activity) float64 { return orZero(a.Kilojoules) },
	},
}

// MetricByKey looks up a metric by its key.
func MetricByKey(key string) (Metric, bool) {
	for _, m := range Metrics {
		if m.Key == key {
			return m, true
		}
	}
	return Metric{}, false
}

// orZero is the explicit zero-default policy for absent optional fields.
func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
