// Package insights derives effort bands from cached activities using
// k-means clustering over normalized distance, duration and elevation.
package insights

import (
	"fmt"
	"sort"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/tguillot/straviz/internal/db"
)

// EffortConfig holds clustering parameters.
type EffortConfig struct {
	NumBands      int // number of effort bands (default: 3)
	MinActivities int // below this, clustering is skipped
}

// DefaultEffortConfig returns the recommended configuration.
func DefaultEffortConfig() EffortConfig {
	return EffortConfig{
		NumBands:      3,
		MinActivities: 12,
	}
}

// bandNames ordered from lightest to heaviest mean load.
var bandNames = []string{"Recovery", "Steady", "Long", "Epic", "Monument"}

// EffortBand groups activities of comparable load.
type EffortBand struct {
	Name           string  `json:"name"`
	Count          int     `json:"count"`
	MeanDistance   float64 `json:"meanDistance"`   // meters
	MeanMovingTime float64 `json:"meanMovingTime"` // seconds
	MeanElevation  float64 `json:"meanElevation"`  // meters
	ActivityIDs    []int64 `json:"activityIds"`
}

// activityObservation adapts an activity to the clusters.Observation
// interface.
type activityObservation struct {
	activity *db.Activity
	coords   clusters.Coordinates
}

func (o activityObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o activityObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// DetectEffortBands partitions activities into bands of similar load.
// Returns nil without error when there is too little data to cluster.
func DetectEffortBands(activities []db.Activity, cfg EffortConfig) ([]EffortBand, error) {
	if cfg.NumBands <= 0 {
		cfg.NumBands = DefaultEffortConfig().NumBands
	}
	if cfg.MinActivities <= 0 {
		cfg.MinActivities = DefaultEffortConfig().MinActivities
	}
	if len(activities) < cfg.MinActivities || len(activities) < cfg.NumBands {
		return nil, nil
	}
	if cfg.NumBands > len(bandNames) {
		cfg.NumBands = len(bandNames)
	}

	maxDistance, maxMoving, maxElevation := featureScales(activities)

	var obs clusters.Observations
	for i := range activities {
		a := &activities[i]
		obs = append(obs, activityObservation{
			activity: a,
			coords: clusters.Coordinates{
				safeDiv(a.Distance, maxDistance),
				safeDiv(float64(a.MovingTime), maxMoving),
				safeDiv(a.ElevationGain, maxElevation),
			},
		})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, cfg.NumBands)
	if err != nil {
		return nil, fmt.Errorf("partitioning activities: %w", err)
	}

	bands := make([]EffortBand, 0, len(result))
	for _, cluster := range result {
		var band EffortBand
		for _, o := range cluster.Observations {
			ao, ok := o.(activityObservation)
			if !ok {
				continue
			}
			band.Count++
			band.MeanDistance += ao.activity.Distance
			band.MeanMovingTime += float64(ao.activity.MovingTime)
			band.MeanElevation += ao.activity.ElevationGain
			band.ActivityIDs = append(band.ActivityIDs, ao.activity.ID)
		}
		if band.Count == 0 {
			continue
		}
		band.MeanDistance /= float64(band.Count)
		band.MeanMovingTime /= float64(band.Count)
		band.MeanElevation /= float64(band.Count)
		sort.Slice(band.ActivityIDs, func(i, j int) bool {
			return band.ActivityIDs[i] < band.ActivityIDs[j]
		})
		bands = append(bands, band)
	}

	// Name bands by ascending mean load so "Recovery" is always lightest.
	sort.Slice(bands, func(i, j int) bool {
		return bands[i].MeanMovingTime < bands[j].MeanMovingTime
	})
	for i := range bands {
		bands[i].Name = bandNames[i]
	}
	return bands, nil
}

// featureScales returns per-dimension maxima for normalization.
func featureScales(activities []db.Activity) (distance, moving, elevation float64) {
	for _, a := range activities {
		if a.Distance > distance {
			distance = a.Distance
		}
		if float64(a.MovingTime) > moving {
			moving = float64(a.MovingTime)
		}
		if a.ElevationGain > elevation {
			elevation = a.ElevationGain
		}
	}
	return distance, moving, elevation
}

func safeDiv(v, max float64) float64 {
	if max == 0 {
		return 0
	}
	return v / max
}
