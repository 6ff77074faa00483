package insights

import (
	"testing"
	"time"

	"github.com/tguillot/straviz/internal/db"
)

func activity(id int64, distance float64, movingTime int, elevation float64) db.Activity {
	return db.Activity{
		ID:            id,
		Type:          "Ride",
		Distance:      distance,
		MovingTime:    movingTime,
		ElevationGain: elevation,
		StartDate:     time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestDetectEffortBandsTooFewActivities(t *testing.T) {
	activities := []db.Activity{
		activity(1, 10000, 1800, 100),
		activity(2, 12000, 2000, 120),
	}
	bands, err := DetectEffortBands(activities, DefaultEffortConfig())
	if err != nil {
		t.Fatalf("DetectEffortBands() error = %v", err)
	}
	if bands != nil {
		t.Errorf("got %d bands, want nil for insufficient data", len(bands))
	}
}

func TestDetectEffortBandsSeparatesLoads(t *testing.T) {
	var activities []db.Activity
	// Two clearly separated populations: short recovery spins and long rides.
	for i := int64(0); i < 10; i++ {
		activities = append(activities, activity(i, 10000+float64(i)*200, 1800, 50))
	}
	for i := int64(10); i < 20; i++ {
		activities = append(activities, activity(i, 100000+float64(i)*500, 14400, 1200))
	}

	bands, err := DetectEffortBands(activities, EffortConfig{NumBands: 2, MinActivities: 10})
	if err != nil {
		t.Fatalf("DetectEffortBands() error = %v", err)
	}
	if len(bands) != 2 {
		t.Fatalf("got %d bands, want 2", len(bands))
	}

	// Ordered lightest first and named accordingly.
	if bands[0].Name != "Recovery" || bands[1].Name != "Steady" {
		t.Errorf("band names = %q, %q; want Recovery, Steady", bands[0].Name, bands[1].Name)
	}
	if bands[0].MeanMovingTime >= bands[1].MeanMovingTime {
		t.Errorf("bands not ordered by mean load: %v >= %v", bands[0].MeanMovingTime, bands[1].MeanMovingTime)
	}

	total := bands[0].Count + bands[1].Count
	if total != len(activities) {
		t.Errorf("band counts sum to %d, want %d", total, len(activities))
	}
}
