package strava

import "time"

// Activity is one recorded exercise session as returned by the Strava API.
// Optional physiological fields are pointers so that "not measured" stays
// distinguishable from a measured zero.
type Activity struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	SportType          string   `json:"sport_type"`
	Distance           float64  `json:"distance"`
	MovingTime         int      `json:"moving_time"`
	ElapsedTime        int      `json:"elapsed_time"`
	TotalElevationGain float64  `json:"total_elevation_gain"`
	StartDate          string   `json:"start_date"`
	StartDateLocal     string   `json:"start_date_local"`
	AverageSpeed       float64  `json:"average_speed"`
	MaxSpeed           float64  `json:"max_speed"`
	AverageHeartrate   *float64 `json:"average_heartrate,omitempty"`
	MaxHeartrate       *float64 `json:"max_heartrate,omitempty"`
	AverageWatts       *float64 `json:"average_watts,omitempty"`
	Kilojoules         *float64 `json:"kilojoules,omitempty"`
	SufferScore        *float64 `json:"suffer_score,omitempty"`
}

// StartTime parses the UTC start timestamp.
// Returns the zero time if the timestamp is malformed.
func (a Activity) StartTime() time.Time {
	t, _ := time.Parse(time.RFC3339, a.StartDate)
	return t
}

// Athlete is the authenticated athlete's profile snapshot.
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Profile   string `json:"profile"`
}
