package db

import "time"

// Athlete represents a Strava athlete profile.
type Athlete struct {
	ID         int64
	Username   string
	Firstname  string
	Lastname   string
	City       string
	Country    string
	Profile    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastSyncAt *time.Time // nullable; the sync marker
}

// Session represents an authenticated web session with its OAuth tokens.
type Session struct {
	ID           string
	AthleteID    int64
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Activity represents a cached Strava activity.
type Activity struct {
	ID               int64
	AthleteID        int64
	Name             string
	Type             string
	SportType        string
	Distance         float64
	MovingTime       int
	ElapsedTime      int
	ElevationGain    float64
	StartDate        time.Time
	StartDateLocal   time.Time
	AverageSpeed     float64
	MaxSpeed         float64
	AverageHeartrate *float64 // nullable
	MaxHeartrate     *float64 // nullable
	AverageWatts     *float64 // nullable
	Kilojoules       *float64 // nullable
	SufferScore      *float64 // nullable
	CreatedAt        time.Time
}
