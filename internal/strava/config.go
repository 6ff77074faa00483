package strava

import (
	"errors"
	"os"
)

// ErrMissingCredentials is returned when STRAVA_CLIENT_ID or
// STRAVA_CLIENT_SECRET is not set.
var ErrMissingCredentials = errors.New("missing STRAVA_CLIENT_ID or STRAVA_CLIENT_SECRET environment variable")

// Config holds Strava application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// DefaultRedirectURI is used when STRAVA_REDIRECT_URI is not set.
const DefaultRedirectURI = "http://127.0.0.1:8080/callback"

// LoadConfig reads Strava configuration from environment variables.
// Returns ErrMissingCredentials if the client id or secret is not set.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		ClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),
		RedirectURI:  os.Getenv("STRAVA_REDIRECT_URI"),
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = DefaultRedirectURI
	}
	return cfg, nil
}
