// Package auth provides Strava OAuth2 authentication and token lifecycle
// management.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/tguillot/straviz/internal/strava"
)

// Strava OAuth2 endpoints.
const (
	authURL  = "https://www.strava.com/oauth/authorize"
	tokenURL = "https://www.strava.com/oauth/token"
)

// Strava expects a single comma-separated scope parameter, not the
// space-separated list oauth2 would build from multiple entries.
const scope = "read,activity:read_all,profile:read_all"

// Authenticator drives the authorization-code + PKCE flow.
type Authenticator struct {
	cfg *oauth2.Config
}

// NewAuthenticator builds an Authenticator from Strava app credentials.
func NewAuthenticator(cfg *strava.Config) *Authenticator {
	return &Authenticator{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
	}
}

// Config returns the underlying oauth2 config.
func (a *Authenticator) Config() *oauth2.Config {
	return a.cfg
}

// AuthCodeURL returns the Strava authorization URL for the given CSRF state
// and PKCE verifier.
func (a *Authenticator) AuthCodeURL(state, verifier string) string {
	return a.cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for a token, proving possession of
// the PKCE verifier.
func (a *Authenticator) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := a.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return token, nil
}

// GenerateVerifier creates a PKCE code verifier.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// GenerateState creates a random state string for OAuth CSRF protection.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
