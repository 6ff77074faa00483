package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrSessionInvalid is returned once the token can no longer be refreshed.
// The user must re-authenticate.
var ErrSessionInvalid = errors.New("auth: session invalid")

// refreshWindow is how long before expiry a token is refreshed.
const refreshWindow = 5 * time.Minute

// Manager owns one athlete's OAuth token and refreshes it transparently.
// It implements strava.TokenProvider. The mutex is held for the duration of
// a refresh, so concurrent callers never trigger a second refresh; they
// block and observe the result of the in-flight one.
type Manager struct {
	cfg *oauth2.Config

	mu        sync.Mutex
	token     *oauth2.Token
	onRefresh func(*oauth2.Token)
}

// NewManager creates a Manager holding the given token.
func NewManager(cfg *oauth2.Config, token *oauth2.Token) *Manager {
	return &Manager{cfg: cfg, token: token}
}

// OnRefresh registers a callback invoked with every refreshed token, for
// persisting it. The callback runs with the manager lock held.
func (m *Manager) OnRefresh(fn func(*oauth2.Token)) {
	m.mu.Lock()
	m.onRefresh = fn
	m.mu.Unlock()
}

// AccessToken returns a bearer token valid for at least the refresh window,
// refreshing first if needed. After a failed refresh the session is
// invalidated and this and all subsequent calls return ErrSessionInvalid.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == nil {
		return "", ErrSessionInvalid
	}

	if m.token.Expiry.IsZero() || time.Until(m.token.Expiry) > refreshWindow {
		return m.token.AccessToken, nil
	}

	// Force a refresh by presenting only the refresh token; a token source
	// seeded with a still-valid access token would hand it straight back.
	src := m.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: m.token.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		m.token = nil
		return "", fmt.Errorf("%w: refreshing token: %v", ErrSessionInvalid, err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = m.token.RefreshToken
	}
	m.token = fresh
	if m.onRefresh != nil {
		m.onRefresh(fresh)
	}
	return fresh.AccessToken, nil
}

// Token returns a copy of the current token, or nil if invalidated.
func (m *Manager) Token() *oauth2.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil
	}
	copy := *m.token
	return &copy
}

// Invalidate discards the token, e.g. on logout or an irrecoverable 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}
