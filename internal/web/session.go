// Package web provides the HTTP server and dashboard for Straviz.
package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/tguillot/straviz/internal/auth"
	"github.com/tguillot/straviz/internal/db"
)

const (
	sessionCookieName = "session_id"
	sessionTTL        = 24 * time.Hour
)

// Session represents an authenticated athlete session. The token manager is
// shared by every request on the session, so token refreshes stay
// single-flight.
type Session struct {
	ID          string
	AthleteID   int64
	AthleteName string
	Manager     *auth.Manager
	CreatedAt   time.Time
}

// SessionManager defines the interface for session management. Get and
// GetFromRequest return (nil, nil) for a missing or expired session; a
// non-nil error means the session could not be looked up at all and must not
// be mistaken for "not authenticated".
type SessionManager interface {
	Create(ctx context.Context, token *oauth2.Token, athleteID int64, athleteName string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string)
	GetFromRequest(r *http.Request) (*Session, error)
	SetCookie(w http.ResponseWriter, session *Session)
	ClearCookie(w http.ResponseWriter)
}

// ============================================================================
// In-Memory Session Store (for development/testing)
// ============================================================================

// SessionStore manages sessions in memory.
type SessionStore struct {
	oauthCfg *oauth2.Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore(oauthCfg *oauth2.Config) *SessionStore {
	return &SessionStore{
		oauthCfg: oauthCfg,
		sessions: make(map[string]*Session),
	}
}

// Create generates a new session owning a token manager for the athlete.
func (s *SessionStore) Create(_ context.Context, token *oauth2.Token, athleteID int64, athleteName string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:          id,
		AthleteID:   athleteID,
		AthleteName: athleteName,
		Manager:     auth.NewManager(s.oauthCfg, token),
		CreatedAt:   time.Now(),
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if time.Since(session.CreatedAt) > sessionTTL {
		return nil, nil
	}
	return session, nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// GetFromRequest extracts the session from the request cookie.
func (s *SessionStore) GetFromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, nil
	}
	return s.Get(r.Context(), cookie.Value)
}

// SetCookie sets the session cookie on the response.
func (s *SessionStore) SetCookie(w http.ResponseWriter, session *Session) {
	setCookie(w, session)
}

// ClearCookie removes the session cookie from the response.
func (s *SessionStore) ClearCookie(w http.ResponseWriter) {
	clearCookie(w)
}

// ============================================================================
// Database-Backed Session Store
// ============================================================================

// DBSessionStore persists sessions in PostgreSQL. Token managers are cached
// in memory per session ID so refresh single-flight holds across requests;
// refreshed tokens are written back to the sessions table.
type DBSessionStore struct {
	database *db.DB
	oauthCfg *oauth2.Config

	mu       sync.Mutex
	managers map[string]*auth.Manager
}

// NewDBSessionStore creates a new database-backed session store.
func NewDBSessionStore(database *db.DB, oauthCfg *oauth2.Config) *DBSessionStore {
	return &DBSessionStore{
		database: database,
		oauthCfg: oauthCfg,
		managers: make(map[string]*auth.Manager),
	}
}

// Create generates a new session and stores it in the database.
func (s *DBSessionStore) Create(ctx context.Context, token *oauth2.Token, athleteID int64, athleteName string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dbSession := &db.Session{
		ID:           id,
		AthleteID:    athleteID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		CreatedAt:    now,
		ExpiresAt:    now.Add(sessionTTL),
	}
	if err := s.database.Sessions().Create(ctx, dbSession); err != nil {
		return nil, err
	}

	return &Session{
		ID:          id,
		AthleteID:   athleteID,
		AthleteName: athleteName,
		Manager:     s.manager(id, token),
		CreatedAt:   now,
	}, nil
}

// Get retrieves a session by ID from the database. A missing or expired
// session is (nil, nil); a storage failure is returned as an error so the
// caller does not confuse an outage with a logged-out user.
func (s *DBSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	dbSession, err := s.database.Sessions().Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	athlete, err := s.database.Athletes().Get(ctx, dbSession.AthleteID)
	if errors.Is(err, db.ErrNotFound) {
		// Orphaned session row; treat as logged out.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:          dbSession.ID,
		AthleteID:   dbSession.AthleteID,
		AthleteName: athlete.Firstname,
		Manager: s.manager(id, &oauth2.Token{
			AccessToken:  dbSession.AccessToken,
			RefreshToken: dbSession.RefreshToken,
			Expiry:       dbSession.TokenExpiry,
			TokenType:    "Bearer",
		}),
		CreatedAt: dbSession.CreatedAt,
	}, nil
}

// Delete removes a session from the database and drops its token manager.
func (s *DBSessionStore) Delete(ctx context.Context, id string) {
	_ = s.database.Sessions().Delete(ctx, id)
	s.mu.Lock()
	delete(s.managers, id)
	s.mu.Unlock()
}

// GetFromRequest extracts the session from the request cookie.
func (s *DBSessionStore) GetFromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, nil
	}
	return s.Get(r.Context(), cookie.Value)
}

// SetCookie sets the session cookie on the response.
func (s *DBSessionStore) SetCookie(w http.ResponseWriter, session *Session) {
	setCookie(w, session)
}

// ClearCookie removes the session cookie from the response.
func (s *DBSessionStore) ClearCookie(w http.ResponseWriter) {
	clearCookie(w)
}

// manager returns the cached token manager for a session, creating it from
// the stored token on first use.
func (s *DBSessionStore) manager(id string, token *oauth2.Token) *auth.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.managers[id]; ok {
		return m
	}
	m := auth.NewManager(s.oauthCfg, token)
	m.OnRefresh(func(fresh *oauth2.Token) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.database.Sessions().UpdateToken(ctx, id, fresh.AccessToken, fresh.RefreshToken, fresh.Expiry)
	})
	s.managers[id] = m
	return m
}

// ============================================================================
// Helper Functions
// ============================================================================

// generateSessionID creates a cryptographically random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func setCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
}

func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// Ensure both stores implement SessionManager.
var (
	_ SessionManager = (*SessionStore)(nil)
	_ SessionManager = (*DBSessionStore)(nil)
)
