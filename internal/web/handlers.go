package web

import (
	"net/http"

	"github.com/tguillot/straviz/internal/auth"
	"github.com/tguillot/straviz/internal/db"
	"github.com/tguillot/straviz/internal/strava"
)

const (
	stateCookieName    = "oauth_state"
	verifierCookieName = "oauth_verifier"
)

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	auth       *auth.Authenticator
	sessions   SessionManager
	templates  *Templates
	database   *db.DB
	syncs      *syncRegistry
	stravaOpts []strava.Option
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(authenticator *auth.Authenticator, sessions SessionManager, templates *Templates, database *db.DB, stravaOpts ...strava.Option) *Handlers {
	return &Handlers{
		auth:       authenticator,
		sessions:   sessions,
		templates:  templates,
		database:   database,
		syncs:      newSyncRegistry(database),
		stravaOpts: stravaOpts,
	}
}

// client returns a Strava API client bound to the session's token manager.
func (h *Handlers) client(session *Session) *strava.Client {
	return strava.NewClient(session.Manager, h.stravaOpts...)
}

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetFromRequest(r)
	if err != nil {
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		return
	}

	data := HomePageData{
		PageData: PageData{
			Title:       "Straviz",
			CurrentPath: r.URL.Path,
		},
		Authenticated: session != nil,
	}
	if session != nil {
		data.User = &UserData{
			ID:   session.AthleteID,
			Name: session.AthleteName,
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, "home", data); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
}

// Dashboard handles the dashboard page (GET /dashboard).
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetFromRequest(r)
	if err != nil {
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if session == nil {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	lastSync, err := h.database.Athletes().LastSync(r.Context(), session.AthleteID)
	if err != nil {
		http.Error(w, "Failed to load sync status", http.StatusInternalServerError)
		return
	}
	count, err := h.database.Activities().Count(r.Context(), session.AthleteID)
	if err != nil {
		http.Error(w, "Failed to load activities", http.StatusInternalServerError)
		return
	}

	data := DashboardPageData{
		PageData: PageData{
			Title:       "Dashboard",
			CurrentPath: r.URL.Path,
		},
		User: &UserData{
			ID:   session.AthleteID,
			Name: session.AthleteName,
		},
		Activities: count,
	}
	if lastSync != nil {
		data.LastSyncAt = lastSync.Format("Jan 2, 2006 15:04")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, "dashboard", data); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
}

// Login initiates the Strava OAuth flow with PKCE (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}
	verifier := auth.GenerateVerifier()

	// State and verifier live in short-lived cookies for callback validation.
	setFlowCookie(w, stateCookieName, state)
	setFlowCookie(w, verifierCookieName, verifier)

	http.Redirect(w, r, h.auth.AuthCodeURL(state, verifier), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Strava (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}
	verifierCookie, err := r.Cookie(verifierCookieName)
	if err != nil {
		http.Error(w, "Missing verifier cookie", http.StatusBadRequest)
		return
	}

	if state := r.URL.Query().Get("state"); state != stateCookie.Value {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	clearFlowCookie(w, stateCookieName)
	clearFlowCookie(w, verifierCookieName)

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Strava auth error: "+errMsg, http.StatusBadRequest)
		return
	}

	token, err := h.auth.Exchange(r.Context(), r.URL.Query().Get("code"), verifierCookie.Value)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		return
	}

	// Fetch the athlete profile with a throwaway manager; the session owns
	// the long-lived one.
	client := strava.NewClient(auth.NewManager(h.auth.Config(), token), h.stravaOpts...)
	athlete, err := client.Athlete(r.Context())
	if err != nil {
		http.Error(w, "Failed to get athlete info", http.StatusInternalServerError)
		return
	}

	if err := h.database.Athletes().Upsert(r.Context(), &db.Athlete{
		ID:        athlete.ID,
		Username:  athlete.Username,
		Firstname: athlete.Firstname,
		Lastname:  athlete.Lastname,
		City:      athlete.City,
		Country:   athlete.Country,
		Profile:   athlete.Profile,
	}); err != nil {
		http.Error(w, "Failed to save athlete", http.StatusInternalServerError)
		return
	}

	session, err := h.sessions.Create(r.Context(), token, athlete.ID, athlete.Firstname)
	if err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.sessions.SetCookie(w, session)

	http.Redirect(w, r, "/dashboard", http.StatusTemporaryRedirect)
}

// Logout clears the session and the athlete's cached data (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetFromRequest(r)
	if err != nil {
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if session != nil {
		session.Manager.Invalidate()
		h.sessions.Delete(r.Context(), session.ID)
		if err := h.database.ClearAthlete(r.Context(), session.AthleteID); err != nil {
			http.Error(w, "Failed to clear athlete data", http.StatusInternalServerError)
			return
		}
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})
}

func clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
