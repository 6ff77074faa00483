package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func testToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
		TokenType:    "Bearer",
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store := NewSessionStore(&oauth2.Config{})
	ctx := context.Background()

	session, err := store.Create(ctx, testToken(), 42, "Jo")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.ID == "" {
		t.Fatal("Create() returned empty session ID")
	}
	if session.Manager == nil {
		t.Fatal("Create() returned session without token manager")
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil for existing session")
	}
	if got.AthleteID != 42 || got.AthleteName != "Jo" {
		t.Errorf("Get() = %d/%q, want 42/Jo", got.AthleteID, got.AthleteName)
	}

	store.Delete(ctx, session.ID)
	if got, _ := store.Get(ctx, session.ID); got != nil {
		t.Error("Get() returned session after Delete()")
	}
}

func TestSessionStoreUnknownID(t *testing.T) {
	store := NewSessionStore(&oauth2.Config{})
	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("Get() returned session for unknown ID")
	}
}

func TestSessionStoreCookies(t *testing.T) {
	store := NewSessionStore(&oauth2.Config{})
	ctx := context.Background()

	session, err := store.Create(ctx, testToken(), 7, "Sam")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rec := httptest.NewRecorder()
	store.SetCookie(rec, session)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	got, err := store.GetFromRequest(req)
	if err != nil {
		t.Fatalf("GetFromRequest() error = %v", err)
	}
	if got == nil || got.ID != session.ID {
		t.Error("GetFromRequest() did not resolve the session from the cookie")
	}

	// Without the cookie there is no session and no error.
	got, err = store.GetFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("GetFromRequest() error = %v", err)
	}
	if got != nil {
		t.Error("GetFromRequest() returned session for cookieless request")
	}
}
