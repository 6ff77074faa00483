package strava

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// staticTokens returns a fixed token without refreshing.
type staticTokens string

func (s staticTokens) AccessToken(_ context.Context) (string, error) {
	return string(s), nil
}

func TestActivitiesPage(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      any
		wantCount int
		wantErr   error
	}{
		{
			name:   "full page",
			status: http.StatusOK,
			body: []Activity{
				{ID: 1, Name: "Morning Run", Type: "Run", Distance: 5000},
				{ID: 2, Name: "Evening Ride", Type: "Ride", Distance: 20000},
			},
			wantCount: 2,
		},
		{
			name:      "empty page",
			status:    http.StatusOK,
			body:      []Activity{},
			wantCount: 0,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    map[string]string{"message": "Authorization Error"},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    map[string]string{"message": "Rate Limit Exceeded"},
			wantErr: ErrRemoteUnavailable,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    map[string]string{"message": "Bad Gateway"},
			wantErr: ErrRemoteUnavailable,
		},
		{
			name:    "bad request",
			status:  http.StatusBadRequest,
			body:    map[string]string{"message": "Bad Request"},
			wantErr: ErrRequestFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
					t.Errorf("Authorization header = %q, want %q", got, "Bearer test-token")
				}
				if got := r.URL.Query().Get("per_page"); got != "100" {
					t.Errorf("per_page = %q, want %q", got, "100")
				}
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			client := NewClient(staticTokens("test-token"), WithBaseURL(server.URL))
			activities, err := client.ActivitiesPage(context.Background(), 1, 100, PageOptions{})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ActivitiesPage() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ActivitiesPage() error = %v", err)
			}
			if len(activities) != tt.wantCount {
				t.Errorf("got %d activities, want %d", len(activities), tt.wantCount)
			}
		})
	}
}

func TestActivitiesPageSendsFilters(t *testing.T) {
	var gotAfter, gotPage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAfter = r.URL.Query().Get("after")
		gotPage = r.URL.Query().Get("page")
		_ = json.NewEncoder(w).Encode([]Activity{})
	}))
	defer server.Close()

	client := NewClient(staticTokens("tok"), WithBaseURL(server.URL))
	after := mustParseTime(t, "2024-01-01T00:00:00Z")
	if _, err := client.ActivitiesPage(context.Background(), 3, 100, PageOptions{After: after}); err != nil {
		t.Fatalf("ActivitiesPage() error = %v", err)
	}

	if gotPage != "3" {
		t.Errorf("page = %q, want %q", gotPage, "3")
	}
	if gotAfter != "1704067200" {
		t.Errorf("after = %q, want %q", gotAfter, "1704067200")
	}
}

func TestAthlete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athlete" {
			t.Errorf("path = %q, want /athlete", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Athlete{ID: 42, Username: "eddy", Firstname: "Eddy"})
	}))
	defer server.Close()

	client := NewClient(staticTokens("tok"), WithBaseURL(server.URL))
	athlete, err := client.Athlete(context.Background())
	if err != nil {
		t.Fatalf("Athlete() error = %v", err)
	}
	if athlete.ID != 42 || athlete.Username != "eddy" {
		t.Errorf("Athlete() = %+v, want id 42 username eddy", athlete)
	}
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parsing time %q: %v", s, err)
	}
	return parsed
}
