package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/tguillot/straviz/internal/auth"
	"github.com/tguillot/straviz/internal/db"
	"github.com/tguillot/straviz/internal/insights"
	"github.com/tguillot/straviz/internal/stats"
	"github.com/tguillot/straviz/internal/strava"
	syncsvc "github.com/tguillot/straviz/internal/sync"
)

// syncRegistry hands out one sync service per athlete so concurrent
// requests for the same athlete share the in-progress guard.
type syncRegistry struct {
	store syncsvc.Store

	mu       stdsync.Mutex
	services map[int64]*syncsvc.Service
}

func newSyncRegistry(database *db.DB) *syncRegistry {
	return &syncRegistry{
		store:    syncsvc.DBStore{DB: database},
		services: make(map[int64]*syncsvc.Service),
	}
}

func (r *syncRegistry) forAthlete(athleteID int64) *syncsvc.Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.services[athleteID]
	if !ok {
		svc = syncsvc.New(r.store)
		r.services[athleteID] = svc
	}
	return svc
}

// requireSession resolves the request session or writes a 401. A session
// lookup failure is a storage outage, not a missing login, and maps to 503.
func (h *Handlers) requireSession(w http.ResponseWriter, r *http.Request) *Session {
	session, err := h.sessions.GetFromRequest(r)
	if err != nil {
		h.writeAPIError(w, r, nil, err)
		return nil
	}
	if session == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return nil
	}
	return session
}

// StartSync kicks off a background sync run (POST /api/sync).
func (h *Handlers) StartSync(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	svc := h.syncs.forAthlete(session.AthleteID)
	runID, err := svc.Start(r.Context(), h.client(session), session.AthleteID)
	if errors.Is(err, syncsvc.ErrSyncInProgress) {
		writeError(w, http.StatusConflict, "sync already in progress")
		return
	}
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// CancelSync aborts an in-flight sync run (DELETE /api/sync).
func (h *Handlers) CancelSync(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}
	h.syncs.forAthlete(session.AthleteID).Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// SyncProgress reports the state of the current or last sync run together
// with the persisted sync marker (GET /api/sync/progress).
func (h *Handlers) SyncProgress(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	svc := h.syncs.forAthlete(session.AthleteID)

	// A token revocation discovered by a background pass must still log the
	// athlete out; the polling request is where it surfaces.
	if err := svc.Err(); errors.Is(err, strava.ErrUnauthorized) || errors.Is(err, auth.ErrSessionInvalid) {
		h.writeAPIError(w, r, session, err)
		return
	}

	lastSync, err := h.database.Athletes().LastSync(r.Context(), session.AthleteID)
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}

	resp := struct {
		syncsvc.Progress
		LastSyncAt *int64 `json:"lastSyncAt"` // unix milliseconds, null if never synced
	}{
		Progress: svc.Progress(),
	}
	if lastSync != nil {
		ms := lastSync.UnixMilli()
		resp.LastSyncAt = &ms
	}

	writeJSON(w, http.StatusOK, resp)
}

// activityJSON is the wire shape of a cached activity.
type activityJSON struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	SportType        string    `json:"sportType"`
	Distance         float64   `json:"distance"`
	MovingTime       int       `json:"movingTime"`
	ElapsedTime      int       `json:"elapsedTime"`
	ElevationGain    float64   `json:"totalElevationGain"`
	StartDate        time.Time `json:"startDate"`
	StartDateLocal   time.Time `json:"startDateLocal"`
	AverageSpeed     float64   `json:"averageSpeed"`
	MaxSpeed         float64   `json:"maxSpeed"`
	AverageHeartrate *float64  `json:"averageHeartrate,omitempty"`
	MaxHeartrate     *float64  `json:"maxHeartrate,omitempty"`
	AverageWatts     *float64  `json:"averageWatts,omitempty"`
	Kilojoules       *float64  `json:"kilojoules,omitempty"`
	SufferScore      *float64  `json:"sufferScore,omitempty"`
}

func toActivityJSON(a db.Activity) activityJSON {
	return activityJSON{
		ID:               a.ID,
		Name:             a.Name,
		Type:             a.Type,
		SportType:        a.SportType,
		Distance:         a.Distance,
		MovingTime:       a.MovingTime,
		ElapsedTime:      a.ElapsedTime,
		ElevationGain:    a.ElevationGain,
		StartDate:        a.StartDate,
		StartDateLocal:   a.StartDateLocal,
		AverageSpeed:     a.AverageSpeed,
		MaxSpeed:         a.MaxSpeed,
		AverageHeartrate: a.AverageHeartrate,
		MaxHeartrate:     a.MaxHeartrate,
		AverageWatts:     a.AverageWatts,
		Kilojoules:       a.Kilojoules,
		SufferScore:      a.SufferScore,
	}
}

// Activities returns all cached activities, newest first (GET /api/activities).
func (h *Handlers) Activities(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	activities, err := h.database.Activities().All(r.Context(), session.AthleteID)
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}

	out := make([]activityJSON, 0, len(activities))
	for _, a := range activities {
		out = append(out, toActivityJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// Totals aggregates the cached set (GET /api/stats/totals).
// Optional query params: type, from, to (YYYY-MM-DD, inclusive).
func (h *Handlers) Totals(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	filter := stats.Filter{Type: r.URL.Query().Get("type")}
	if r.URL.Query().Get("from") != "" || r.URL.Query().Get("to") != "" {
		dr, err := parseDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Range = &dr
	}

	activities, err := h.database.Activities().All(r.Context(), session.AthleteID)
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}

	writeJSON(w, http.StatusOK, stats.ComputeTotals(activities, filter))
}

// Series returns a grouped metric series over a date range
// (GET /api/stats/series?from=&to=&groupBy=&metric=&cumulative=).
func (h *Handlers) Series(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	q := r.URL.Query()
	dr, err := parseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	granularity, metric, err := parseSeriesParams(q.Get("groupBy"), q.Get("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	activities, err := h.database.Activities().All(r.Context(), session.AthleteID)
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}

	var buckets []stats.Bucket
	if q.Get("cumulative") == "true" {
		buckets = stats.CumulativeSeries(activities, dr, granularity, metric, time.Now())
	} else {
		buckets = stats.GroupedSeries(activities, dr, granularity, metric)
	}

	writeJSON(w, http.StatusOK, struct {
		Buckets []stats.Bucket      `json:"buckets"`
		Summary stats.SeriesSummary `json:"summary"`
		Metric  string              `json:"metric"`
		Unit    string              `json:"unit"`
	}{
		Buckets: buckets,
		Summary: stats.Summarize(buckets),
		Metric:  metric.Key,
		Unit:    metric.Unit,
	})
}

// compareRequest is the body of POST /api/stats/compare.
type compareRequest struct {
	Ranges []struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"ranges"`
	GroupBy    string `json:"groupBy"`
	Metric     string `json:"metric"`
	Cumulative bool   `json:"cumulative"`
}

// Compare aligns several date ranges on relative period labels
// (POST /api/stats/compare).
func (h *Handlers) Compare(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Ranges) == 0 {
		writeError(w, http.StatusBadRequest, "at least one range is required")
		return
	}

	ranges := make([]stats.DateRange, 0, len(req.Ranges))
	for _, rr := range req.Ranges {
		dr, err := parseDateRange(rr.From, rr.To)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ranges = append(ranges, dr)
	}
	granularity, metric, err := parseSeriesParams(req.GroupBy, req.Metric)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	activities, err := h.database.Activities().All(r.Context(), session.AthleteID)
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}

	rows := stats.CompareSeries(activities, ranges, granularity, metric, req.Cumulative, time.Now())
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// Years counts activities per calendar year, most recent first
// (GET /api/stats/years).
func (h *Handlers) Years(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	activities, err := h.database.Activities().All(r.Context(), session.AthleteID)
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.YearBreakdown(activities))
}

// Types aggregates activities per type (GET /api/stats/types).
func (h *Handlers) Types(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	activities, err := h.database.Activities().All(r.Context(), session.AthleteID)
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.TypeBreakdown(activities))
}

// EffortBands clusters cached activities into effort bands
// (GET /api/insights/efforts).
func (h *Handlers) EffortBands(w http.ResponseWriter, r *http.Request) {
	session := h.requireSession(w, r)
	if session == nil {
		return
	}

	activities, err := h.database.Activities().All(r.Context(), session.AthleteID)
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}

	bands, err := insights.DetectEffortBands(activities, insights.DefaultEffortConfig())
	if err != nil {
		h.writeAPIError(w, r, session, err)
		return
	}
	if bands == nil {
		bands = []insights.EffortBand{}
	}
	writeJSON(w, http.StatusOK, bands)
}

// parseDateRange parses inclusive from/to dates in YYYY-MM-DD form. The end
// date covers its whole day.
func parseDateRange(from, to string) (stats.DateRange, error) {
	f, err := time.Parse("2006-01-02", from)
	if err != nil {
		return stats.DateRange{}, fmt.Errorf("invalid from date %q", from)
	}
	t, err := time.Parse("2006-01-02", to)
	if err != nil {
		return stats.DateRange{}, fmt.Errorf("invalid to date %q", to)
	}
	t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if t.Before(f) {
		return stats.DateRange{}, fmt.Errorf("to date precedes from date")
	}
	return stats.DateRange{From: f, To: t}, nil
}

func parseSeriesParams(groupBy, metricKey string) (stats.Granularity, stats.Metric, error) {
	granularity, err := stats.ParseGranularity(groupBy)
	if err != nil {
		return "", stats.Metric{}, fmt.Errorf("invalid groupBy %q", groupBy)
	}
	metric, ok := stats.MetricByKey(metricKey)
	if !ok {
		return "", stats.Metric{}, fmt.Errorf("unknown metric %q", metricKey)
	}
	return granularity, metric, nil
}

// writeAPIError maps domain errors to HTTP responses. An invalid session is
// torn down so the client re-authenticates.
func (h *Handlers) writeAPIError(w http.ResponseWriter, r *http.Request, session *Session, err error) {
	switch {
	case errors.Is(err, auth.ErrSessionInvalid), errors.Is(err, strava.ErrUnauthorized):
		if session != nil {
			session.Manager.Invalidate()
			h.sessions.Delete(r.Context(), session.ID)
		}
		h.sessions.ClearCookie(w)
		writeError(w, http.StatusUnauthorized, "session expired")
	case errors.Is(err, strava.ErrRemoteUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Strava is unavailable, try again later")
	case errors.Is(err, db.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		log.Printf("api error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
