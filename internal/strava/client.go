// Package strava provides a client for the Strava REST API v3.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	baseURL   = "https://www.strava.com/api/v3"
	userAgent = "straviz/1.0"
)

// Sentinel errors classifying remote failures.
var (
	// ErrUnauthorized is returned on HTTP 401; the session must be torn down.
	ErrUnauthorized = errors.New("strava: unauthorized")

	// ErrRemoteUnavailable is returned on HTTP 429 and 5xx; a fresh attempt
	// later is safe.
	ErrRemoteUnavailable = errors.New("strava: remote unavailable")

	// ErrRequestFailed is returned on any other non-2xx status.
	ErrRequestFailed = errors.New("strava: request failed")
)

// TokenProvider supplies a valid bearer token for each request.
// Implementations refresh transparently; the client never retries a 401.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is a Strava API client.
type Client struct {
	tokens     TokenProvider
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Strava API client using tokens from the provider.
func NewClient(tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageOptions narrows an activity page request.
type PageOptions struct {
	// After restricts results to activities starting after this time.
	After time.Time
	// Before restricts results to activities starting before this time.
	Before time.Time
}

// ActivitiesPage fetches one page of the athlete's activities.
// Pages start at 1. A batch shorter than perPage (including an empty one)
// means no further pages exist; the caller decides when to stop.
func (c *Client) ActivitiesPage(ctx context.Context, page, perPage int, opts PageOptions) ([]Activity, error) {
	params := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	if !opts.After.IsZero() {
		params.Set("after", strconv.FormatInt(opts.After.Unix(), 10))
	}
	if !opts.Before.IsZero() {
		params.Set("before", strconv.FormatInt(opts.Before.Unix(), 10))
	}

	var activities []Activity
	if err := c.get(ctx, "/athlete/activities?"+params.Encode(), &activities); err != nil {
		return nil, fmt.Errorf("fetching activities page %d: %w", page, err)
	}
	return activities, nil
}

// Athlete fetches the authenticated athlete's profile.
func (c *Client) Athlete(ctx context.Context) (*Athlete, error) {
	var athlete Athlete
	if err := c.get(ctx, "/athlete", &athlete); err != nil {
		return nil, fmt.Errorf("fetching athlete: %w", err)
	}
	return &athlete, nil
}

// get performs an authenticated GET and decodes the JSON response into v.
func (c *Client) get(ctx context.Context, path string, v any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classifyStatus maps an HTTP status to the client's error taxonomy.
// 2xx maps to nil.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w (status %d)", ErrRemoteUnavailable, status)
	default:
		return fmt.Errorf("%w (status %d)", ErrRequestFailed, status)
	}
}
