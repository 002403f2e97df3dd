// Package archive is the HTTP client for the snapshot archive backend:
// timeline listing, raw content retrieval, textual diffs and timestamp
// resolution. Replay pages are never fetched here; ReplayURL only builds
// their address for embedding and off-screen capture.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/timescrub/horosafe"
)

// SnapshotEntry is one row of the timeline listing as sent by the backend.
// Intensity is optional; nil means the backend did not score the change.
type SnapshotEntry struct {
	Timestamp string   `json:"timestamp"`
	Status    int      `json:"status"`
	Digest    string   `json:"digest"`
	Intensity *float64 `json:"intensity,omitempty"`
}

// TimelineResponse is the body of GET /timeline.
type TimelineResponse struct {
	URL       string          `json:"url"`
	Snapshots []SnapshotEntry `json:"snapshots"`
}

// DiffSummary counts lines per tag.
type DiffSummary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// DiffChange is one tagged run of text: added, removed or equal.
type DiffChange struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// TextDiff is the body of GET /diff.
type TextDiff struct {
	FromTimestamp string       `json:"from_timestamp"`
	ToTimestamp   string       `json:"to_timestamp"`
	Summary       DiffSummary  `json:"summary"`
	Changes       []DiffChange `json:"changes"`
}

// Resolution is the body of GET /resolve: the capture nearest to a
// requested instant.
type Resolution struct {
	RequestedAt     string `json:"requested_at"`
	ActualTimestamp string `json:"actual_timestamp"`
	ReplayURL       string `json:"replay_url"`
}

// Client talks to one archive backend.
type Client struct {
	base      string
	apiPrefix string
	userAgent string
	maxBytes  int64
	http      *http.Client
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (30s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http = &http.Client{Timeout: d}
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// WithMaxBytes caps response bodies. Default: 10MB.
func WithMaxBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBytes = n
		}
	}
}

// WithAPIPrefix mounts timeline, diff and resolve under a prefix such as
// "/api/v1". Replay and raw content endpoints are never prefixed.
func WithAPIPrefix(p string) Option {
	return func(cl *Client) { cl.apiPrefix = "/" + strings.Trim(p, "/") }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:      strings.TrimRight(baseURL, "/"),
		userAgent: "timescrub/1.0",
		maxBytes:  10 * 1024 * 1024,
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.apiPrefix == "/" {
		c.apiPrefix = ""
	}
	return c
}

// BaseURL returns the backend base URL without trailing slash.
func (c *Client) BaseURL() string { return c.base }

// Timeline lists the snapshots of pageURL.
func (c *Client) Timeline(ctx context.Context, pageURL string) (*TimelineResponse, error) {
	q := url.Values{"url": {pageURL}}
	var out TimelineResponse
	if err := c.getJSON(ctx, c.apiPrefix+"/timeline?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("archive: timeline %s: %w", pageURL, err)
	}
	if out.URL == "" {
		out.URL = pageURL
	}
	return &out, nil
}

// Content returns the raw archived markup of pageURL at compactTS.
func (c *Client) Content(ctx context.Context, compactTS, pageURL string) ([]byte, error) {
	body, err := c.get(ctx, "/snapshot_content/"+compactTS+"/"+pageURL)
	if err != nil {
		return nil, fmt.Errorf("archive: content %s@%s: %w", pageURL, compactTS, err)
	}
	return body, nil
}

// TextDiff asks the backend for the line diff between two compact timestamps.
func (c *Client) TextDiff(ctx context.Context, pageURL, fromTS, toTS string) (*TextDiff, error) {
	q := url.Values{"url": {pageURL}, "from": {fromTS}, "to": {toTS}}
	var out TextDiff
	if err := c.getJSON(ctx, c.apiPrefix+"/diff?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("archive: diff %s %s..%s: %w", pageURL, fromTS, toTS, err)
	}
	return &out, nil
}

// Resolve returns the capture of pageURL nearest to the compact instant at.
func (c *Client) Resolve(ctx context.Context, pageURL, at string) (*Resolution, error) {
	q := url.Values{"url": {pageURL}, "at": {at}}
	var out Resolution
	if err := c.getJSON(ctx, c.apiPrefix+"/resolve?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("archive: resolve %s@%s: %w", pageURL, at, err)
	}
	return &out, nil
}

// ReplayURL is the embeddable replay page of pageURL at compactTS.
func (c *Client) ReplayURL(compactTS, pageURL string) string {
	return c.base + "/web/" + compactTS + "/" + pageURL
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("archive: request", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: http %d", ErrNetwork, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := horosafe.LimitedReadAll(resp.Body, c.maxBytes)
	if errors.Is(err, horosafe.ErrTooLarge) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return body, nil
}
