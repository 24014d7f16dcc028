package brightdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.brightdata.com"
	DefaultZone    = "mcp_unlocker"

	maxErrBody = 512
)

var (
	// ErrNotConfigured is returned when no API token is set.
	ErrNotConfigured = errors.New("brightdata api token not configured")
	// ErrSnapshotTimeout is returned when a snapshot is still running after all poll attempts.
	ErrSnapshotTimeout = errors.New("brightdata snapshot not ready")
)

type Config struct {
	APIToken          string  `split_words:"true"`
	Zone              string  `envconfig:"BRIGHTDATA_WEB_UNLOCKER_ZONE" default:"mcp_unlocker"`
	BaseURL           string  `split_words:"true" default:"https://api.brightdata.com"`
	RequestsPerSecond float64 `split_words:"true" default:"5"`
	HTTPTimeout       int     `split_words:"true" default:"60"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("brightdata: status %d: %s", e.StatusCode, e.Body)
}

// PollPolicy bounds snapshot polling. Each attempt waits Interval first.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

var (
	// FastPoll suits datasets that usually resolve in seconds (LinkedIn, Amazon).
	FastPoll = PollPolicy{Interval: 2500 * time.Millisecond, MaxAttempts: 10}
	// SlowPoll suits social and listing datasets.
	SlowPoll = PollPolicy{Interval: 5 * time.Second, MaxAttempts: 20}
)

// RequestInput is a Web Unlocker request.
type RequestInput struct {
	URL string
	// DataFormat is "markdown" to convert the page; empty keeps the raw body.
	DataFormat string
}

// Client talks to the BrightData REST API.
type Client struct {
	baseURL string
	token   string
	zone    string
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.HTTPTimeout) * time.Second}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	zone := cfg.Zone
	if zone == "" {
		zone = DefaultZone
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		baseURL: base,
		token:   cfg.APIToken,
		zone:    zone,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Configured reports whether an API token is present.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// Request fetches a page through the Web Unlocker zone.
func (c *Client) Request(ctx context.Context, in RequestInput) ([]byte, error) {
	body := map[string]string{
		"zone":   c.zone,
		"url":    in.URL,
		"format": "raw",
	}
	if in.DataFormat != "" {
		body["data_format"] = in.DataFormat
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/request", body)
}

// SearchURL builds the SERP URL for an engine. Unknown engines use Google.
func SearchURL(query, engine string) string {
	q := url.QueryEscape(query)
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "bing":
		return "https://www.bing.com/search?q=" + q
	case "yandex":
		return "https://yandex.com/search/?text=" + q
	default:
		return "https://www.google.com/search?q=" + q + "&brd_json=1"
	}
}

// Search runs a search engine query and returns the SERP body.
func (c *Client) Search(ctx context.Context, query, engine string) ([]byte, error) {
	return c.Request(ctx, RequestInput{URL: SearchURL(query, engine)})
}

type triggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// Trigger starts a dataset collection and returns its snapshot id.
func (c *Client) Trigger(ctx context.Context, datasetID string, inputs []map[string]any) (string, error) {
	endpoint := fmt.Sprintf("%s/datasets/v3/trigger?dataset_id=%s&include_errors=true",
		c.baseURL, url.QueryEscape(datasetID))
	raw, err := c.do(ctx, http.MethodPost, endpoint, inputs)
	if err != nil {
		return "", err
	}
	var out triggerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode trigger response: %w", err)
	}
	if out.SnapshotID == "" {
		return "", fmt.Errorf("trigger response missing snapshot_id")
	}
	return out.SnapshotID, nil
}

// Poll waits for a snapshot to leave the running/pending state and returns its payload.
func (c *Client) Poll(ctx context.Context, snapshotID string, policy PollPolicy) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/datasets/v3/snapshot/%s?format=json", c.baseURL, url.PathEscape(snapshotID))

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		timer := time.NewTimer(policy.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			lastErr = err
			continue
		}
		if snapshotPending(raw) {
			continue
		}
		return raw, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrSnapshotTimeout, policy.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrSnapshotTimeout, policy.MaxAttempts)
}

// Collect triggers a dataset and polls it to completion.
func (c *Client) Collect(ctx context.Context, datasetID string, inputs []map[string]any, policy PollPolicy) ([]byte, error) {
	id, err := c.Trigger(ctx, datasetID, inputs)
	if err != nil {
		return nil, err
	}
	return c.Poll(ctx, id, policy)
}

// snapshotPending reports whether a snapshot body is a status object still in progress.
// Ready snapshots are usually JSON arrays and never match.
func snapshotPending(raw []byte) bool {
	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		return false
	}
	switch status.Status {
	case "running", "pending", "building", "collecting":
		return true
	}
	return false
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(raw)
		if len(snippet) > maxErrBody {
			snippet = snippet[:maxErrBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return raw, nil
}
