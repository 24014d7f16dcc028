package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no service URL is set.
var ErrNotConfigured = errors.New("browser automation service is not configured")

type Config struct {
	URL         string `envconfig:"BROWSER_AUTOMATION_SERVICE_URL"`
	HTTPTimeout int    `split_words:"true" default:"60"`
}

// Client drives the remote browser automation service.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.HTTPTimeout) * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(cfg.URL, "/"), http: httpClient}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Navigate points the remote browser at url and returns the service response.
func (c *Client) Navigate(ctx context.Context, url string) (json.RawMessage, error) {
	b, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return nil, err
	}
	return c.call(ctx, http.MethodPost, "/navigate", bytes.NewReader(b))
}

// Text returns the visible text of the current page.
func (c *Client) Text(ctx context.Context) (json.RawMessage, error) {
	return c.call(ctx, http.MethodGet, "/get_text", nil)
}

func (c *Client) call(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("browser service %s: %d %s", strings.TrimPrefix(path, "/"), resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("browser service %s: invalid json response", strings.TrimPrefix(path, "/"))
	}
	return raw, nil
}
