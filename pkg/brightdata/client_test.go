package brightdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var quickPoll = PollPolicy{Interval: time.Millisecond, MaxAttempts: 3}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{APIToken: "tok", BaseURL: srv.URL}, srv.Client())
}

func TestRequestSendsZoneAndFormat(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/request", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("# Title"))
	})

	out, err := c.Request(context.Background(), RequestInput{URL: "https://example.com", DataFormat: "markdown"})
	require.NoError(t, err)
	require.Equal(t, "# Title", string(out))
	require.Equal(t, map[string]string{
		"zone":        DefaultZone,
		"url":         "https://example.com",
		"format":      "raw",
		"data_format": "markdown",
	}, got)
}

func TestSearchURL(t *testing.T) {
	require.Equal(t, "https://www.google.com/search?q=go+generics&brd_json=1", SearchURL("go generics", ""))
	require.Equal(t, "https://www.bing.com/search?q=go", SearchURL("go", "Bing"))
	require.Equal(t, "https://yandex.com/search/?text=go", SearchURL("go", "yandex"))
}

func TestCollectPollsUntilReady(t *testing.T) {
	var polls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/datasets/v3/trigger":
			require.Equal(t, "gd_x", r.URL.Query().Get("dataset_id"))
			require.Equal(t, "true", r.URL.Query().Get("include_errors"))
			var inputs []map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&inputs))
			require.Equal(t, "https://x", inputs[0]["url"])
			_, _ = w.Write([]byte(`{"snapshot_id":"s_1"}`))
		case "/datasets/v3/snapshot/s_1":
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"status":"running"}`))
				return
			}
			_, _ = w.Write([]byte(`[{"name":"ok"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	out, err := c.Collect(context.Background(), "gd_x", []map[string]any{{"url": "https://x"}}, quickPoll)
	require.NoError(t, err)
	require.JSONEq(t, `[{"name":"ok"}]`, string(out))
	require.Equal(t, int32(2), polls.Load())
}

func TestPollTimesOut(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	})

	_, err := c.Poll(context.Background(), "s_2", quickPoll)
	require.ErrorIs(t, err, ErrSnapshotTimeout)
}

func TestNon2xxIsStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad token"))
	})

	_, err := c.Request(context.Background(), RequestInput{URL: "https://example.com"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusUnauthorized, se.StatusCode)
	require.Equal(t, "bad token", se.Body)
}

func TestUnconfigured(t *testing.T) {
	c := New(Config{}, nil)
	require.False(t, c.Configured())
	_, err := c.Search(context.Background(), "q", "google")
	require.ErrorIs(t, err, ErrNotConfigured)
}
