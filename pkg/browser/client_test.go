package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNavigateAndText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/navigate":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "https://example.com", body["url"])
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/get_text":
			_, _ = w.Write([]byte(`{"text":"Example Domain"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL + "/"}, srv.Client())
	nav, err := c.Navigate(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ok"}`, string(nav))

	text, err := c.Text(context.Background())
	require.NoError(t, err)
	require.JSONEq(t, `{"text":"Example Domain"}`, string(text))
}

func TestServiceErrorsAndUnconfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no page loaded", http.StatusConflict)
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL}, srv.Client()).Text(context.Background())
	require.ErrorContains(t, err, "409")

	_, err = New(Config{}, nil).Text(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
}
