package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hermitai/server/internal/agent/model"
	"github.com/hermitai/server/pkg/brightdata"
)

func TestEveryRegisteredToolIsBound(t *testing.T) {
	reg := DefaultRegistry()
	bindings := Bindings(reg, ExecutorDeps{})
	require.Len(t, bindings, len(reg.Names()))
	for _, name := range reg.Names() {
		require.Contains(t, bindings, name)
	}
}

func TestDatasetExecutorValidatesURLBeforeCalling(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	bd := brightdata.New(brightdata.Config{APIToken: "tok", BaseURL: srv.URL}, srv.Client())
	reg := DefaultRegistry()
	d, err := NewDispatcher(reg, Bindings(reg, ExecutorDeps{BrightData: bd}), DispatcherOptions{})
	require.NoError(t, err)

	res := d.Execute(context.Background(), model.ToolDecision{
		ToolName:  ToolAmazonProduct,
		Arguments: map[string]string{"url": "https://www.amazon.com/s?k=kettle"},
	})
	require.False(t, res.OK())
	require.Contains(t, res.Observation(), "/dp/")
	require.False(t, called)
}

func TestFacebookReviewsSendsReviewCount(t *testing.T) {
	var inputs []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/datasets/v3/trigger":
			require.Equal(t, "gd_m0dtqpiu1mbcyc2g86", r.URL.Query().Get("dataset_id"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&inputs))
			_, _ = w.Write([]byte(`{"snapshot_id":"s_9"}`))
		default:
			_, _ = w.Write([]byte(`[{"review":"great"}]`))
		}
	}))
	defer srv.Close()

	bd := brightdata.New(brightdata.Config{APIToken: "tok", BaseURL: srv.URL}, srv.Client())
	dt := datasetTools[ToolFacebookCompanyReviews]
	dt.poll = brightdata.PollPolicy{MaxAttempts: 2}
	exec := datasetExecutor(bd, ToolFacebookCompanyReviews, dt)

	out, err := exec(context.Background(), map[string]string{
		"url":            "https://www.facebook.com/acme",
		"num_of_reviews": "10",
	})
	require.NoError(t, err)
	require.Contains(t, out, `"review": "great"`)
	require.Len(t, inputs, 1)
	require.Equal(t, float64(10), inputs[0]["num_of_reviews"])

	_, err = exec(context.Background(), map[string]string{
		"url":            "https://www.facebook.com/acme",
		"num_of_reviews": "ten",
	})
	require.ErrorContains(t, err, "num_of_reviews")
}

func TestSearchWithoutCredentials(t *testing.T) {
	reg := DefaultRegistry()
	d, err := NewDispatcher(reg, Bindings(reg, ExecutorDeps{}), DispatcherOptions{})
	require.NoError(t, err)

	res := d.Execute(context.Background(), model.ToolDecision{
		ToolName:  ToolSearchEngine,
		Arguments: map[string]string{"query": "go"},
	})
	require.Equal(t, "Error executing search_engine: BrightData API credentials not configured for search_engine tool", res.Observation())
}

func TestSearchResultsAreNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"organic":[{"title":"Gold price today"}]}`))
	}))
	defer srv.Close()

	reg := DefaultRegistry()
	bd := brightdata.New(brightdata.Config{APIToken: "tok", BaseURL: srv.URL}, srv.Client())
	bindings := Bindings(reg, ExecutorDeps{BrightData: bd})
	require.False(t, bindings[ToolSearchEngine].Cacheable)
	require.True(t, bindings[ToolScrapeAsMarkdown].Cacheable)

	cache := &memoryCache{}
	d, err := NewDispatcher(reg, bindings, DispatcherOptions{Cache: cache})
	require.NoError(t, err)

	decision := model.ToolDecision{ToolName: ToolSearchEngine, Arguments: map[string]string{"query": "latest gold price"}}
	first := d.Execute(context.Background(), decision)
	second := d.Execute(context.Background(), decision)

	require.True(t, first.OK(), first.Observation())
	require.True(t, second.OK(), second.Observation())
	require.False(t, second.Cached)
	require.Equal(t, int32(2), hits.Load())
	require.Empty(t, cache.data)
}

func TestArgumentSchemaRendering(t *testing.T) {
	spec, ok := DefaultRegistry().Lookup(ToolSearchEngine)
	require.True(t, ok)
	require.Equal(t, map[string]string{
		"query":  "string (the search query)",
		"engine": "string (optional, 'google', 'bing', or 'yandex', defaults to 'google')",
	}, spec.ArgumentSchema())
	require.Equal(t, []string{"query"}, spec.RequiredArgs())

	_, err := NewRegistry(Spec{Name: "a"}, Spec{Name: "a"})
	require.Error(t, err)
}
