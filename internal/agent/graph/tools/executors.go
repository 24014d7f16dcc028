package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hermitai/server/internal/agent/model"
	"github.com/hermitai/server/pkg/brightdata"
	"github.com/hermitai/server/pkg/browser"
)

// datasetTool describes a BrightData dataset-backed tool.
type datasetTool struct {
	datasetID string
	// urlMarkers lists substrings of which the input URL must contain at least one.
	urlMarkers []string
	poll       brightdata.PollPolicy
	// extraInputs adds dataset specific fields to the trigger input.
	extraInputs func(args map[string]string) (map[string]any, error)
}

var datasetTools = map[string]datasetTool{
	ToolLinkedInPersonProfile:   {datasetID: "gd_l1viktl72bvl7bjuj0", urlMarkers: []string{"linkedin.com/in/"}, poll: brightdata.FastPoll},
	ToolAmazonProduct:           {datasetID: "gd_l7q7dkf244hwjntr0", urlMarkers: []string{"/dp/"}, poll: brightdata.FastPoll},
	ToolAmazonProductReviews:    {datasetID: "gd_le8e811kzy4ggddlq", urlMarkers: []string{"/dp/"}, poll: brightdata.FastPoll},
	ToolLinkedInCompanyProfile:  {datasetID: "gd_l1vikfnt1wgvvqz95w", urlMarkers: []string{"linkedin.com/company/"}, poll: brightdata.FastPoll},
	ToolZoomInfoCompanyProfile:  {datasetID: "gd_m0ci4a4ivx3j5l6nx", urlMarkers: []string{"zoominfo.com/c/"}, poll: brightdata.SlowPoll},
	ToolInstagramProfiles:       {datasetID: "gd_l1vikfch901nx3by4", urlMarkers: []string{"instagram.com/"}, poll: brightdata.SlowPoll},
	ToolInstagramPosts:          {datasetID: "gd_lk5ns7kz21pck8jpis", urlMarkers: []string{"instagram.com/p/"}, poll: brightdata.SlowPoll},
	ToolInstagramReels:          {datasetID: "gd_lyclm20il4r5helnj", urlMarkers: []string{"instagram.com/reel"}, poll: brightdata.SlowPoll},
	ToolInstagramComments:       {datasetID: "gd_ltppn085pokosxh13", urlMarkers: []string{"instagram.com/p/", "instagram.com/reel"}, poll: brightdata.SlowPoll},
	ToolFacebookPosts:           {datasetID: "gd_lyclm1571iy3mv57zw", urlMarkers: []string{"facebook.com/"}, poll: brightdata.SlowPoll},
	ToolFacebookMarketplace:     {datasetID: "gd_lvt9iwuh6fbcwmx1a", urlMarkers: []string{"facebook.com/marketplace/item/"}, poll: brightdata.SlowPoll},
	ToolFacebookCompanyReviews:  {datasetID: "gd_m0dtqpiu1mbcyc2g86", urlMarkers: []string{"facebook.com/"}, poll: brightdata.SlowPoll, extraInputs: reviewCountInput},
	ToolXPosts:                  {datasetID: "gd_lwxkxvnf1cynvib9co", urlMarkers: []string{"x.com/", "twitter.com/"}, poll: brightdata.SlowPoll},
	ToolZillowPropertiesListing: {datasetID: "gd_lfqkr8wm13ixtbd8f5", urlMarkers: []string{"zillow.com/homedetails/"}, poll: brightdata.SlowPoll},
	ToolBookingHotelListings:    {datasetID: "gd_m5mbdl081229ln6t4a", urlMarkers: []string{"booking.com/hotel/"}, poll: brightdata.SlowPoll},
	ToolYouTubeVideos:           {datasetID: "gd_lk56epmy2i5g7lzu0k", urlMarkers: []string{"youtube.com/watch", "youtu.be/"}, poll: brightdata.SlowPoll},
}

func reviewCountInput(args map[string]string) (map[string]any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args["num_of_reviews"]))
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("num_of_reviews must be a positive integer, got %q", args["num_of_reviews"])
	}
	return map[string]any{"num_of_reviews": n}, nil
}

// ExecutorDeps are the external clients the built-in executors call.
type ExecutorDeps struct {
	BrightData *brightdata.Client
	Browser    *browser.Client
	Usage      model.ToolUsageRepository
}

// Bindings wires every tool in DefaultSpecs to its executor.
func Bindings(reg *Registry, deps ExecutorDeps) map[string]Binding {
	bd := deps.BrightData
	out := map[string]Binding{
		ToolSearchEngine: {Executor: func(ctx context.Context, args map[string]string) (string, error) {
			if !bd.Configured() {
				return "", notConfigured(ToolSearchEngine)
			}
			raw, err := bd.Search(ctx, args["query"], args["engine"])
			if err != nil {
				return "", err
			}
			return prettyJSON(raw), nil
		}},
		ToolScrapeAsMarkdown: {Cacheable: true, Executor: scrapeExecutor(bd, ToolScrapeAsMarkdown, "markdown")},
		ToolScrapeAsHTML:     {Cacheable: true, Executor: scrapeExecutor(bd, ToolScrapeAsHTML, "")},
		ToolSessionStats:     {Executor: NewSessionStatsExecutor(reg, deps.Usage)},
		ToolScrapingBrowserNavigate: {Executor: func(ctx context.Context, args map[string]string) (string, error) {
			target := args["url"]
			if !strings.HasPrefix(target, "http") {
				return "", fmt.Errorf("a valid URL is required for browser navigation")
			}
			raw, err := deps.Browser.Navigate(ctx, target)
			if err != nil {
				return "", err
			}
			return "Browser navigation initiated. Service response: " + string(raw), nil
		}},
		ToolScrapingBrowserGetText: {Executor: func(ctx context.Context, _ map[string]string) (string, error) {
			raw, err := deps.Browser.Text(ctx)
			if err != nil {
				return "", err
			}
			return "Browser page text content: " + string(raw), nil
		}},
	}

	for name, dt := range datasetTools {
		out[name] = Binding{Cacheable: true, Executor: datasetExecutor(bd, name, dt)}
	}
	return out
}

func scrapeExecutor(bd *brightdata.Client, name, dataFormat string) model.Executor {
	return func(ctx context.Context, args map[string]string) (string, error) {
		if !bd.Configured() {
			return "", notConfigured(name)
		}
		if !strings.HasPrefix(args["url"], "http") {
			return "", fmt.Errorf("invalid URL %q: must start with http", args["url"])
		}
		raw, err := bd.Request(ctx, brightdata.RequestInput{URL: args["url"], DataFormat: dataFormat})
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

func datasetExecutor(bd *brightdata.Client, name string, dt datasetTool) model.Executor {
	return func(ctx context.Context, args map[string]string) (string, error) {
		if !bd.Configured() {
			return "", notConfigured(name)
		}
		target := args["url"]
		if !containsAny(target, dt.urlMarkers) {
			return "", fmt.Errorf("invalid URL for %s: expected a URL containing %s",
				name, strings.Join(dt.urlMarkers, " or "))
		}

		input := map[string]any{"url": target}
		if dt.extraInputs != nil {
			extra, err := dt.extraInputs(args)
			if err != nil {
				return "", err
			}
			for k, v := range extra {
				input[k] = v
			}
		}

		raw, err := bd.Collect(ctx, dt.datasetID, []map[string]any{input}, dt.poll)
		if err != nil {
			return "", err
		}
		return prettyJSON(raw), nil
	}
}

func notConfigured(tool string) error {
	return fmt.Errorf("BrightData API credentials not configured for %s tool", tool)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// prettyJSON indents a JSON payload and returns non-JSON bodies unchanged.
func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
