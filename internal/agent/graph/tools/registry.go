package tools

import (
	"fmt"
	"sort"

	"github.com/cloudwego/eino/schema"
)

// Tool names understood by the decision model.
const (
	ToolSearchEngine            = "search_engine"
	ToolScrapeAsMarkdown        = "scrape_as_markdown"
	ToolScrapeAsHTML            = "scrape_as_html"
	ToolLinkedInPersonProfile   = "web_data_linkedin_person_profile"
	ToolAmazonProduct           = "web_data_amazon_product"
	ToolAmazonProductReviews    = "web_data_amazon_product_reviews"
	ToolLinkedInCompanyProfile  = "web_data_linkedin_company_profile"
	ToolZoomInfoCompanyProfile  = "web_data_zoominfo_company_profile"
	ToolInstagramProfiles       = "web_data_instagram_profiles"
	ToolInstagramPosts          = "web_data_instagram_posts"
	ToolInstagramReels          = "web_data_instagram_reels"
	ToolSessionStats            = "session_stats"
	ToolInstagramComments       = "web_data_instagram_comments"
	ToolFacebookPosts           = "web_data_facebook_posts"
	ToolFacebookMarketplace     = "web_data_facebook_marketplace_listings"
	ToolFacebookCompanyReviews  = "web_data_facebook_company_reviews"
	ToolXPosts                  = "web_data_x_posts"
	ToolZillowPropertiesListing = "web_data_zillow_properties_listing"
	ToolBookingHotelListings    = "web_data_booking_hotel_listings"
	ToolYouTubeVideos           = "web_data_youtube_videos"
	ToolScrapingBrowserNavigate = "scraping_browser_navigate"
	ToolScrapingBrowserGetText  = "scraping_browser_get_text"
)

// Spec describes one tool to the decision model.
type Spec struct {
	Name        string
	Description string
	Params      map[string]*schema.ParameterInfo
}

// ArgumentSchema renders each parameter as "type (description)".
func (s Spec) ArgumentSchema() map[string]string {
	out := make(map[string]string, len(s.Params))
	for name, p := range s.Params {
		if p == nil {
			continue
		}
		out[name] = fmt.Sprintf("%s (%s)", p.Type, p.Desc)
	}
	return out
}

// RequiredArgs returns the names of required parameters in sorted order.
func (s Spec) RequiredArgs() []string {
	var req []string
	for name, p := range s.Params {
		if p != nil && p.Required {
			req = append(req, name)
		}
	}
	sort.Strings(req)
	return req
}

// Registry is the immutable, ordered tool catalog. Safe for concurrent reads.
type Registry struct {
	specs []Spec
	index map[string]int
}

func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{
		specs: make([]Spec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("tool spec without name")
		}
		if _, dup := r.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", s.Name)
		}
		r.index[s.Name] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r, nil
}

// List returns the specs in registration order.
func (r *Registry) List() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

func (r *Registry) Lookup(name string) (Spec, bool) {
	i, ok := r.index[name]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

func urlParam(desc string) map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"url": {Type: schema.String, Desc: desc, Required: true},
	}
}

// DefaultSpecs is the built-in tool catalog.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Name:        ToolSearchEngine,
			Description: "Performs a web search using Google, Bing, or Yandex. Useful for finding general information, current events, or specific websites. Requires a search query.",
			Params: map[string]*schema.ParameterInfo{
				"query":  {Type: schema.String, Desc: "the search query", Required: true},
				"engine": {Type: schema.String, Desc: "optional, 'google', 'bing', or 'yandex', defaults to 'google'"},
			},
		},
		{
			Name:        ToolScrapeAsMarkdown,
			Description: "Scrapes a single webpage URL and returns its content as Markdown. Useful for extracting textual content from articles or blogs. Requires a URL.",
			Params:      urlParam("the URL of the webpage to scrape"),
		},
		{
			Name:        ToolScrapeAsHTML,
			Description: "Scrapes a single webpage URL and returns its full HTML content. Useful when the structure or specific HTML elements are important. Requires a URL.",
			Params:      urlParam("the URL of the webpage to scrape"),
		},
		{
			Name:        ToolLinkedInPersonProfile,
			Description: "Quickly read structured LinkedIn person profile data. Requires a valid LinkedIn profile URL.",
			Params:      urlParam("the LinkedIn profile URL"),
		},
		{
			Name:        ToolAmazonProduct,
			Description: "Quickly read structured Amazon product data. Requires a valid product URL with /dp/ in it.",
			Params:      urlParam("the Amazon product URL"),
		},
		{
			Name:        ToolAmazonProductReviews,
			Description: "Quickly read structured Amazon product review data. Requires a valid product URL with /dp/ in it.",
			Params:      urlParam("the Amazon product URL for reviews"),
		},
		{
			Name:        ToolLinkedInCompanyProfile,
			Description: "Quickly read structured LinkedIn company profile data. Requires a valid LinkedIn company URL.",
			Params:      urlParam("the LinkedIn company URL"),
		},
		{
			Name:        ToolZoomInfoCompanyProfile,
			Description: "Quickly read structured ZoomInfo company profile data. Requires a valid ZoomInfo company URL.",
			Params:      urlParam("the ZoomInfo company URL"),
		},
		{
			Name:        ToolInstagramProfiles,
			Description: "Quickly read structured Instagram profile data. Requires a valid Instagram profile URL.",
			Params:      urlParam("the Instagram profile URL"),
		},
		{
			Name:        ToolInstagramPosts,
			Description: "Quickly read structured Instagram post data. Requires a valid Instagram post URL.",
			Params:      urlParam("the Instagram post URL"),
		},
		{
			Name:        ToolInstagramReels,
			Description: "Quickly read structured Instagram reel data. Requires a valid Instagram reel URL.",
			Params:      urlParam("the Instagram reel URL"),
		},
		{
			Name:        ToolSessionStats,
			Description: "Provides information about tool usage in the current interaction.",
			Params:      map[string]*schema.ParameterInfo{},
		},
		{
			Name:        ToolInstagramComments,
			Description: "Quickly read structured Instagram comments data for a specific Instagram post or reel. Requires a valid Instagram post/reel URL.",
			Params:      urlParam("the Instagram post or reel URL"),
		},
		{
			Name:        ToolFacebookPosts,
			Description: "Quickly read structured Facebook post data. Requires a valid Facebook post URL.",
			Params:      urlParam("the Facebook post URL"),
		},
		{
			Name:        ToolFacebookMarketplace,
			Description: "Quickly read structured Facebook marketplace listing data. Requires a valid Facebook marketplace listing URL.",
			Params:      urlParam("the Facebook marketplace listing URL"),
		},
		{
			Name:        ToolFacebookCompanyReviews,
			Description: "Quickly read structured Facebook company reviews data. Requires a valid Facebook company URL and the number of reviews to fetch.",
			Params: map[string]*schema.ParameterInfo{
				"url":            {Type: schema.String, Desc: "the Facebook company URL", Required: true},
				"num_of_reviews": {Type: schema.String, Desc: "the number of reviews to fetch, e.g., '10'", Required: true},
			},
		},
		{
			Name:        ToolXPosts,
			Description: "Quickly read structured X (formerly Twitter) post data. Requires a valid X post URL.",
			Params:      urlParam("the X post URL"),
		},
		{
			Name:        ToolZillowPropertiesListing,
			Description: "Quickly read structured Zillow properties listing data. Requires a valid Zillow properties listing URL.",
			Params:      urlParam("the Zillow properties listing URL"),
		},
		{
			Name:        ToolBookingHotelListings,
			Description: "Quickly read structured Booking.com hotel listings data. Requires a valid Booking.com hotel listing URL.",
			Params:      urlParam("the Booking.com hotel listing URL"),
		},
		{
			Name:        ToolYouTubeVideos,
			Description: "Quickly read structured YouTube videos data. Requires a valid YouTube video URL.",
			Params:      urlParam("the YouTube video URL"),
		},
		{
			Name:        ToolScrapingBrowserNavigate,
			Description: "Navigates a remote browser to a new URL. Use this as the first step for interactive browser tasks.",
			Params:      urlParam("The URL to navigate to"),
		},
		{
			Name:        ToolScrapingBrowserGetText,
			Description: "Gets the visible text content of the current page in a remote browser session. Should be used after navigating to a page.",
			Params:      map[string]*schema.ParameterInfo{},
		},
	}
}

// DefaultRegistry returns a registry holding DefaultSpecs.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSpecs()...)
	if err != nil {
		panic(err)
	}
	return r
}
