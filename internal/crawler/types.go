package crawler

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/miruna26/aicore-data-collection/internal/vehicle"
)

// Collector interface defines the contract for listing sources
type Collector interface {
	// Collect returns the vehicles found in one crawl round in discovery order
	Collect(ctx context.Context) ([]*vehicle.Vehicle, error)

	// GetName returns the collector's name for logging and identification
	GetName() string
}

// IDExtractorFunc defines the function signature for extracting an ID from a URL
type IDExtractorFunc func(string) (string, error)

// ElementHandlerFunc extracts a custom value from a listing or detail page
type ElementHandlerFunc func(*goquery.Selection) string

// Selectors contains CSS selectors for the search results and detail pages.
// Listing, Link, Title, Subtitle, Price and Mileage apply inside one search
// result item; Location, Description, DetailMileage and Images apply to the
// detail page.
type Selectors struct {
	Listing  string
	Link     string
	Title    string
	Subtitle string
	Price    string
	Mileage  string

	Location      string
	Description   string
	DetailMileage string
	Images        string
	// ImageAttr is the attribute holding the image URL, "src" by default
	ImageAttr string
}

// CrawlerConfig contains configuration for a listing crawler
type CrawlerConfig struct {
	Name      string
	SearchURL string
	BaseURL   string
	// PageParam is the query parameter carrying the page number, "page" by default
	PageParam string
	MaxPages  int
	CacheKey  string
	// BlockTime is how long, in seconds, requests stop after the site rate limits us
	BlockTime int
	// DetailConcurrency bounds concurrent detail page fetches
	DetailConcurrency int
	Selectors         Selectors
	IDExtractor       IDExtractorFunc
	// Handlers override selector extraction per field name
	Handlers map[vehicle.Field]ElementHandlerFunc
}
