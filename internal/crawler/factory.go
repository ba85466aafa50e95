package crawler

import (
	"strings"

	"github.com/miruna26/aicore-data-collection/config"
	"github.com/miruna26/aicore-data-collection/helpers"
	"github.com/miruna26/aicore-data-collection/internal/vehicle"
	"github.com/miruna26/aicore-data-collection/logger"
	"github.com/miruna26/aicore-data-collection/services/cache"
)

// AutotraderConfig returns the crawler configuration for autotrader.co.uk
// style search and car-details pages
func AutotraderConfig(cfg *config.Config) CrawlerConfig {
	return CrawlerConfig{
		Name:              "Autotrader",
		SearchURL:         cfg.SearchURL,
		BaseURL:           cfg.BaseURL,
		PageParam:         "page",
		MaxPages:          cfg.MaxPages,
		CacheKey:          "autotrader_rate_limited",
		BlockTime:         500,
		DetailConcurrency: cfg.SaveConcurrency,
		Selectors: Selectors{
			Listing:  "li.search-page__result",
			Link:     "a.listing-fpa-link",
			Title:    "h3.product-card-details__title",
			Subtitle: "p.product-card-details__subtitle",
			Price:    "div.product-card-pricing__price span",
			Mileage:  "ul.listing-key-specs li[data-spec='mileage']",

			Location:      "span.seller-location",
			Description:   "div.advert-description",
			DetailMileage: "span[data-gui='mileage']",
			Images:        "section.gallery img",
			ImageAttr:     "src",
		},
		IDExtractor: func(link string) (string, error) {
			baseLink := strings.Split(link, "?")[0]
			return helpers.GetSplitPart(baseLink, "/car-details/", 1)
		},
	}
}

// CreateCollector creates the listing collector based on the configuration
func CreateCollector(cfg *config.Config, cacheSvc cache.CacheService, opts ...vehicle.Option) Collector {
	c := NewListingCrawler(AutotraderConfig(cfg), cacheSvc, opts...)

	logger.ForCrawler(c.GetName()).Info().
		Str("search_url", c.SearchURL).
		Int("max_pages", c.MaxPages).
		Msg("Created collector")

	return c
}
