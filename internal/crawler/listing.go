package crawler

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/miruna26/aicore-data-collection/helpers"
	"github.com/miruna26/aicore-data-collection/internal/vehicle"
	"github.com/miruna26/aicore-data-collection/logger"
	"github.com/miruna26/aicore-data-collection/services/cache"
)

const (
	defaultPageParam         = "page"
	defaultImageAttr         = "src"
	defaultDetailConcurrency = 4
)

// ListingCrawler walks paginated search results, then visits the detail page
// of every listing found
type ListingCrawler struct {
	BaseCrawler
	SearchURL         string
	PageParam         string
	MaxPages          int
	DetailConcurrency int
	Selectors         Selectors
	IDExtractor       IDExtractorFunc
	Handlers          map[vehicle.Field]ElementHandlerFunc

	vehicleOpts []vehicle.Option
}

// Ensure ListingCrawler implements Collector
var _ Collector = (*ListingCrawler)(nil)

// NewListingCrawler creates a crawler from config. opts are applied to every
// vehicle it creates.
func NewListingCrawler(config CrawlerConfig, cacheSvc cache.CacheService, opts ...vehicle.Option) *ListingCrawler {
	c := &ListingCrawler{
		BaseCrawler: BaseCrawler{
			Name:      config.Name,
			BaseURL:   config.BaseURL,
			CacheKey:  config.CacheKey,
			CacheSvc:  cacheSvc,
			BlockTime: time.Duration(config.BlockTime) * time.Second,
		},
		SearchURL:         config.SearchURL,
		PageParam:         config.PageParam,
		MaxPages:          config.MaxPages,
		DetailConcurrency: config.DetailConcurrency,
		Selectors:         config.Selectors,
		IDExtractor:       config.IDExtractor,
		Handlers:          config.Handlers,
		vehicleOpts:       opts,
	}

	if c.PageParam == "" {
		c.PageParam = defaultPageParam
	}
	if c.MaxPages < 1 {
		c.MaxPages = 1
	}
	if c.DetailConcurrency < 1 {
		c.DetailConcurrency = defaultDetailConcurrency
	}
	if c.Selectors.ImageAttr == "" {
		c.Selectors.ImageAttr = defaultImageAttr
	}
	if c.IDExtractor == nil {
		c.IDExtractor = helpers.LastPathSegment
	}
	return c
}

// Collect crawls up to MaxPages of search results and enriches each listing
// from its detail page. It stops early on an empty page or a page with no new
// listings. A failing first page is an error; later failures end the crawl
// with what was collected so far. Detail page failures are logged and the
// listing is still returned.
func (c *ListingCrawler) Collect(ctx context.Context) ([]*vehicle.Vehicle, error) {
	log := logger.ForCrawler(c.Name)
	idx := vehicle.NewIndex(c.vehicleOpts...)

	for page := 1; page <= c.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageURL, err := c.pageURL(page)
		if err != nil {
			return nil, err
		}

		found, added, err := c.collectPage(ctx, pageURL, idx)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Warn().Err(err).Int("page", page).Msg("Search page failed, stopping pagination")
			break
		}

		log.Debug().
			Int("page", page).
			Int("listings", found).
			Int("new", added).
			Msg("Search page crawled")

		if found == 0 || added == 0 {
			break
		}
	}

	vehicles := idx.Vehicles()
	c.collectDetails(ctx, vehicles)

	log.Info().Int("vehicles", len(vehicles)).Msg("Crawl finished")
	return vehicles, nil
}

// pageURL sets the page parameter on the search URL
func (c *ListingCrawler) pageURL(page int) (string, error) {
	u, err := url.Parse(c.SearchURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(c.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// collectPage adds the listings of one search page to idx and returns how
// many items the page held and how many were new
func (c *ListingCrawler) collectPage(ctx context.Context, pageURL string, idx *vehicle.Index) (found, added int, err error) {
	utf8Body, err := c.fetchWithCache(ctx, pageURL)
	if err != nil {
		return 0, 0, err
	}

	doc, err := c.createDocument(utf8Body)
	if err != nil {
		return 0, 0, err
	}

	items := doc.Find(c.Selectors.Listing)
	items.Each(func(_ int, s *goquery.Selection) {
		if c.processListing(s, idx) {
			added++
		}
	})
	return items.Length(), added, nil
}

// processListing records one search result and reports whether it was a new
// vehicle
func (c *ListingCrawler) processListing(s *goquery.Selection, idx *vehicle.Index) bool {
	log := logger.ForCrawler(c.Name)

	link, exists := s.Find(c.Selectors.Link).First().Attr("href")
	if !exists || strings.TrimSpace(link) == "" {
		return false
	}
	link = c.ResolveURL(link)
	if !idx.MarkURL(link) {
		return false
	}

	id, err := c.IDExtractor(link)
	if err != nil || id == "" {
		log.Warn().Str("url", link).Err(err).Msg("Could not extract listing id")
		return false
	}

	v, created := idx.GetOrCreate(id)
	updates := vehicle.Updates{string(vehicle.FieldHref): link}
	c.addText(updates, s, vehicle.FieldTitle, c.Selectors.Title)
	c.addText(updates, s, vehicle.FieldSubtitle, c.Selectors.Subtitle)
	c.addText(updates, s, vehicle.FieldPrice, c.Selectors.Price)
	c.addText(updates, s, vehicle.FieldMileage, c.Selectors.Mileage)

	if err := v.Update(updates); err != nil {
		log.Warn().Str("vehicle_id", id).Err(err).Msg("Listing update rejected")
	}
	return created
}

// collectDetails visits every detail page with bounded concurrency. Each
// vehicle is updated by exactly one goroutine.
func (c *ListingCrawler) collectDetails(ctx context.Context, vehicles []*vehicle.Vehicle) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.DetailConcurrency)

	for _, v := range vehicles {
		wg.Add(1)
		go func(v *vehicle.Vehicle) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := c.collectDetail(ctx, v); err != nil {
				logger.ForCrawler(c.Name).Warn().
					Str("vehicle_id", v.ID()).
					Str("url", v.URL()).
					Err(err).
					Msg("Detail page failed")
			}
		}(v)
	}
	wg.Wait()
}

func (c *ListingCrawler) collectDetail(ctx context.Context, v *vehicle.Vehicle) error {
	if v.URL() == "" {
		return nil
	}

	utf8Body, err := c.fetchWithCache(ctx, v.URL())
	if err != nil {
		return err
	}
	doc, err := c.createDocument(utf8Body)
	if err != nil {
		return err
	}

	page := doc.Selection
	updates := vehicle.Updates{}
	c.addText(updates, page, vehicle.FieldLocation, c.Selectors.Location)
	c.addText(updates, page, vehicle.FieldDescription, c.Selectors.Description)
	c.addText(updates, page, vehicle.FieldMileage, c.Selectors.DetailMileage)

	if images := c.extractImages(page); len(images) > 0 {
		updates[string(vehicle.FieldImages)] = images
	}
	return v.Update(updates)
}

// addText sets updates[f] when the handler or selector yields a non-empty value
func (c *ListingCrawler) addText(updates vehicle.Updates, s *goquery.Selection, f vehicle.Field, selector string) {
	var text string
	if handler, ok := c.Handlers[f]; ok && handler != nil {
		text = handler(s)
	} else if selector != "" {
		text = s.Find(selector).First().Text()
	}

	text = strings.Join(strings.Fields(text), " ")
	if text != "" {
		updates[string(f)] = text
	}
}

func (c *ListingCrawler) extractImages(page *goquery.Selection) []string {
	if c.Selectors.Images == "" {
		return nil
	}

	var images []string
	page.Find(c.Selectors.Images).Each(func(_ int, img *goquery.Selection) {
		src, exists := img.Attr(c.Selectors.ImageAttr)
		if !exists || strings.TrimSpace(src) == "" {
			return
		}
		images = append(images, c.ResolveURL(src))
	})
	return images
}
