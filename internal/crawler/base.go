package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/miruna26/aicore-data-collection/helpers"
	"github.com/miruna26/aicore-data-collection/pkg/errors"
	"github.com/miruna26/aicore-data-collection/services/cache"
)

// FetchFunc retrieves a page as UTF-8 HTML
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

// BaseCrawler provides common functionality for all crawlers
type BaseCrawler struct {
	Name      string
	BaseURL   string
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
	fetch     FetchFunc
}

// fetchWithCache fetches a URL unless the site recently rate limited us.
// A rate limited response blocks further requests for BlockTime.
func (c *BaseCrawler) fetchWithCache(ctx context.Context, pageURL string) (io.Reader, error) {
	if c.CacheSvc != nil && c.CacheKey != "" {
		if _, err := c.CacheSvc.Get(c.CacheKey); err == nil {
			return nil, errors.NewRateLimit(c.Name, c.BlockTime)
		}
	}

	fetch := c.fetch
	if fetch == nil {
		fetch = helpers.FetchWithRandomHeaders
	}

	utf8Body, err := fetch(ctx, pageURL)
	if err != nil {
		if stderrors.Is(err, helpers.ErrRateLimited) {
			if c.CacheSvc != nil && c.CacheKey != "" {
				block := []byte(fmt.Sprintf("%d", c.BlockTime/time.Second))
				if setErr := c.CacheSvc.Set(c.CacheKey, block, c.BlockTime); setErr != nil {
					return nil, errors.NewCache("", "store rate limit block", setErr)
				}
			}
			return nil, errors.NewRateLimit(c.Name, c.BlockTime)
		}
		return nil, errors.NewNetwork(c.Name, "fetch "+pageURL, err)
	}

	return utf8Body, nil
}

// createDocument creates a goquery document from a reader
func (c *BaseCrawler) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, errors.NewParsing(c.Name, "html parse error", err)
	}
	return doc, nil
}

// ResolveURL makes a link absolute against BaseURL
func (c *BaseCrawler) ResolveURL(link string) string {
	link = strings.TrimSpace(link)
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}

	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

// GetName returns the crawler's name for logging
func (c *BaseCrawler) GetName() string {
	return c.Name
}
