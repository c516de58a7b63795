// Package scrape fetches and parses auction listing pages through the
// shared browser. Search scraping never returns an error: every failure
// path degrades to an empty, well-formed result so pagination can continue.
package scrape

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"aucbid/internal/browser"
	"aucbid/internal/retry"
	"aucbid/pkg/models"
)

// Engine drives search and detail scraping.
type Engine struct {
	browsers   *browser.Manager
	baseURL    string
	navTimeout time.Duration
	retries    int
	retryDelay time.Duration
	batchDelay time.Duration
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	BaseURL    string
	NavTimeout time.Duration
	Retries    int
	RetryDelay time.Duration
	BatchDelay time.Duration
}

// NewEngine creates a scrape engine on top of the shared browser manager.
func NewEngine(browsers *browser.Manager, opts EngineOptions) *Engine {
	return &Engine{
		browsers:   browsers,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		navTimeout: opts.NavTimeout,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		batchDelay: opts.BatchDelay,
	}
}

var digitsPattern = regexp.MustCompile(`[0-9][0-9,]*`)

// SearchPage fetches one page of results for one term. All failures are
// absorbed: the caller always gets a well-formed result shape.
func (e *Engine) SearchPage(ctx context.Context, term models.SearchTerm, page, pageSize int) models.SearchPageResult {
	empty := models.SearchPageResult{
		Products:    []models.Product{},
		CurrentPage: page,
	}

	bctx, err := e.browsers.AcquireContext(ctx, browser.ContextOptions{})
	if err != nil {
		log.Printf("search: browser context unavailable: %v", err)
		return empty
	}
	defer e.browsers.Release(bctx)

	pg, err := bctx.NewPage()
	if err != nil {
		log.Printf("search: failed to open page: %v", err)
		return empty
	}

	target := e.buildSearchURL(term, page, pageSize)
	err = retry.Do(e.retries+1, e.retryDelay, func() error {
		_, gotoErr := pg.Goto(target, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(e.navTimeout.Milliseconds())),
		})
		return gotoErr
	})
	if err != nil {
		log.Printf("search: navigation failed for %q page %d: %v", term.Term, page, err)
		return empty
	}

	root := PageNode(pg)

	result := models.SearchPageResult{
		Products:    []models.Product{},
		CurrentPage: page,
	}
	if page == 1 {
		result.TotalProducts = parseTotalCount(root)
	}

	for _, sel := range noResultsSelectors {
		if _, found := root.First(sel); found {
			result.TotalProducts = 0
			return result
		}
	}

	// Give the primary card selector a chance to render before walking
	// the fallback list.
	pg.Locator(cardSelectors[0]).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(8000),
	})

	var cards []Node
	for _, sel := range cardSelectors {
		if cards = root.All(sel); len(cards) > 0 {
			break
		}
	}

	base, err := url.Parse(e.baseURL)
	if err != nil {
		return result
	}
	for _, card := range cards {
		if p, ok := parseCard(card, base); ok {
			result.Products = append(result.Products, p)
		}
	}
	return result
}

// buildSearchURL assembles the query URL for a term, page and page size.
// The site paginates by begin-index (b) rather than page number.
func (e *Engine) buildSearchURL(term models.SearchTerm, page, pageSize int) string {
	q := url.Values{}
	q.Set("p", term.Term)
	q.Set("n", strconv.Itoa(pageSize))
	if page > 1 {
		q.Set("b", strconv.Itoa((page-1)*pageSize+1))
	}
	if term.MinPrice != nil {
		q.Set("aucminprice", strconv.Itoa(*term.MinPrice))
	}
	if term.MaxPrice != nil {
		q.Set("aucmaxprice", strconv.Itoa(*term.MaxPrice))
	}
	return fmt.Sprintf("%s/search/search?%s", e.baseURL, q.Encode())
}

// parseCard extracts one Product from a listing card. A card with no
// resolvable URL is dropped; any other missing field degrades to its
// sentinel.
func parseCard(card Node, base *url.URL) (models.Product, bool) {
	href, ok := cardLinkExtractor.Locate(card)
	if !ok {
		return models.Product{}, false
	}
	abs, err := base.Parse(href)
	if err != nil {
		return models.Product{}, false
	}

	p := models.Product{
		Title:         cardTitleExtractor.Extract(card),
		Price:         cardPriceExtractor.Extract(card),
		URL:           abs.String(),
		TimeRemaining: cardTimeExtractor.Extract(card),
		Images:        []string{},
	}
	if img, ok := cardImageExtractor.Locate(card); ok {
		p.Images = append(p.Images, stripQuery(img))
	}
	return p, true
}

// parseTotalCount reads the total result count from the header element.
// Parse failure yields 0, never an error.
func parseTotalCount(root Node) int {
	text, ok := totalCountExtractor.Locate(root)
	if !ok {
		return 0
	}
	match := digitsPattern.FindString(text)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func stripQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
