package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"aucbid/internal/browser"
	"aucbid/pkg/models"
)

// FetchDetail re-reads the current price and time remaining from a product
// page. Field extraction failures degrade to sentinels; only navigation
// failure is an error.
func (e *Engine) FetchDetail(ctx context.Context, productURL string) (price, timeRemaining string, err error) {
	bctx, err := e.browsers.AcquireContext(ctx, browser.ContextOptions{})
	if err != nil {
		return "", "", fmt.Errorf("browser context unavailable: %w", err)
	}
	defer e.browsers.Release(bctx)

	pg, err := bctx.NewPage()
	if err != nil {
		return "", "", fmt.Errorf("failed to open page: %w", err)
	}

	if _, err := pg.Goto(productURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(e.navTimeout.Milliseconds())),
	}); err != nil {
		return "", "", fmt.Errorf("navigation failed: %w", err)
	}

	root := PageNode(pg)
	return detailPriceExtractor.Extract(root), detailTimeExtractor.Extract(root), nil
}

// RefreshDetails fetches details for each URL in sequence with a fixed
// delay between items, to stay under the site's abuse defenses. A failing
// URL yields an isolated error entry; the batch always completes.
func (e *Engine) RefreshDetails(ctx context.Context, urls []string) []models.DetailResult {
	results := make([]models.DetailResult, 0, len(urls))
	for i, u := range urls {
		if i > 0 {
			select {
			case <-time.After(e.batchDelay):
			case <-ctx.Done():
				results = append(results, models.DetailResult{ProductURL: u, Error: ctx.Err().Error()})
				continue
			}
		}

		price, remaining, err := e.FetchDetail(ctx, u)
		if err != nil {
			results = append(results, models.DetailResult{ProductURL: u, Error: err.Error()})
			continue
		}
		results = append(results, models.DetailResult{
			ProductURL:    u,
			Price:         price,
			TimeRemaining: remaining,
		})
	}
	return results
}
