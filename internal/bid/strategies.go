package bid

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// navStrategy gets the browser from the product page onto the bid form.
// The source site serves several page variants, so two interchangeable
// strategies exist; the active one is chosen by configuration.
type navStrategy interface {
	name() string
	openBidForm(pg playwright.Page, auctionID string) error
}

// directNav constructs the bid form URL from the auction id and navigates
// straight to it. Canonical strategy: fewer moving parts than clicking
// through the product page.
type directNav struct {
	baseURL string
	timeout time.Duration
}

func (d directNav) name() string { return "direct" }

func (d directNav) openBidForm(pg playwright.Page, auctionID string) error {
	target := fmt.Sprintf("%s/jp/show/bid_preview?aID=%s", d.baseURL, auctionID)
	_, err := pg.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(d.timeout.Milliseconds())),
	})
	return err
}

// clickNav locates the on-page bid button and follows the site's own
// redirect. Used where direct URL construction is blocked.
type clickNav struct {
	timeout time.Duration
}

var bidButtonSelectors = []string{".Price__bidBtn", "a[href*='bid_preview']", "#bidNowBtn", "a:has-text('入札する')"}

func (c clickNav) name() string { return "click" }

func (c clickNav) openBidForm(pg playwright.Page, _ string) error {
	if err := clickFirst(pg, bidButtonSelectors); err != nil {
		return fmt.Errorf("bid button not found: %w", err)
	}
	return pg.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})
}
