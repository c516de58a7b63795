// Package bid places a single bid end to end as a small state machine:
// Idle → Navigating → AwaitingBidButton → BidFormOpen → Submitting →
// Confirmed | Failed. Success is verified strictly by the post-submit URL;
// an ambiguous outcome after a confirmed click is reported as a failure for
// manual verification and never auto-resubmitted.
package bid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"aucbid/internal/browser"
	"aucbid/internal/scrape"
	"aucbid/internal/session"
	"aucbid/internal/storage"
	"aucbid/pkg/models"
)

// Bid flow states.
const (
	StateIdle              = "idle"
	StateNavigating        = "navigating"
	StateAwaitingBidButton = "awaiting_bid_button"
	StateBidFormOpen       = "bid_form_open"
	StateSubmitting        = "submitting"
	StateConfirmed         = "confirmed"
	StateFailed            = "failed"
)

// Contract violations; everything else comes back as a failure Result.
var (
	ErrInvalidProductURL = errors.New("product URL does not look like an auction page")
	ErrInvalidAmount     = errors.New("bid amount must be a positive number")
	ErrNoSession         = errors.New("no valid login session")
)

var auctionIDPattern = regexp.MustCompile(`/auction/([A-Za-z0-9]+)(?:[/?#]|$)`)

// ParseAuctionID extracts the auction identifier from a product page URL.
func ParseAuctionID(productURL string) (string, error) {
	m := auctionIDPattern.FindStringSubmatch(productURL)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidProductURL, productURL)
	}
	return m[1], nil
}

// Options configures the bid engine.
type Options struct {
	BaseURL        string
	NavTimeout     time.Duration
	Strategy       string // config.BidStrategyDirect or config.BidStrategyClick
	DiagnosticsDir string
}

// Engine performs bid submission.
type Engine struct {
	browsers *browser.Manager
	sessions *session.Manager
	store    *storage.Store
	opts     Options
	nav      navStrategy
}

// NewEngine creates a bid engine using the configured navigation strategy.
func NewEngine(browsers *browser.Manager, sessions *session.Manager, store *storage.Store, opts Options) *Engine {
	e := &Engine{
		browsers: browsers,
		sessions: sessions,
		store:    store,
		opts:     opts,
	}
	if opts.Strategy == "click" {
		e.nav = clickNav{timeout: opts.NavTimeout}
	} else {
		e.nav = directNav{baseURL: strings.TrimRight(opts.BaseURL, "/"), timeout: opts.NavTimeout}
	}
	return e
}

var (
	priceFieldSelectors = []string{"input[name='price']", "#Price", "input[name='bidPrice']"}
	shippingSelectors   = []string{"select[name='shipping']", "#shipMethod", "select[name='delivery']"}
	paymentSelectors    = []string{"input[name='payMethod']", "input[name='payment'][type='radio']"}
	submitSelectors     = []string{"#bid_submit", "button[type='submit']", ".Button--primary"}

	productTitle = scrape.Fallback{
		Strategies: []scrape.Strategy{scrape.TextOf("h1.ProductTitle__text"), scrape.TextOf("h1")},
	}
	productImage = scrape.Fallback{
		Strategies: []scrape.Strategy{
			scrape.AttrOf{Selector: ".ProductImage__image img", Attr: "src"},
			scrape.AttrOf{Selector: "img", Attr: "src"},
		},
	}
)

// Completion markers checked against the post-submit URL.
var completionMarkers = []string{"/bid/complete/", "/confirm"}

// PlaceBid runs the full flow for one product. An error return means a
// contract violation (bad URL, bad amount, unusable session); every runtime
// failure is reported inside the Result instead.
func (e *Engine) PlaceBid(ctx context.Context, productURL string, amount float64) (models.BidResult, error) {
	auctionID, err := ParseAuctionID(productURL)
	if err != nil {
		return models.BidResult{}, err
	}
	if amount <= 0 {
		return models.BidResult{}, ErrInvalidAmount
	}

	// Bidding requires a valid session up front; one refresh attempt is
	// allowed, after which a bad session is the caller's problem.
	if !e.sessions.CheckLoginState() {
		log.Println("bid: session invalid, attempting refresh")
		if err := e.sessions.RefreshLoginSession(ctx); err != nil {
			return models.BidResult{}, fmt.Errorf("%w: %v", ErrNoSession, err)
		}
	}
	sess, err := e.sessions.CurrentSession()
	if err != nil {
		return models.BidResult{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}

	bctx, err := e.browsers.AcquireContext(ctx, browser.ContextOptions{
		UserAgent: sess.UserAgent,
		Cookies:   sess.Cookies,
	})
	if err != nil {
		return models.BidResult{}, err
	}
	defer e.browsers.Release(bctx)

	pg, err := bctx.NewPage()
	if err != nil {
		return models.BidResult{}, fmt.Errorf("failed to open page: %w", err)
	}

	state := StateNavigating
	if _, err := pg.Goto(productURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(e.opts.NavTimeout.Milliseconds())),
	}); err != nil {
		return e.failure(pg, auctionID, state, fmt.Sprintf("failed to open product page: %v", err)), nil
	}

	// Grab ledger metadata while we are on the product page.
	root := scrape.PageNode(pg)
	title, _ := productTitle.Locate(root)
	thumbnail, _ := productImage.Locate(root)

	state = StateAwaitingBidButton
	if err := e.nav.openBidForm(pg, auctionID); err != nil {
		return e.failure(pg, auctionID, state, fmt.Sprintf("failed to open bid form (%s strategy): %v", e.nav.name(), err)), nil
	}

	landed := pg.URL()
	if strings.Contains(strings.ToLower(landed), "login") {
		return e.failure(pg, auctionID, state, "redirected to login: session expired, re-authenticate and retry"), nil
	}
	if !strings.Contains(landed, "/bid") {
		return e.failure(pg, auctionID, state, fmt.Sprintf("did not land on a bid form: %s", landed)), nil
	}

	state = StateBidFormOpen
	if err := fillFirst(pg, priceFieldSelectors, strconv.FormatFloat(amount, 'f', -1, 64)); err != nil {
		return e.failure(pg, auctionID, state, fmt.Sprintf("failed to fill bid amount: %v", err)), nil
	}
	e.selectShippingPlan(pg)
	e.selectPaymentMethod(pg)

	state = StateSubmitting
	if err := clickFirst(pg, submitSelectors); err != nil {
		return e.failure(pg, auctionID, state, fmt.Sprintf("failed to submit bid: %v", err)), nil
	}
	pg.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})

	final := pg.URL()
	if !isCompletionURL(final) {
		// The click went through but the site never confirmed; treat as
		// failed and leave verification to the operator. Never resubmit.
		return e.failure(pg, auctionID, state, fmt.Sprintf("no completion marker after submit: %s", final)), nil
	}

	rec := models.BidRecord{
		ProductURL: productURL,
		Amount:     amount,
		Timestamp:  time.Now(),
		Title:      title,
		Thumbnail:  thumbnail,
	}
	if err := e.store.UpsertBid(rec); err != nil {
		log.Printf("Warning: bid confirmed but ledger write failed: %v", err)
	}

	log.Printf("Bid of %.0f placed on auction %s", amount, auctionID)
	return models.BidResult{
		Success:  true,
		Message:  "bid placed",
		State:    StateConfirmed,
		FinalURL: final,
	}, nil
}

// selectShippingPlan picks the first available shipping plan and dispatches
// a change event; the form's client-side pricing listens for it.
func (e *Engine) selectShippingPlan(pg playwright.Page) {
	for _, sel := range shippingSelectors {
		count, err := pg.Locator(sel).Count()
		if err != nil || count == 0 {
			continue
		}
		loc := pg.Locator(sel).First()
		if _, err := loc.SelectOption(playwright.SelectOptionValues{
			Indexes: &[]int{0},
		}); err != nil {
			log.Printf("bid: shipping plan selection failed: %v", err)
			return
		}
		if err := loc.DispatchEvent("change", nil); err != nil {
			log.Printf("bid: shipping change event failed: %v", err)
		}
		return
	}
}

// selectPaymentMethod checks the first payment radio when one is present.
func (e *Engine) selectPaymentMethod(pg playwright.Page) {
	for _, sel := range paymentSelectors {
		count, err := pg.Locator(sel).Count()
		if err != nil || count == 0 {
			continue
		}
		if err := pg.Locator(sel).First().Check(); err != nil {
			log.Printf("bid: payment method selection failed: %v", err)
		}
		return
	}
}

// failure builds a failed Result with the current URL and, when the page
// will give us one, a diagnostic screenshot.
func (e *Engine) failure(pg playwright.Page, auctionID, state, message string) models.BidResult {
	res := models.BidResult{
		Success:  false,
		Message:  message,
		State:    state,
		FinalURL: pg.URL(),
	}
	shot := filepath.Join(e.opts.DiagnosticsDir,
		fmt.Sprintf("bid-%s-%d.png", auctionID, time.Now().Unix()))
	if _, err := pg.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(shot),
		FullPage: playwright.Bool(true),
	}); err != nil {
		log.Printf("bid: diagnostic screenshot failed: %v", err)
	} else {
		res.ScreenshotPath = shot
	}
	log.Printf("bid: %s failed at %s: %s", auctionID, state, message)
	return res
}

func isCompletionURL(u string) bool {
	for _, marker := range completionMarkers {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}

func fillFirst(pg playwright.Page, selectors []string, value string) error {
	for _, sel := range selectors {
		count, err := pg.Locator(sel).Count()
		if err != nil || count == 0 {
			continue
		}
		return pg.Locator(sel).First().Fill(value)
	}
	return fmt.Errorf("no selector matched: %v", selectors)
}

func clickFirst(pg playwright.Page, selectors []string) error {
	for _, sel := range selectors {
		count, err := pg.Locator(sel).Count()
		if err != nil || count == 0 {
			continue
		}
		return pg.Locator(sel).First().Click()
	}
	return fmt.Errorf("no selector matched: %v", selectors)
}
