package models

import "time"

// Product is one auction listing parsed from a search result card. Price
// and TimeRemaining are display strings taken verbatim from the page;
// fields that could not be extracted hold a sentinel placeholder instead
// of being empty.
type Product struct {
	Title         string   `json:"title"`
	Price         string   `json:"price"`
	URL           string   `json:"url"`
	TimeRemaining string   `json:"timeRemaining"`
	Images        []string `json:"images"`
}

// SearchTerm is one search query with optional price bounds in yen.
type SearchTerm struct {
	Term     string `json:"term"`
	MinPrice *int   `json:"minPrice,omitempty"`
	MaxPrice *int   `json:"maxPrice,omitempty"`
}

// SearchPageResult is the outcome of fetching a single results page. It is
// always well-formed: failed scrapes come back as an empty product list so
// callers can keep paginating.
type SearchPageResult struct {
	Products      []Product `json:"products"`
	TotalProducts int       `json:"totalProducts"`
	CurrentPage   int       `json:"currentPage"`
}

// SearchContext is a server-side cursor over an in-progress multi-term,
// multi-page search. TermIndex and Page always point at the last page that
// was actually fetched. Reported totals and fetched counts are tracked per
// term, indexed like Terms; TotalProducts is the sum of the per-term totals
// reported so far.
type SearchContext struct {
	ID            string       `json:"id"`
	Terms         []SearchTerm `json:"terms"`
	TermIndex     int          `json:"termIndex"`
	Page          int          `json:"page"`
	Results       []Product    `json:"results"`
	TermTotals    []int        `json:"termTotals"`
	TermFetched   []int        `json:"termFetched"`
	TotalProducts int          `json:"totalProducts"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	ExpiresAt     time.Time    `json:"expiresAt"`
}

// BidRecord is one entry in the durable bid ledger, keyed by product URL.
// Placing a second bid on the same URL replaces the record.
type BidRecord struct {
	ProductURL   string    `json:"productUrl"`
	Amount       float64   `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
	Title        string    `json:"title,omitempty"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	CurrentPrice string    `json:"currentPrice,omitempty"`
}

// DetailResult is the per-URL outcome of a detail refresh batch. Error is
// set instead of Price/TimeRemaining when that URL could not be fetched;
// one bad URL never aborts the batch.
type DetailResult struct {
	ProductURL    string `json:"productUrl"`
	Price         string `json:"price,omitempty"`
	TimeRemaining string `json:"timeRemaining,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BidResult is the structured outcome of a bid attempt. Failures carry the
// last observed URL and, when one could be captured, a screenshot path for
// manual verification.
type BidResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	State          string `json:"state"`
	FinalURL       string `json:"finalUrl,omitempty"`
	ScreenshotPath string `json:"screenshotPath,omitempty"`
}
