package models

// LoginRequest is the payload for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse reports the login outcome. RequiresTwoFactor is set when
// the site answered with a two-factor challenge; the caller must follow up
// with POST /login-two-factor before the session becomes usable.
type LoginResponse struct {
	Success           bool   `json:"success"`
	RequiresTwoFactor bool   `json:"requiresTwoFactor,omitempty"`
	Message           string `json:"message"`
}

// TwoFactorRequest is the payload for POST /login-two-factor.
type TwoFactorRequest struct {
	TwoFactorCode string `json:"twoFactorCode"`
}

// SearchRequest is the payload for POST /search.
type SearchRequest struct {
	Terms    []SearchTerm `json:"terms"`
	Page     int          `json:"page,omitempty"`
	PageSize int          `json:"pageSize,omitempty"`
}

// SearchResponse is shared by /search and /load-more.
type SearchResponse struct {
	Success         bool      `json:"success"`
	Results         []Product `json:"results"`
	Count           int       `json:"count"`
	TotalResults    int       `json:"totalResults"`
	CurrentPage     int       `json:"currentPage"`
	SearchContextID string    `json:"searchContextId"`
	Duration        string    `json:"duration"`
	Message         string    `json:"message,omitempty"`
}

// LoadMoreRequest is the payload for POST /load-more.
type LoadMoreRequest struct {
	SearchContextID string `json:"searchContextId"`
	PageSize        int    `json:"pageSize,omitempty"`
}

// DetailsRequest is the payload for POST /details.
type DetailsRequest struct {
	URLs []string `json:"urls"`
}

// DetailsResponse is the result of a detail refresh batch.
type DetailsResponse struct {
	Success        bool           `json:"success"`
	UpdatedDetails []DetailResult `json:"updatedDetails"`
	Message        string         `json:"message,omitempty"`
}

// PlaceBidRequest is the payload for POST /place-bid. ProductID is the
// full product page URL.
type PlaceBidRequest struct {
	ProductID string  `json:"productId"`
	Amount    float64 `json:"amount"`
}

// PlaceBidResponse reports a bid attempt.
type PlaceBidResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Details *BidResult `json:"details,omitempty"`
}

// UpdateBidPricesRequest is the payload for POST /update-bid-prices.
type UpdateBidPricesRequest struct {
	ProductURLs []string `json:"productUrls"`
}

// UpdateBidPricesResponse returns the ledger records whose prices were
// refreshed.
type UpdateBidPricesResponse struct {
	Success     bool        `json:"success"`
	UpdatedBids []BidRecord `json:"updatedBids"`
	Count       int         `json:"count"`
	Message     string      `json:"message,omitempty"`
}

// ErrorResponse is the uniform failure shape for every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
