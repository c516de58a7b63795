package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"aucbid/internal/bid"
	"aucbid/internal/searchctx"
	"aucbid/internal/session"
	"aucbid/pkg/models"
)

// The handler depends on narrow interfaces so the HTTP layer can be tested
// without a browser.

// SessionService is the authentication surface.
type SessionService interface {
	Login(ctx context.Context, username, password string) (requiresTwoFactor bool, err error)
	SubmitTwoFactorCode(ctx context.Context, code string) error
	CheckLoginState() bool
}

// Searcher fetches one page of search results.
type Searcher interface {
	SearchPage(ctx context.Context, term models.SearchTerm, page, pageSize int) models.SearchPageResult
}

// DetailFetcher refreshes price/time-remaining for a batch of URLs.
type DetailFetcher interface {
	RefreshDetails(ctx context.Context, urls []string) []models.DetailResult
}

// Bidder places a single bid.
type Bidder interface {
	PlaceBid(ctx context.Context, productURL string, amount float64) (models.BidResult, error)
}

// BidLedger reads and updates the durable bid records.
type BidLedger interface {
	ListBids() ([]models.BidRecord, error)
	UpdateBidPrice(productURL, price string) (models.BidRecord, bool, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions SessionService
	search   Searcher
	details  DetailFetcher
	bids     Bidder
	ledger   BidLedger
	contexts *searchctx.Store
	pageSize int
}

// NewHandler creates the HTTP handler set.
func NewHandler(sessions SessionService, search Searcher, details DetailFetcher, bids Bidder, ledger BidLedger, contexts *searchctx.Store, defaultPageSize int) *Handler {
	return &Handler{
		sessions: sessions,
		search:   search,
		details:  details,
		bids:     bids,
		ledger:   ledger,
		contexts: contexts,
		pageSize: defaultPageSize,
	}
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	requires2FA, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed: "+err.Error())
		return
	}

	resp := models.LoginResponse{Success: true, Message: "login successful"}
	if requires2FA {
		resp.RequiresTwoFactor = true
		resp.Message = "two-factor code required"
	}
	writeJSON(w, http.StatusOK, resp)
}

// LoginTwoFactor handles POST /login-two-factor.
func (h *Handler) LoginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req models.TwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	err := h.sessions.SubmitTwoFactorCode(r.Context(), req.TwoFactorCode)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, models.LoginResponse{Success: true, Message: "login completed"})
	case errors.Is(err, session.ErrBadCodeLength), errors.Is(err, session.ErrNoTempSession):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "two-factor submission failed: "+err.Error())
	}
}

// Search handles POST /search: it opens a new search context and fetches
// the first page.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Terms) == 0 {
		writeError(w, http.StatusBadRequest, "at least one search term is required")
		return
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = h.pageSize
	}

	start := time.Now()
	sc := h.contexts.Create(req.Terms)
	res := h.search.SearchPage(r.Context(), sc.Terms[0], page, pageSize)
	added := h.contexts.AppendResults(sc, res, 0)
	h.contexts.Touch(sc)

	writeJSON(w, http.StatusOK, models.SearchResponse{
		Success:         true,
		Results:         added,
		Count:           len(added),
		TotalResults:    sc.TotalProducts,
		CurrentPage:     sc.Page,
		SearchContextID: sc.ID,
		Duration:        time.Since(start).Round(time.Millisecond).String(),
	})
}

// LoadMore handles POST /load-more: it advances an existing search context
// one page, falling over to the next term when the current one dries up.
func (h *Handler) LoadMore(w http.ResponseWriter, r *http.Request) {
	var req models.LoadMoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sc, ok := h.contexts.Get(req.SearchContextID)
	if !ok {
		writeError(w, http.StatusNotFound, "search context not found or expired")
		return
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = h.pageSize
	}

	start := time.Now()

	if h.contexts.Exhausted(sc) {
		writeJSON(w, http.StatusOK, models.SearchResponse{
			Success:         true,
			Results:         []models.Product{},
			TotalResults:    sc.TotalProducts,
			CurrentPage:     sc.Page,
			SearchContextID: sc.ID,
			Duration:        time.Since(start).Round(time.Millisecond).String(),
			Message:         "all results fetched",
		})
		return
	}

	termIndex := sc.TermIndex
	res := h.search.SearchPage(r.Context(), sc.Terms[termIndex], sc.Page+1, pageSize)

	// An empty page ends the current term; move to the next one if any.
	if len(res.Products) == 0 && termIndex+1 < len(sc.Terms) {
		termIndex++
		res = h.search.SearchPage(r.Context(), sc.Terms[termIndex], 1, pageSize)
	}

	added := h.contexts.AppendResults(sc, res, termIndex)
	h.contexts.Touch(sc)

	writeJSON(w, http.StatusOK, models.SearchResponse{
		Success:         true,
		Results:         added,
		Count:           len(added),
		TotalResults:    sc.TotalProducts,
		CurrentPage:     sc.Page,
		SearchContextID: sc.ID,
		Duration:        time.Since(start).Round(time.Millisecond).String(),
	})
}

// Details handles POST /details.
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	var req models.DetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one URL is required")
		return
	}

	writeJSON(w, http.StatusOK, models.DetailsResponse{
		Success:        true,
		UpdatedDetails: h.details.RefreshDetails(r.Context(), req.URLs),
	})
}

// PlaceBid handles POST /place-bid.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}

	result, err := h.bids.PlaceBid(r.Context(), req.ProductID, req.Amount)
	switch {
	case errors.Is(err, bid.ErrInvalidProductURL), errors.Is(err, bid.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, bid.ErrNoSession):
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "bid failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, models.PlaceBidResponse{
		Success: result.Success,
		Message: result.Message,
		Details: &result,
	})
}

// UpdateBidPrices handles POST /update-bid-prices: it re-scrapes current
// prices for ledger entries and writes them back.
func (h *Handler) UpdateBidPrices(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateBidPricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.ProductURLs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one product URL is required")
		return
	}

	details := h.details.RefreshDetails(r.Context(), req.ProductURLs)
	updated := make([]models.BidRecord, 0, len(details))
	for _, d := range details {
		if d.Error != "" {
			continue
		}
		rec, ok, err := h.ledger.UpdateBidPrice(d.ProductURL, d.Price)
		if err != nil || !ok {
			continue
		}
		updated = append(updated, rec)
	}

	writeJSON(w, http.StatusOK, models.UpdateBidPricesResponse{
		Success:     true,
		UpdatedBids: updated,
		Count:       len(updated),
	})
}

// GetBids handles GET /bids.
func (h *Handler) GetBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.ledger.ListBids()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read bid ledger: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"loggedIn": boolWord(h.sessions.CheckLoginState()),
	})
}

func boolWord(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Success: false, Message: message})
}
