package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aucbid/internal/bid"
	"aucbid/internal/ratelimit"
	"aucbid/internal/searchctx"
	"aucbid/internal/session"
	"aucbid/internal/storage"
	"aucbid/pkg/models"
)

type fakeSessions struct {
	requires2FA bool
	loginErr    error
	codeErr     error
	loggedIn    bool
}

func (f *fakeSessions) Login(ctx context.Context, username, password string) (bool, error) {
	return f.requires2FA, f.loginErr
}
func (f *fakeSessions) SubmitTwoFactorCode(ctx context.Context, code string) error {
	return f.codeErr
}
func (f *fakeSessions) CheckLoginState() bool { return f.loggedIn }

type fakeSearcher struct {
	// pages[term][page]
	pages map[string]map[int]models.SearchPageResult
}

func (f *fakeSearcher) SearchPage(ctx context.Context, term models.SearchTerm, page, pageSize int) models.SearchPageResult {
	if byPage, ok := f.pages[term.Term]; ok {
		if res, ok := byPage[page]; ok {
			return res
		}
	}
	return models.SearchPageResult{Products: []models.Product{}, CurrentPage: page}
}

type fakeDetails struct {
	results []models.DetailResult
}

func (f *fakeDetails) RefreshDetails(ctx context.Context, urls []string) []models.DetailResult {
	return f.results
}

type fakeBidder struct {
	result models.BidResult
	err    error
}

func (f *fakeBidder) PlaceBid(ctx context.Context, productURL string, amount float64) (models.BidResult, error) {
	return f.result, f.err
}

type testDeps struct {
	sessions *fakeSessions
	searcher *fakeSearcher
	details  *fakeDetails
	bidder   *fakeBidder
	store    *storage.Store
	contexts *searchctx.Store
}

func newTestServer(t *testing.T, deps testDeps) *httptest.Server {
	t.Helper()
	if deps.sessions == nil {
		deps.sessions = &fakeSessions{}
	}
	if deps.searcher == nil {
		deps.searcher = &fakeSearcher{}
	}
	if deps.details == nil {
		deps.details = &fakeDetails{}
	}
	if deps.bidder == nil {
		deps.bidder = &fakeBidder{}
	}
	if deps.store == nil {
		store, err := storage.NewStore(t.TempDir())
		require.NoError(t, err)
		deps.store = store
	}
	if deps.contexts == nil {
		deps.contexts = searchctx.NewStore(30 * time.Minute)
	}

	h := NewHandler(deps.sessions, deps.searcher, deps.details, deps.bidder, deps.store, deps.contexts, 50)
	router := h.SetupRoutes(ratelimit.NewLimiter(6000, 100), NewActivity())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLoginRequiresCredentials(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp := postJSON(t, srv.URL+"/login", models.LoginRequest{Username: "u"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[models.ErrorResponse](t, resp)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Message)
}

func TestLoginReportsTwoFactorChallenge(t *testing.T) {
	srv := newTestServer(t, testDeps{sessions: &fakeSessions{requires2FA: true}})

	resp := postJSON(t, srv.URL+"/login", models.LoginRequest{Username: "u", Password: "p"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[models.LoginResponse](t, resp)
	assert.True(t, body.Success)
	assert.True(t, body.RequiresTwoFactor)
}

func TestLoginTwoFactorBadCodeIs400(t *testing.T) {
	srv := newTestServer(t, testDeps{sessions: &fakeSessions{codeErr: session.ErrBadCodeLength}})

	resp := postJSON(t, srv.URL+"/login-two-factor", models.TwoFactorRequest{TwoFactorCode: "123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[models.ErrorResponse](t, resp)
	assert.False(t, body.Success)
}

func TestLoginTwoFactorNoPendingSessionIs400(t *testing.T) {
	srv := newTestServer(t, testDeps{sessions: &fakeSessions{codeErr: session.ErrNoTempSession}})

	resp := postJSON(t, srv.URL+"/login-two-factor", models.TwoFactorRequest{TwoFactorCode: "123456"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchRequiresTerms(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp := postJSON(t, srv.URL+"/search", models.SearchRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchCreatesContextAndReturnsFirstPage(t *testing.T) {
	searcher := &fakeSearcher{pages: map[string]map[int]models.SearchPageResult{
		"camera": {1: {
			Products: []models.Product{
				{Title: "a", URL: "u1", Price: "100円", TimeRemaining: "1日"},
				{Title: "b", URL: "u2", Price: "200円", TimeRemaining: "2日"},
			},
			TotalProducts: 3,
			CurrentPage:   1,
		}},
	}}
	contexts := searchctx.NewStore(30 * time.Minute)
	srv := newTestServer(t, testDeps{searcher: searcher, contexts: contexts})

	resp := postJSON(t, srv.URL+"/search", models.SearchRequest{
		Terms: []models.SearchTerm{{Term: "camera"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[models.SearchResponse](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, 3, body.TotalResults)
	assert.Equal(t, 1, body.CurrentPage)
	require.NotEmpty(t, body.SearchContextID)
	assert.NotEmpty(t, body.Duration)

	_, ok := contexts.Get(body.SearchContextID)
	assert.True(t, ok)
}

func TestLoadMoreUnknownContextIs404(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp := postJSON(t, srv.URL+"/load-more", models.LoadMoreRequest{SearchContextID: "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decode[models.ErrorResponse](t, resp)
	assert.False(t, body.Success)
}

func TestLoadMoreFallsOverToNextTerm(t *testing.T) {
	searcher := &fakeSearcher{pages: map[string]map[int]models.SearchPageResult{
		"first": {1: {
			Products:      []models.Product{{Title: "a", URL: "u1"}},
			TotalProducts: 10,
			CurrentPage:   1,
		}},
		// "first" has no page 2, so load-more must fall over to "second".
		"second": {1: {
			Products:    []models.Product{{Title: "b", URL: "u2"}},
			CurrentPage: 1,
		}},
	}}
	contexts := searchctx.NewStore(30 * time.Minute)
	srv := newTestServer(t, testDeps{searcher: searcher, contexts: contexts})

	resp := postJSON(t, srv.URL+"/search", models.SearchRequest{
		Terms: []models.SearchTerm{{Term: "first"}, {Term: "second"}},
	})
	body := decode[models.SearchResponse](t, resp)

	resp = postJSON(t, srv.URL+"/load-more", models.LoadMoreRequest{SearchContextID: body.SearchContextID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	more := decode[models.SearchResponse](t, resp)
	assert.True(t, more.Success)
	require.Equal(t, 1, more.Count)
	assert.Equal(t, "u2", more.Results[0].URL)
	assert.Equal(t, 1, more.CurrentPage, "fallover restarts at page 1 of the next term")
}

// After falling over to the last term, load-more must keep paginating that
// term until its own reported total is fetched; results accumulated from
// earlier terms must not end it early.
func TestLoadMoreContinuesLastTermAfterFallover(t *testing.T) {
	searcher := &fakeSearcher{pages: map[string]map[int]models.SearchPageResult{
		"a": {1: {
			Products:      []models.Product{{Title: "a1", URL: "u1"}, {Title: "a2", URL: "u2"}},
			TotalProducts: 2,
			CurrentPage:   1,
		}},
		"b": {
			1: {
				Products:      []models.Product{{Title: "b1", URL: "u3"}},
				TotalProducts: 3,
				CurrentPage:   1,
			},
			2: {
				Products:    []models.Product{{Title: "b2", URL: "u4"}, {Title: "b3", URL: "u5"}},
				CurrentPage: 2,
			},
		},
	}}
	srv := newTestServer(t, testDeps{searcher: searcher})

	resp := postJSON(t, srv.URL+"/search", models.SearchRequest{
		Terms: []models.SearchTerm{{Term: "a"}, {Term: "b"}},
	})
	body := decode[models.SearchResponse](t, resp)
	require.Equal(t, 2, body.Count)

	// Term "a" has no page 2; this call falls over to "b" page 1.
	resp = postJSON(t, srv.URL+"/load-more", models.LoadMoreRequest{SearchContextID: body.SearchContextID})
	more := decode[models.SearchResponse](t, resp)
	require.Equal(t, 1, more.Count)
	assert.Equal(t, "u3", more.Results[0].URL)

	// "b" reported 3 results and only 1 is fetched; the next call must
	// return b page 2, not "all results fetched".
	resp = postJSON(t, srv.URL+"/load-more", models.LoadMoreRequest{SearchContextID: body.SearchContextID})
	more = decode[models.SearchResponse](t, resp)
	require.Equal(t, 2, more.Count, "last term's remaining page must be fetched")
	assert.Empty(t, more.Message)

	// Now b's total is reached and pagination ends.
	resp = postJSON(t, srv.URL+"/load-more", models.LoadMoreRequest{SearchContextID: body.SearchContextID})
	more = decode[models.SearchResponse](t, resp)
	assert.Equal(t, 0, more.Count)
	assert.Equal(t, "all results fetched", more.Message)
}

func TestDetailsRequiresURLs(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp := postJSON(t, srv.URL+"/details", models.DetailsRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlaceBidValidation(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	resp := postJSON(t, srv.URL+"/place-bid", models.PlaceBidRequest{Amount: 100})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing productId")

	resp = postJSON(t, srv.URL+"/place-bid", models.PlaceBidRequest{ProductID: "https://x", Amount: 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "non-positive amount")

	resp = postJSON(t, srv.URL+"/place-bid", map[string]interface{}{"productId": "https://x", "amount": "abc"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "non-numeric amount")
}

func TestPlaceBidMapsContractErrors(t *testing.T) {
	srv := newTestServer(t, testDeps{bidder: &fakeBidder{err: bid.ErrInvalidProductURL}})

	resp := postJSON(t, srv.URL+"/place-bid", models.PlaceBidRequest{ProductID: "https://example.com/x", Amount: 100})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	srv = newTestServer(t, testDeps{bidder: &fakeBidder{err: bid.ErrNoSession}})
	resp = postJSON(t, srv.URL+"/place-bid", models.PlaceBidRequest{ProductID: "https://example.com/x", Amount: 100})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPlaceBidReturnsFailureResult(t *testing.T) {
	srv := newTestServer(t, testDeps{bidder: &fakeBidder{result: models.BidResult{
		Success: false,
		Message: "no completion marker after submit",
		State:   "submitting",
	}}})

	resp := postJSON(t, srv.URL+"/place-bid", models.PlaceBidRequest{
		ProductID: "https://page.auctions.yahoo.co.jp/jp/auction/x123456789",
		Amount:    500,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[models.PlaceBidResponse](t, resp)
	assert.False(t, body.Success)
	require.NotNil(t, body.Details)
	assert.Equal(t, "submitting", body.Details.State)
}

func TestGetBidsReturnsLedger(t *testing.T) {
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.UpsertBid(models.BidRecord{
		ProductURL: "https://page.auctions.yahoo.co.jp/jp/auction/x123456789",
		Amount:     750,
		Timestamp:  time.Now(),
	}))
	srv := newTestServer(t, testDeps{store: store})

	resp, err := http.Get(srv.URL + "/bids")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bids := decode[[]models.BidRecord](t, resp)
	require.Len(t, bids, 1)
	assert.Equal(t, float64(750), bids[0].Amount)
}

func TestUpdateBidPricesUpdatesLedger(t *testing.T) {
	url := "https://page.auctions.yahoo.co.jp/jp/auction/x123456789"
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.UpsertBid(models.BidRecord{ProductURL: url, Amount: 750}))

	srv := newTestServer(t, testDeps{
		store: store,
		details: &fakeDetails{results: []models.DetailResult{
			{ProductURL: url, Price: "900円", TimeRemaining: "3時間"},
			{ProductURL: "https://page.auctions.yahoo.co.jp/jp/auction/gone", Error: "navigation failed"},
		}},
	})

	resp := postJSON(t, srv.URL+"/update-bid-prices", models.UpdateBidPricesRequest{
		ProductURLs: []string{url, "https://page.auctions.yahoo.co.jp/jp/auction/gone"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[models.UpdateBidPricesResponse](t, resp)
	assert.True(t, body.Success)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "900円", body.UpdatedBids[0].CurrentPrice)
}

// Browser preflights on the mutating routes must reach the CORS handler
// instead of dying on a method mismatch.
func TestPreflightOnMutatingRoutes(t *testing.T) {
	srv := newTestServer(t, testDeps{})

	for _, path := range []string{"/login", "/search", "/place-bid"} {
		req, err := http.NewRequest(http.MethodOptions, srv.URL+path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, "preflight %s", path)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"), "preflight %s", path)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testDeps{sessions: &fakeSessions{loggedIn: true}})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "true", body["loggedIn"])
}
