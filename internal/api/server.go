package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"aucbid/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes.
func (h *Handler) SetupRoutes(limiter *ratelimit.Limiter, activity *Activity) *mux.Router {
	r := mux.NewRouter()

	// Browser-driving endpoints are rate limited per client; a runaway
	// caller would otherwise hammer the target site through us.
	limited := r.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(limiter))
	// OPTIONS is registered alongside POST so browser preflights match the
	// route and reach corsMiddleware instead of a bare 405.
	limited.HandleFunc("/login", h.Login).Methods("POST", "OPTIONS")
	limited.HandleFunc("/login-two-factor", h.LoginTwoFactor).Methods("POST", "OPTIONS")
	limited.HandleFunc("/search", h.Search).Methods("POST", "OPTIONS")
	limited.HandleFunc("/load-more", h.LoadMore).Methods("POST", "OPTIONS")
	limited.HandleFunc("/details", h.Details).Methods("POST", "OPTIONS")
	limited.HandleFunc("/place-bid", h.PlaceBid).Methods("POST", "OPTIONS")
	limited.HandleFunc("/update-bid-prices", h.UpdateBidPrices).Methods("POST", "OPTIONS")

	// Read-only endpoints are not rate limited.
	r.HandleFunc("/bids", h.GetBids).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")

	r.Use(corsMiddleware)
	r.Use(ActivityMiddleware(activity))

	return r
}

// corsMiddleware adds CORS headers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
