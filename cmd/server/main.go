package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aucbid/internal/api"
	"aucbid/internal/bid"
	"aucbid/internal/browser"
	"aucbid/internal/config"
	"aucbid/internal/ratelimit"
	"aucbid/internal/scrape"
	"aucbid/internal/searchctx"
	"aucbid/internal/session"
	"aucbid/internal/storage"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	log.Println("Starting aucbid...")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := storage.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open data directory: %v", err)
	}
	log.Println("✓ Storage initialized at", cfg.DataDir)

	browsers := browser.NewManager(browser.Options{
		Headless:     cfg.Headless,
		ChromiumPath: cfg.ChromiumPath,
		MaxContexts:  cfg.MaxContexts,
		UserAgent:    cfg.UserAgent,
	})
	defer browsers.Close()
	log.Println("✓ Browser manager initialized (lazy launch)")

	sessions := session.NewManager(browsers, store, session.Options{
		LoginURL:     cfg.LoginURL,
		ChallengeURL: cfg.ChallengeURL,
		NavTimeout:   cfg.NavTimeout,
		UserAgent:    cfg.UserAgent,
		Username:     cfg.Username,
		Password:     cfg.Password,
	})
	log.Println("✓ Session manager initialized")

	scraper := scrape.NewEngine(browsers, scrape.EngineOptions{
		BaseURL:    cfg.BaseURL,
		NavTimeout: cfg.NavTimeout,
		Retries:    cfg.SearchRetries,
		RetryDelay: cfg.RetryDelay,
		BatchDelay: cfg.BatchDelay,
	})
	log.Println("✓ Scrape engine initialized")

	bidder := bid.NewEngine(browsers, sessions, store, bid.Options{
		BaseURL:        cfg.BaseURL,
		NavTimeout:     cfg.NavTimeout,
		Strategy:       cfg.BidStrategy,
		DiagnosticsDir: store.DiagnosticsDir(),
	})
	log.Printf("✓ Bid engine initialized (%s strategy)", cfg.BidStrategy)

	contexts := searchctx.NewStore(cfg.ContextTTL)
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	go contexts.RunReaper(reaperCtx, cfg.SweepInterval)
	log.Printf("✓ Search context store initialized (TTL %s, sweep every %s)", cfg.ContextTTL, cfg.SweepInterval)

	rateLimiter := ratelimit.NewLimiter(cfg.RatePerMinute, cfg.RateBurst)
	log.Printf("✓ Rate limiter initialized (%d req/min per client)", cfg.RatePerMinute)

	activity := api.NewActivity()
	handler := api.NewHandler(sessions, scraper, scraper, bidder, store, contexts, cfg.DefaultPerPage)
	router := handler.SetupRoutes(rateLimiter, activity)
	log.Println("✓ HTTP routes configured")

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
		// Scrape and bid requests hold the connection while the browser
		// works, so the write timeout has to outlast navigation.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * cfg.NavTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// Idle watchdog: the browser costs memory while it sits around, so the
	// whole service shuts down after a fixed window with no requests.
	idle := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if activity.IdleSince() > cfg.IdleShutdown {
				idle <- struct{}{}
				return
			}
		}
	}()

	select {
	case <-quit:
		log.Println("Shutdown signal received")
	case <-idle:
		log.Printf("No requests for %s, shutting down", cfg.IdleShutdown)
	}

	log.Println("⏳ Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	browsers.Close()
	log.Println("✅ Server stopped cleanly")
}
