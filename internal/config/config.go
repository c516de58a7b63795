package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Bid navigation strategies.
const (
	BidStrategyDirect = "direct"
	BidStrategyClick  = "click"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Addr    string
	DataDir string

	// Target site.
	BaseURL      string
	LoginURL     string
	ChallengeURL string

	// Browser engine.
	Headless       bool
	ChromiumPath   string
	NavTimeout     time.Duration
	MaxContexts    int64
	UserAgent      string
	BidStrategy    string
	SearchRetries  int
	RetryDelay     time.Duration
	BatchDelay     time.Duration
	DefaultPerPage int

	// Stored credentials used for automatic session refresh.
	Username string
	Password string

	// Lifecycle.
	ContextTTL    time.Duration
	SweepInterval time.Duration
	IdleShutdown  time.Duration

	// Rate limiting for mutating endpoints (requests per minute per client).
	RatePerMinute int
	RateBurst     int
}

// FromEnv builds a Config from environment variables, applying defaults
// for anything unset.
func FromEnv() *Config {
	return &Config{
		Addr:           envString("ADDR", ":8080"),
		DataDir:        envString("DATA_DIR", "./storage"),
		BaseURL:        envString("AUCTION_BASE_URL", "https://auctions.yahoo.co.jp"),
		LoginURL:       envString("AUCTION_LOGIN_URL", "https://login.yahoo.co.jp/config/login"),
		ChallengeURL:   envString("AUCTION_CHALLENGE_URL", "https://login.yahoo.co.jp/config/challenge"),
		Headless:       envBool("HEADLESS", true),
		ChromiumPath:   envString("CHROMIUM_PATH", ""),
		NavTimeout:     envDuration("NAV_TIMEOUT", 25*time.Second),
		MaxContexts:    int64(envInt("MAX_CONTEXTS", 4)),
		UserAgent:      envString("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"),
		BidStrategy:    envString("BID_STRATEGY", BidStrategyDirect),
		SearchRetries:  envInt("SEARCH_RETRIES", 2),
		RetryDelay:     envDuration("RETRY_DELAY", 500*time.Millisecond),
		BatchDelay:     envDuration("BATCH_DELAY", 2*time.Second),
		DefaultPerPage: envInt("PAGE_SIZE", 50),
		Username:       envString("AUCTION_USERNAME", ""),
		Password:       envString("AUCTION_PASSWORD", ""),
		ContextTTL:     envDuration("SEARCH_CONTEXT_TTL", 30*time.Minute),
		SweepInterval:  envDuration("SWEEP_INTERVAL", 5*time.Minute),
		IdleShutdown:   envDuration("IDLE_SHUTDOWN", 20*time.Minute),
		RatePerMinute:  envInt("RATE_PER_MINUTE", 30),
		RateBurst:      envInt("RATE_BURST", 5),
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	for _, u := range []struct{ name, val string }{
		{"base URL", c.BaseURL},
		{"login URL", c.LoginURL},
		{"challenge URL", c.ChallengeURL},
	} {
		parsed, err := url.Parse(u.val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", u.name, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s must include a host", u.name)
		}
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.MaxContexts <= 0 {
		return fmt.Errorf("max contexts must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.BidStrategy != BidStrategyDirect && c.BidStrategy != BidStrategyClick {
		return fmt.Errorf("bid strategy must be %q or %q", BidStrategyDirect, BidStrategyClick)
	}
	if c.SearchRetries < 0 {
		return fmt.Errorf("search retries cannot be negative")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative")
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch delay cannot be negative")
	}
	if c.DefaultPerPage <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.ContextTTL <= 0 {
		return fmt.Errorf("search context TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.IdleShutdown <= 0 {
		return fmt.Errorf("idle shutdown window must be positive")
	}
	if c.RatePerMinute <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate limit values must be positive")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
