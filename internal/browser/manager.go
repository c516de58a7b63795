// Package browser owns the single shared headless browser process. Every
// operation gets its own short-lived, isolated BrowserContext through
// AcquireContext/Release; callers never touch the underlying Browser, and
// the manager transparently relaunches the process if it died.
package browser

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/semaphore"

	"aucbid/pkg/models"
)

// Options configures the shared browser process.
type Options struct {
	Headless     bool
	ChromiumPath string
	MaxContexts  int64
	UserAgent    string
}

// ContextOptions configures one isolated browser context.
type ContextOptions struct {
	UserAgent string
	Cookies   []models.Cookie
}

// Manager is the explicit owner of the browser process. One per service.
type Manager struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	sem     *semaphore.Weighted
	opts    Options

	installOnce sync.Once
}

// NewManager returns a Manager; the browser process is launched lazily on
// the first AcquireContext call.
func NewManager(opts Options) *Manager {
	if opts.MaxContexts <= 0 {
		opts.MaxContexts = 4
	}
	return &Manager{
		sem:  semaphore.NewWeighted(opts.MaxContexts),
		opts: opts,
	}
}

// AcquireContext returns a fresh isolated browser context. The caller must
// hand it back with Release, normally via defer, regardless of outcome.
func (m *Manager) AcquireContext(ctx context.Context, opts ContextOptions) (playwright.BrowserContext, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire browser slot: %w", err)
	}

	m.mu.Lock()
	err := m.ensureBrowserLocked()
	browser := m.browser
	m.mu.Unlock()
	if err != nil {
		m.sem.Release(1)
		return nil, err
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = m.opts.UserAgent
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(ua),
	})
	if err != nil {
		m.sem.Release(1)
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if len(opts.Cookies) > 0 {
		if err := bctx.AddCookies(toPlaywrightCookies(opts.Cookies)); err != nil {
			bctx.Close()
			m.sem.Release(1)
			return nil, fmt.Errorf("failed to load session cookies: %w", err)
		}
	}

	return bctx, nil
}

// Release closes a context obtained from AcquireContext and frees its slot.
func (m *Manager) Release(bctx playwright.BrowserContext) {
	if bctx != nil {
		if err := bctx.Close(); err != nil {
			log.Printf("Warning: failed to close browser context: %v", err)
		}
	}
	m.sem.Release(1)
}

// ensureBrowserLocked starts playwright and (re)launches the browser if the
// process is missing or has disconnected. Caller holds m.mu.
func (m *Manager) ensureBrowserLocked() error {
	if m.browser != nil && m.browser.IsConnected() {
		return nil
	}

	m.installOnce.Do(func() {
		if err := playwright.Install(&playwright.RunOptions{
			Browsers:            []string{"chromium"},
			SkipInstallBrowsers: m.opts.ChromiumPath != "",
		}); err != nil {
			log.Printf("Warning: playwright driver install: %v", err)
		}
	})

	if m.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return fmt.Errorf("failed to start playwright: %w", err)
		}
		m.pw = pw
	}

	if m.browser != nil {
		log.Println("Browser process disconnected, relaunching")
		m.browser.Close()
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
	}
	if m.opts.ChromiumPath != "" {
		launchOpts.ExecutablePath = playwright.String(m.opts.ChromiumPath)
	}

	browser, err := m.pw.Chromium.Launch(launchOpts)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	m.browser = browser
	return nil
}

// Close shuts down the browser process and the playwright driver.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			log.Printf("Warning: failed to close browser: %v", err)
		}
		m.browser = nil
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			log.Printf("Warning: failed to stop playwright: %v", err)
		}
		m.pw = nil
	}
}

// CaptureCookies reads the context's cookie jar back into the storage model.
func CaptureCookies(bctx playwright.BrowserContext) ([]models.Cookie, error) {
	raw, err := bctx.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	cookies := make([]models.Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookie.SameSite = string(*c.SameSite)
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

func toPlaywrightCookies(cookies []models.Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		oc := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			HttpOnly: playwright.Bool(c.HTTPOnly),
			Secure:   playwright.Bool(c.Secure),
		}
		if c.Expires != 0 {
			oc.Expires = playwright.Float(c.Expires)
		}
		switch c.SameSite {
		case "Strict":
			oc.SameSite = playwright.SameSiteAttributeStrict
		case "Lax":
			oc.SameSite = playwright.SameSiteAttributeLax
		case "None":
			oc.SameSite = playwright.SameSiteAttributeNone
		}
		out = append(out, oc)
	}
	return out
}
