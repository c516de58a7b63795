// Package session obtains, validates and refreshes the authenticated
// session for the auction site. Login and two-factor submission drive a
// fresh isolated browser context each; validation only reads the persisted
// cookie set and never touches the browser.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"aucbid/internal/browser"
	"aucbid/internal/storage"
	"aucbid/pkg/models"
)

// Contract violations surfaced to the API layer as 4xx.
var (
	ErrNoTempSession = errors.New("no pending login: call login before submitting a two-factor code")
	ErrBadCodeLength = errors.New("two-factor code must be exactly 6 characters")
	ErrNoCredentials = errors.New("no stored credentials available for session refresh")
)

// requiredCookies are the auth cookies the site issues on a completed
// login. A durable session missing any of them is invalid.
var requiredCookies = []string{"Y", "T", "SSL"}

// Options configures the session manager.
type Options struct {
	LoginURL     string
	ChallengeURL string
	NavTimeout   time.Duration
	UserAgent    string
	// Stored credentials for RefreshLoginSession.
	Username string
	Password string
}

// Manager coordinates login state.
type Manager struct {
	browsers *browser.Manager
	store    *storage.Store
	opts     Options
}

// NewManager creates a session manager.
func NewManager(browsers *browser.Manager, store *storage.Store, opts Options) *Manager {
	return &Manager{browsers: browsers, store: store, opts: opts}
}

var (
	usernameSelectors = []string{"#username", "input[name='login']", "input[type='text']"}
	nextSelectors     = []string{"#btnNext", "button[type='submit']", "input[type='submit']"}
	passwordSelectors = []string{"#passwd", "input[name='passwd']", "input[type='password']"}
	submitSelectors   = []string{"#btnSubmit", "button[type='submit']", "input[type='submit']"}

	challengeErrorSelectors = []string{"#error-message", ".ErrorMessage", "[class*='error']"}
)

// challengeMarkers identify a two-factor challenge page by URL.
var challengeMarkers = []string{"challenge", "otp", "verify"}

// Login opens a fresh cookie-less context, walks the two-step login form
// and persists the resulting session. When the site answers with a
// two-factor challenge the captured state is saved as a temporary session
// and the first return value is true. Navigation failures are fatal to the
// call and never retried.
func (m *Manager) Login(ctx context.Context, username, password string) (requiresTwoFactor bool, err error) {
	bctx, err := m.browsers.AcquireContext(ctx, browser.ContextOptions{UserAgent: m.opts.UserAgent})
	if err != nil {
		return false, err
	}
	defer m.browsers.Release(bctx)

	pg, err := bctx.NewPage()
	if err != nil {
		return false, fmt.Errorf("failed to open login page: %w", err)
	}

	if _, err := pg.Goto(m.opts.LoginURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(m.opts.NavTimeout.Milliseconds())),
	}); err != nil {
		return false, fmt.Errorf("failed to reach login page: %w", err)
	}

	// The site splits login into an id step and a password step.
	if err := fillFirst(pg, usernameSelectors, username); err != nil {
		return false, fmt.Errorf("failed to fill username: %w", err)
	}
	if err := clickFirst(pg, nextSelectors); err != nil {
		return false, fmt.Errorf("failed to advance past username step: %w", err)
	}
	pg.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})

	if err := fillFirst(pg, passwordSelectors, password); err != nil {
		return false, fmt.Errorf("failed to fill password: %w", err)
	}
	if err := clickFirst(pg, submitSelectors); err != nil {
		return false, fmt.Errorf("failed to submit login form: %w", err)
	}
	pg.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})

	sess, err := m.captureSession(bctx)
	if err != nil {
		return false, err
	}

	if isChallengeURL(pg.URL()) {
		if err := m.store.SaveTempSession(sess); err != nil {
			return false, fmt.Errorf("failed to persist pending session: %w", err)
		}
		log.Printf("Login for %s requires a two-factor code", username)
		return true, nil
	}

	if err := m.store.SaveSession(sess); err != nil {
		return false, fmt.Errorf("failed to persist session: %w", err)
	}
	log.Printf("Login for %s completed, session persisted", username)
	return false, nil
}

// SubmitTwoFactorCode finishes a login that stopped at the challenge page.
// The code length and the presence of a pending session are checked before
// any navigation happens.
func (m *Manager) SubmitTwoFactorCode(ctx context.Context, code string) error {
	if len(code) != 6 {
		return ErrBadCodeLength
	}

	temp, err := m.store.LoadTempSession()
	if err != nil {
		return ErrNoTempSession
	}

	bctx, err := m.browsers.AcquireContext(ctx, browser.ContextOptions{
		UserAgent: temp.UserAgent,
		Cookies:   temp.Cookies,
	})
	if err != nil {
		return err
	}
	defer m.browsers.Release(bctx)

	pg, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open challenge page: %w", err)
	}

	if _, err := pg.Goto(m.opts.ChallengeURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(m.opts.NavTimeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("failed to reach challenge page: %w", err)
	}

	if err := fillChallengeCode(pg, code); err != nil {
		return err
	}

	// The challenge form validates client-side and auto-submits; give it a
	// moment before inspecting the outcome.
	pg.WaitForTimeout(1500)
	pg.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateNetworkidle,
	})

	for _, sel := range challengeErrorSelectors {
		visible, _ := pg.Locator(sel).First().IsVisible()
		if visible {
			return fmt.Errorf("two-factor code rejected by the site")
		}
	}
	if isChallengeURL(pg.URL()) {
		return fmt.Errorf("still on the challenge page after code submission")
	}

	sess, err := m.captureSession(bctx)
	if err != nil {
		return err
	}
	if err := m.store.SaveSession(sess); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	if err := m.store.DeleteTempSession(); err != nil {
		log.Printf("Warning: failed to remove pending session: %v", err)
	}
	log.Println("Two-factor challenge completed, session persisted")
	return nil
}

// CheckLoginState reports whether the durable session holds every required
// cookie, non-expired. It never returns an error: I/O and parse problems
// degrade to false.
func (m *Manager) CheckLoginState() bool {
	sess, err := m.store.LoadSession()
	if err != nil {
		return false
	}
	now := float64(time.Now().Unix())
	for _, name := range requiredCookies {
		c, ok := sess.Cookie(name)
		if !ok {
			return false
		}
		// Expires <= 0 marks a session-scoped cookie.
		if c.Expires > 0 && c.Expires < now {
			return false
		}
	}
	return true
}

// RefreshLoginSession re-runs login with the stored credentials. It fails
// when no credentials are configured or when the refreshed login stops at
// a two-factor challenge, which cannot be answered unattended.
func (m *Manager) RefreshLoginSession(ctx context.Context) error {
	if m.opts.Username == "" || m.opts.Password == "" {
		return ErrNoCredentials
	}
	requires2FA, err := m.Login(ctx, m.opts.Username, m.opts.Password)
	if err != nil {
		return fmt.Errorf("session refresh failed: %w", err)
	}
	if requires2FA {
		return fmt.Errorf("session refresh stopped at a two-factor challenge; manual login required")
	}
	return nil
}

// CurrentSession loads the durable session for components that need an
// authenticated context.
func (m *Manager) CurrentSession() (*models.Session, error) {
	return m.store.LoadSession()
}

func (m *Manager) captureSession(bctx playwright.BrowserContext) (*models.Session, error) {
	cookies, err := browser.CaptureCookies(bctx)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		Cookies:   cookies,
		UserAgent: m.opts.UserAgent,
		SavedAt:   time.Now(),
	}, nil
}

func isChallengeURL(u string) bool {
	lower := strings.ToLower(u)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// fillChallengeCode types the code into the per-digit inputs, falling back
// to a single code field on older challenge markup.
func fillChallengeCode(pg playwright.Page, code string) error {
	digits := pg.Locator(".ChallengeInput input, input[name^='code-']")
	count, err := digits.Count()
	if err == nil && count >= len(code) {
		for i, d := range code {
			if err := digits.Nth(i).Fill(string(d)); err != nil {
				return fmt.Errorf("failed to fill code digit %d: %w", i+1, err)
			}
		}
		return nil
	}
	if err := fillFirst(pg, []string{"#code", "input[name='code']", "input[type='tel']"}, code); err != nil {
		return fmt.Errorf("failed to fill two-factor code: %w", err)
	}
	return nil
}

// fillFirst fills the first present selector from the fallback list.
func fillFirst(pg playwright.Page, selectors []string, value string) error {
	for _, sel := range selectors {
		loc := pg.Locator(sel).First()
		count, err := pg.Locator(sel).Count()
		if err != nil || count == 0 {
			continue
		}
		return loc.Fill(value)
	}
	return fmt.Errorf("no selector matched: %v", selectors)
}

// clickFirst clicks the first present selector from the fallback list.
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
