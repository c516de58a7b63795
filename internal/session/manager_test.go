package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aucbid/internal/storage"
	"aucbid/pkg/models"
)

func testManager(t *testing.T) (*Manager, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewManager(nil, store, Options{
		LoginURL:     "https://login.yahoo.co.jp/config/login",
		ChallengeURL: "https://login.yahoo.co.jp/config/challenge",
		NavTimeout:   25 * time.Second,
	}), store
}

func validSession() *models.Session {
	exp := float64(time.Now().Add(24 * time.Hour).Unix())
	return &models.Session{
		Cookies: []models.Cookie{
			{Name: "Y", Value: "v", Domain: ".yahoo.co.jp", Path: "/", Expires: exp},
			{Name: "T", Value: "z", Domain: ".yahoo.co.jp", Path: "/", Expires: exp},
			{Name: "SSL", Value: "n", Domain: ".yahoo.co.jp", Path: "/", Expires: exp},
		},
		UserAgent: "test-agent",
		SavedAt:   time.Now(),
	}
}

func TestCheckLoginStateMissingFile(t *testing.T) {
	m, _ := testManager(t)
	assert.False(t, m.CheckLoginState())
}

func TestCheckLoginStateCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewStore(dir)
	require.NoError(t, err)
	m := NewManager(nil, store, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte("{not json"), 0644))

	assert.False(t, m.CheckLoginState())
}

func TestCheckLoginStateMissingRequiredCookie(t *testing.T) {
	m, store := testManager(t)

	sess := validSession()
	sess.Cookies = sess.Cookies[:2] // drop SSL
	require.NoError(t, store.SaveSession(sess))

	assert.False(t, m.CheckLoginState())
}

func TestCheckLoginStateExpiredCookie(t *testing.T) {
	m, store := testManager(t)

	sess := validSession()
	sess.Cookies[0].Expires = float64(time.Now().Add(-time.Hour).Unix())
	require.NoError(t, store.SaveSession(sess))

	assert.False(t, m.CheckLoginState())
}

func TestCheckLoginStateValidSession(t *testing.T) {
	m, store := testManager(t)

	require.NoError(t, store.SaveSession(validSession()))

	assert.True(t, m.CheckLoginState())
}

func TestCheckLoginStateSessionScopedCookies(t *testing.T) {
	m, store := testManager(t)

	sess := validSession()
	for i := range sess.Cookies {
		sess.Cookies[i].Expires = -1
	}
	require.NoError(t, store.SaveSession(sess))

	assert.True(t, m.CheckLoginState())
}

// Wrong-length codes must be rejected before the pending session is even
// looked at, let alone before any navigation.
func TestSubmitTwoFactorCodeRejectsWrongLength(t *testing.T) {
	m, _ := testManager(t)

	for _, code := range []string{"", "12345", "1234567"} {
		err := m.SubmitTwoFactorCode(context.Background(), code)
		assert.ErrorIs(t, err, ErrBadCodeLength, "code %q", code)
	}
}

func TestSubmitTwoFactorCodeRequiresPendingSession(t *testing.T) {
	m, _ := testManager(t)

	err := m.SubmitTwoFactorCode(context.Background(), "123456")
	assert.ErrorIs(t, err, ErrNoTempSession)
}

func TestRefreshLoginSessionRequiresCredentials(t *testing.T) {
	m, _ := testManager(t)

	err := m.RefreshLoginSession(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestIsChallengeURL(t *testing.T) {
	assert.True(t, isChallengeURL("https://login.yahoo.co.jp/config/challenge?sig=abc"))
	assert.True(t, isChallengeURL("https://login.yahoo.co.jp/otp/verify"))
	assert.False(t, isChallengeURL("https://auctions.yahoo.co.jp/"))
	assert.False(t, isChallengeURL("https://www.yahoo.co.jp/"))
}
