package models

import "time"

// Cookie is one browser cookie record captured from an authenticated
// context. Expires is a unix timestamp in seconds; -1 marks a
// session-scoped cookie with no fixed expiry.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// Session is the durable authentication state for the auction site: the
// cookie set captured after login plus the user agent the cookies were
// issued against. It is persisted as a whole and loaded lazily by every
// operation that needs an authenticated browser context.
type Session struct {
	Cookies   []Cookie  `json:"cookies"`
	UserAgent string    `json:"userAgent"`
	SavedAt   time.Time `json:"savedAt"`
}

// Cookie returns the named cookie, if present.
func (s *Session) Cookie(name string) (Cookie, bool) {
	for _, c := range s.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}
