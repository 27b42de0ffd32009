// Package csrf decides whether a state-changing request was submitted
// intentionally. Two interchangeable strategies are provided: the
// double-submit cookie token and the SameSite cookie attribute. The
// strategy is fixed at deployment time, never per request.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
)

var (
	// ErrTokenMissing indicates the cookie or the submitted token was absent.
	ErrTokenMissing = errors.New("missing csrf token")
	// ErrTokenMismatch indicates the cookie and submitted token differ.
	ErrTokenMismatch = errors.New("csrf token mismatch")
)

// Guard admits or rejects mutating requests. Verify must be called
// before any business-logic side effect.
type Guard interface {
	// Issue is called once per login and attaches whatever client
	// state the strategy needs.
	Issue(w http.ResponseWriter) error
	// Verify admits the request or returns ErrTokenMissing /
	// ErrTokenMismatch.
	Verify(r *http.Request) error
	// Clear drops any client state set by Issue.
	Clear(w http.ResponseWriter)
	// SessionSameSite is the SameSite attribute the session cookie
	// must carry under this strategy.
	SessionSameSite() http.SameSite
}

// Config carries the cookie and transport settings shared by the
// strategies.
type Config struct {
	CookieName string // client-readable token cookie, double-submit only
	FormField  string // form/query field carrying the submitted token
	TokenBytes int
	Secure     bool
}

func (c Config) withDefaults() Config {
	if c.CookieName == "" {
		c.CookieName = "csrfToken"
	}
	if c.FormField == "" {
		c.FormField = "csrfToken"
	}
	if c.TokenBytes <= 0 {
		c.TokenBytes = 32
	}
	return c
}

// DoubleSubmit implements the double-submit cookie scheme: a random
// token is stored in a cookie the page script can read and must be
// echoed back in the request body or query. The token is deliberately
// not bound to the session identifier; that weakness is a property of
// the scheme under study.
type DoubleSubmit struct {
	cfg Config
}

// NewDoubleSubmit creates the double-submit strategy.
func NewDoubleSubmit(cfg Config) *DoubleSubmit {
	return &DoubleSubmit{cfg: cfg.withDefaults()}
}

func (d *DoubleSubmit) Issue(w http.ResponseWriter) error {
	tok, err := newToken(d.cfg.TokenBytes)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:  d.cfg.CookieName,
		Value: tok,
		Path:  "/",
		// Must stay readable by client-side script so forms can embed it.
		HttpOnly: false,
		Secure:   d.cfg.Secure,
	})
	return nil
}

func (d *DoubleSubmit) Verify(r *http.Request) error {
	cookie, err := r.Cookie(d.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return ErrTokenMissing
	}

	submitted := submittedToken(r, d.cfg.FormField)
	if submitted == "" {
		return ErrTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(submitted)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

func (d *DoubleSubmit) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   d.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func (d *DoubleSubmit) SessionSameSite() http.SameSite {
	return http.SameSiteDefaultMode
}

// SameSite relies on the user agent suppressing the session cookie on
// unsafe cross-site requests. Admission is browser-enforced, not
// application-enforced, so Verify always passes; an unauthenticated
// cross-site request fails at the session layer instead.
type SameSite struct{}

// NewSameSite creates the SameSite-cookie strategy.
func NewSameSite() *SameSite { return &SameSite{} }

func (s *SameSite) Issue(w http.ResponseWriter) error { return nil }

func (s *SameSite) Verify(r *http.Request) error { return nil }

func (s *SameSite) Clear(w http.ResponseWriter) {}

func (s *SameSite) SessionSameSite() http.SameSite {
	return http.SameSiteLaxMode
}

// newToken returns n random bytes as unpadded url-safe base64.
func newToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// submittedToken pulls the token from the parsed form, which covers
// both POST bodies and query strings.
func submittedToken(r *http.Request, field string) string {
	_ = r.ParseForm()
	return r.Form.Get(field)
}
