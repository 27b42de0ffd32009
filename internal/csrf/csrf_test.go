package csrf

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func issuedToken(t *testing.T, g *DoubleSubmit) (*http.Cookie, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := g.Issue(rec); err != nil {
		t.Fatalf("issue: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected exactly one cookie, got %d", len(cookies))
	}
	return cookies[0], cookies[0].Value
}

func formPost(token string) *http.Request {
	form := url.Values{}
	if token != "" {
		form.Set("csrfToken", token)
	}
	req := httptest.NewRequest(http.MethodPost, "/transfer", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestDoubleSubmit_IssueSetsReadableCookie(t *testing.T) {
	g := NewDoubleSubmit(Config{})
	cookie, token := issuedToken(t, g)

	if cookie.Name != "csrfToken" {
		t.Errorf("cookie name = %q, want csrfToken", cookie.Name)
	}
	if token == "" {
		t.Error("token should not be empty")
	}
	if cookie.HttpOnly {
		t.Error("token cookie must stay readable by client-side script")
	}
}

func TestDoubleSubmit_VerifyMatch(t *testing.T) {
	g := NewDoubleSubmit(Config{})
	cookie, token := issuedToken(t, g)

	req := formPost(token)
	req.AddCookie(cookie)
	if err := g.Verify(req); err != nil {
		t.Fatalf("expected admit, got %v", err)
	}
}

func TestDoubleSubmit_VerifyQueryToken(t *testing.T) {
	g := NewDoubleSubmit(Config{})
	cookie, token := issuedToken(t, g)

	req := httptest.NewRequest(http.MethodGet, "/delete-coupon?code=X&csrfToken="+url.QueryEscape(token), nil)
	req.AddCookie(cookie)
	if err := g.Verify(req); err != nil {
		t.Fatalf("expected admit for query token, got %v", err)
	}
}

func TestDoubleSubmit_VerifyMissing(t *testing.T) {
	g := NewDoubleSubmit(Config{})
	cookie, token := issuedToken(t, g)

	// No cookie at all: what a cross-origin attacker's form produces.
	if err := g.Verify(formPost(token)); !errors.Is(err, ErrTokenMissing) {
		t.Errorf("no cookie: expected ErrTokenMissing, got %v", err)
	}

	// Cookie present but nothing submitted.
	req := formPost("")
	req.AddCookie(cookie)
	if err := g.Verify(req); !errors.Is(err, ErrTokenMissing) {
		t.Errorf("no submitted token: expected ErrTokenMissing, got %v", err)
	}
}

func TestDoubleSubmit_VerifyMismatch(t *testing.T) {
	g := NewDoubleSubmit(Config{})
	cookie, _ := issuedToken(t, g)

	req := formPost("forged-token-guess")
	req.AddCookie(cookie)
	if err := g.Verify(req); !errors.Is(err, ErrTokenMismatch) {
		t.Errorf("expected ErrTokenMismatch, got %v", err)
	}
}

func TestDoubleSubmit_TokensAreUnique(t *testing.T) {
	g := NewDoubleSubmit(Config{})
	_, first := issuedToken(t, g)
	_, second := issuedToken(t, g)
	if first == second {
		t.Error("two issued tokens must not collide")
	}
}

func TestSameSite_AlwaysAdmits(t *testing.T) {
	g := NewSameSite()

	if err := g.Verify(formPost("")); err != nil {
		t.Errorf("samesite guard must not enforce tokens, got %v", err)
	}

	rec := httptest.NewRecorder()
	if err := g.Issue(rec); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("samesite guard must not set token cookies")
	}
}

func TestSessionSameSiteAttributes(t *testing.T) {
	if got := NewSameSite().SessionSameSite(); got != http.SameSiteLaxMode {
		t.Errorf("samesite strategy session cookie = %v, want Lax", got)
	}
	if got := NewDoubleSubmit(Config{}).SessionSameSite(); got != http.SameSiteDefaultMode {
		t.Errorf("double-submit strategy session cookie = %v, want default", got)
	}
}
