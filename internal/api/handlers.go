package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/punchamoorthee/bankguard/internal/domain"
	"github.com/punchamoorthee/bankguard/internal/service"
	"github.com/punchamoorthee/bankguard/internal/session"
)

// Home sends authenticated users to the transfer page and everyone
// else to the login form.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentSession(r); ok {
		h.redirect(w, r, "/transfer")
		return
	}
	h.redirect(w, r, "/login")
}

// LoginPage renders the login form with an inline alert selected by
// the query string.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var alert string
	switch {
	case q.Get("error") == "1":
		alert = "Invalid credentials. Please try again."
	case q.Get("error") == "2" || q.Get("mustlogin") == "1":
		alert = "You have not logged in. Please login."
	case q.Get("logout") == "1":
		alert = "You have been logged out."
	}
	h.renderLogin(w, r, alert)
}

// Login authenticates the posted credentials, issues the session and
// (under double-submit) the CSRF token, then redirects to /transfer.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/login?error=1")
		return
	}

	sess, err := h.sessions.Login(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if errors.Is(err, session.ErrInvalidCredentials) {
		h.redirect(w, r, "/login?error=1")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.setSessionCookie(w, sess.ID)
	if err := h.guard.Issue(w); err != nil {
		h.internalError(w, r, err)
		return
	}
	h.redirect(w, r, "/transfer")
}

// TransferPage renders the balance, coupon list, and the alert state
// carried in the redirect query.
func (h *Handler) TransferPage(w http.ResponseWriter, r *http.Request, sess *domain.Session) {
	account, err := h.store.Account(r.Context(), sess.Username)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	coupons, err := h.store.Coupons(r.Context(), sess.Username)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.renderTransfer(w, r, sess.Username, account.Balance, coupons)
}

// Transfer is the guarded mutation: the CSRF check runs before any
// business logic, and every validation failure comes back as a
// redirect with a reason, never a stack trace.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request, sess *domain.Session) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfer"))
	defer timer.ObserveDuration()

	if err := h.guard.Verify(r); err != nil {
		h.rejectCSRF(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/transfer?error=invalidamount")
		return
	}
	recipient := r.PostForm.Get("to")
	if recipient == "" {
		recipient = r.PostForm.Get("recipient")
	}
	if recipient == "" {
		h.redirect(w, r, "/transfer?error=invalidrecipient")
		return
	}

	result, err := h.engine.Execute(r.Context(), sess.Username, recipient,
		r.PostForm.Get("amount"), r.PostForm.Get("coupon"))
	if err != nil {
		reason, ok := rejectReason(err)
		if !ok {
			h.internalError(w, r, err)
			return
		}
		h.redirect(w, r, "/transfer?error="+reason)
		return
	}

	target := "/transfer?success=1"
	if result.CouponUsed != "" {
		target += "&coupon=" + url.QueryEscape(result.CouponUsed)
	}
	h.redirect(w, r, target)
}

// Balance is the demo/debug balance view.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request, sess *domain.Session) {
	account, err := h.store.Account(r.Context(), sess.Username)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.renderBalance(w, r, sess.Username, account.Balance)
}

// Coupons returns the caller's coupon set as JSON.
func (h *Handler) Coupons(w http.ResponseWriter, r *http.Request, sess *domain.Session) {
	coupons, err := h.store.Coupons(r.Context(), sess.Username)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if coupons == nil {
		coupons = []domain.Coupon{}
	}
	h.respondJSON(w, r, http.StatusOK, coupons)
}

// DeleteCoupon removes a coupon by code. CSRF-checked under the
// double-submit strategy because it mutates state despite being a GET.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request, sess *domain.Session) {
	if err := h.guard.Verify(r); err != nil {
		h.rejectCSRF(w, r)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirect(w, r, "/transfer")
		return
	}
	if err := h.store.RemoveCoupon(r.Context(), sess.Username, code); err != nil {
		h.internalError(w, r, err)
		return
	}
	h.redirect(w, r, "/transfer?deletedcoupon="+url.QueryEscape(code))
}

// Logout destroys the session record and instructs the client to drop
// both cookies.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		h.sessions.Destroy(cookie.Value)
	}
	h.clearSessionCookie(w)
	h.guard.Clear(w)
	h.redirect(w, r, "/login?logout=1")
}

func (h *Handler) rejectCSRF(w http.ResponseWriter, r *http.Request) {
	csrfRejectedTotal.WithLabelValues(r.URL.Path).Inc()
	httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, "403").Inc()
	h.renderCSRFFailed(w, r)
}

func rejectReason(err error) (string, bool) {
	switch {
	case errors.Is(err, service.ErrInvalidCoupon):
		return "invalidcoupon", true
	case errors.Is(err, service.ErrInvalidAmount):
		return "invalidamount", true
	case errors.Is(err, service.ErrInvalidRecipient):
		return "invalidrecipient", true
	case errors.Is(err, service.ErrInsufficientFunds):
		return "insufficientfunds", true
	}
	return "", false
}
