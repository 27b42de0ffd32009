package api

import (
	"html/template"
	"net/http"

	"github.com/punchamoorthee/bankguard/internal/domain"
)

// pages holds the parsed HTML templates. The markup is intentionally
// minimal; the interesting part of this app is the trust boundary, not
// the views.
type pages struct {
	login    *template.Template
	transfer *template.Template
	balance  *template.Template
	failed   *template.Template
}

func parsePages() (*pages, error) {
	p := &pages{}
	var err error
	if p.login, err = template.New("login").Parse(loginHTML); err != nil {
		return nil, err
	}
	if p.transfer, err = template.New("transfer").Parse(transferHTML); err != nil {
		return nil, err
	}
	if p.balance, err = template.New("balance").Parse(balanceHTML); err != nil {
		return nil, err
	}
	if p.failed, err = template.New("failed").Parse(csrfFailedHTML); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, alert string) {
	httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, "200").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.pages.login.Execute(w, map[string]any{"Alert": alert}); err != nil {
		h.internalError(w, r, err)
	}
}

func (h *Handler) renderTransfer(w http.ResponseWriter, r *http.Request, username string, balance int64, coupons []domain.Coupon) {
	q := r.URL.Query()
	var alert, class string
	switch {
	case q.Get("success") == "1":
		alert = "Transfer completed successfully!"
		if c := q.Get("coupon"); c != "" {
			alert += " Coupon " + c + " applied."
		}
		class = "success"
	case q.Get("deletedcoupon") != "":
		alert = "Coupon " + q.Get("deletedcoupon") + " deleted."
		class = "success"
	case q.Get("error") != "":
		alert = errorMessage(q.Get("error"))
		class = "error"
	}

	httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, "200").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := h.pages.transfer.Execute(w, map[string]any{
		"Username": username,
		"Balance":  balance,
		"Coupons":  coupons,
		"Alert":    alert,
		"Class":    class,
	})
	if err != nil {
		h.internalError(w, r, err)
	}
}

func (h *Handler) renderBalance(w http.ResponseWriter, r *http.Request, username string, balance int64) {
	httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, "200").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := h.pages.balance.Execute(w, map[string]any{
		"Username": username,
		"Balance":  balance,
	})
	if err != nil {
		h.internalError(w, r, err)
	}
}

func (h *Handler) renderCSRFFailed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_ = h.pages.failed.Execute(w, nil)
}

func errorMessage(code string) string {
	switch code {
	case "invalidcoupon":
		return "Invalid coupon code."
	case "invalidamount":
		return "Amount must be a positive whole number."
	case "invalidrecipient":
		return "Unknown recipient."
	case "insufficientfunds":
		return "Insufficient funds for this transfer."
	}
	return "Invalid recipient or insufficient funds."
}

const loginHTML = `<!doctype html>
<html>
<head><title>Demo Bank - Login</title></head>
<body>
<h1>Demo Bank</h1>
{{if .Alert}}<div id="alert" class="alert">{{.Alert}}</div>{{end}}
<form method="POST" action="/login">
  <label>Username <input type="text" name="username"></label>
  <label>Password <input type="password" name="password"></label>
  <button type="submit">Login</button>
</form>
</body>
</html>
`

const transferHTML = `<!doctype html>
<html>
<head><title>Demo Bank - Transfer</title></head>
<body>
<h1>Transfer Funds</h1>
{{if .Alert}}<div id="alert" class="alert {{.Class}}">{{.Alert}}</div>{{end}}
<p>Logged in as <b>{{.Username}}</b>. Balance: ${{.Balance}}</p>
<form method="POST" action="/transfer">
  <label>To <input type="text" name="to"></label>
  <label>Amount <input type="text" name="amount"></label>
  <label>Coupon <input type="text" name="coupon"></label>
  <input type="hidden" name="csrfToken" id="csrfToken">
  <button type="submit">Send</button>
</form>
<h2>Your coupons</h2>
<ul>
{{range .Coupons}}<li>{{.Code}} ({{.Label}}) <a href="/delete-coupon?code={{.Code}}" class="delete-coupon">delete</a></li>{{else}}<li>none</li>{{end}}
</ul>
<p><a href="/balance">Balance</a> | <a href="/logout">Logout</a></p>
<script>
// Double-submit: copy the client-readable token cookie into the form
// and the delete links. Under the SameSite variant the cookie simply
// does not exist and this is a no-op.
(function () {
  var m = document.cookie.match(/(?:^|; )csrfToken=([^;]*)/);
  if (!m) return;
  var tok = decodeURIComponent(m[1]);
  document.getElementById('csrfToken').value = tok;
  document.querySelectorAll('a.delete-coupon').forEach(function (a) {
    a.href += '&csrfToken=' + encodeURIComponent(tok);
  });
})();
</script>
</body>
</html>
`

const balanceHTML = `<!doctype html>
<html>
<head><title>Demo Bank - Balance</title></head>
<body>
<h2>Balance for {{.Username}}: ${{.Balance}}</h2>
<a href="/transfer">Back to Transfer</a>
</body>
</html>
`

const csrfFailedHTML = `<!doctype html>
<html>
<head><title>Demo Bank - Request Blocked</title></head>
<body>
<h1>CSRF check failed</h1>
<p>The request was missing a valid anti-forgery token and was not processed.</p>
<a href="/transfer">Back to Transfer</a>
</body>
</html>
`
