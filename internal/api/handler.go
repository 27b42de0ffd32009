// Package api is the HTTP surface of the demo bank.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/punchamoorthee/bankguard/internal/csrf"
	"github.com/punchamoorthee/bankguard/internal/domain"
	"github.com/punchamoorthee/bankguard/internal/service"
	"github.com/punchamoorthee/bankguard/internal/session"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bank_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	csrfRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_csrf_rejected_total",
		Help: "Mutating requests rejected by the CSRF guard",
	}, []string{"endpoint"})
)

const sessionCookie = "session"

// Handler owns the route handlers and their collaborators.
type Handler struct {
	store    domain.Store
	sessions *session.Manager
	engine   *service.Engine
	guard    csrf.Guard
	pages    *pages
	secure   bool
}

// NewHandler wires the handler. It fails when the page templates do
// not parse.
func NewHandler(store domain.Store, sessions *session.Manager, engine *service.Engine, guard csrf.Guard, secure bool) (*Handler, error) {
	p, err := parsePages()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{
		store:    store,
		sessions: sessions,
		engine:   engine,
		guard:    guard,
		pages:    p,
		secure:   secure,
	}, nil
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.HandleFunc("/", h.Home).Methods("GET")
	r.HandleFunc("/login", h.LoginPage).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/transfer", h.requireLogin(h.TransferPage)).Methods("GET")
	r.HandleFunc("/transfer", h.requireLogin(h.Transfer)).Methods("POST")
	r.HandleFunc("/balance", h.requireLogin(h.Balance)).Methods("GET")
	r.HandleFunc("/coupons", h.requireLogin(h.Coupons)).Methods("GET")
	r.HandleFunc("/delete-coupon", h.requireLogin(h.DeleteCoupon)).Methods("GET")
	r.HandleFunc("/logout", h.Logout).Methods("GET", "POST")

	return r
}

// requireLogin resolves the session cookie before the wrapped handler
// runs. Every state-changing route goes through here first.
func (h *Handler) requireLogin(next func(http.ResponseWriter, *http.Request, *domain.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.currentSession(r)
		if !ok {
			h.redirect(w, r, "/login?mustlogin=1")
			return
		}
		next(w, r, sess)
	}
}

func (h *Handler) currentSession(r *http.Request) (*domain.Session, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	return h.sessions.Resolve(cookie.Value)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, url string) {
	httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, "302").Inc()
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, "500").Inc()
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: h.guard.SessionSameSite(),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
