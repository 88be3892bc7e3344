// Package adminapi is the thin control surface around the engine core:
// a liveness probe, a forced rule-cache reload trigger, and a read-only
// rule listing (spec.md's component table implies this surface exists
// alongside the core; it is not on the dispatch/broadcast data path).
// Grounded on bobbydeveaux-starbucks-mugs's internal/server/rest router —
// same chi.Router + middleware.RequestID/RealIP/Recoverer shape, same
// unauthenticated /healthz, same writeError JSON-error helper.
package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fleetalert/engine/internal/metrics"
	"github.com/fleetalert/engine/internal/model"
)

// reloadWindow/reloadBurst bound forced reloads to a reasonable operator
// cadence; each forced reload bypasses the rule cache's TTL and forces a
// full store fetch.
const (
	reloadWindow = time.Minute
	reloadBurst  = 6
)

// RuleCache is the subset of rulecache.Cache the admin surface needs.
type RuleCache interface {
	Reload(ctx context.Context, forced bool) error
	FactsRules() []model.Rule
	SyslogRules() []model.Rule
}

// Server holds the dependencies the admin handlers read from.
type Server struct {
	rules   RuleCache
	reloads *slidingWindowLimiter
}

// NewRouter builds the admin mux: /healthz, /reload, /rules, plus the
// Prometheus scrape endpoint at /metrics.
func NewRouter(rules RuleCache) http.Handler {
	s := &Server{rules: rules, reloads: newSlidingWindowLimiter(reloadWindow, reloadBurst, nil)}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/reload", s.handleReload)
	r.Get("/rules", s.handleRules)
	r.Handle("/metrics", metrics.Handler())

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReload triggers the "explicit forced reload (startup, admin
// action)" path spec.md §4.1 names.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if !s.reloads.allow() {
		writeError(w, http.StatusTooManyRequests, "reload rate limit exceeded")
		return
	}
	if err := s.rules.Reload(r.Context(), true); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// handleRules lists the currently cached rules across both partitions, for
// operator visibility into what the evaluator is running against.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rules := append(append([]model.Rule{}, s.rules.FactsRules()...), s.rules.SyslogRules()...)
	writeJSON(w, http.StatusOK, rules)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
