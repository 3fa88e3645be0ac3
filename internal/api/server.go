// Package api exposes the delivery engine over HTTP for the dashboard.
// Every engine operation returns a discriminated JSON result — errors are
// classified by kind so the UI can decide between retry, re-prompt, and
// "task no longer exists" without parsing messages.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agora-market/agora/internal/app/earnings"
	"github.com/agora-market/agora/internal/app/lifecycle"
	"github.com/agora-market/agora/internal/domain"
	"github.com/agora-market/agora/internal/health"
)

// Server is the delivery dashboard HTTP API.
type Server struct {
	engine         *lifecycle.Engine
	earnings       *earnings.Service
	actor          domain.Actor
	hub            *EarningsHub
	checker        *health.Checker
	corsOrigins    []string
	metricsEnabled bool
}

// NewServer creates an API server over the given engine and earnings
// service.
func NewServer(engine *lifecycle.Engine, earn *earnings.Service, actor domain.Actor) *Server {
	return &Server{engine: engine, earnings: earn, actor: actor}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetEarningsHub sets the live earnings SSE hub.
func (s *Server) SetEarningsHub(h *EarningsHub) { s.hub = h }

// SetHealthChecker attaches the dependency health checker so /health
// reports per-check detail.
func (s *Server) SetHealthChecker(c *health.Checker) { s.checker = c }

// SetCORSOrigins restricts cross-origin access to the given origins.
// An empty list (or "*") allows any origin.
func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Post("/session/online", s.handleOnline)
		r.Post("/session/offline", s.handleOffline)

		r.Get("/tasks/available", s.handleListAvailable)
		r.Get("/tasks/ongoing", s.handleListOngoing)
		r.Get("/tasks/completed", s.handleListCompleted)
		r.Post("/tasks/{id}/accept", s.handleAccept)
		r.Post("/tasks/{id}/status", s.handleSetStatus)
		r.Post("/tasks/{id}/complete", s.handleComplete)

		r.Get("/earnings", s.handleEarnings)
		r.Get("/payouts", s.handleListPayouts)
		r.Post("/payouts", s.handleRecordPayout)
	})

	if s.hub != nil {
		r.Get("/v1/earnings/live", s.hub.HandleSSE)
	}
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status := "ok"
	if !s.checker.IsHealthy() {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": s.checker.Statuses(),
	})
}

// ─── Session ────────────────────────────────────────────────────────────────

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"actor":  s.actor,
		"online": s.engine.Online(),
	})
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	s.engine.GoOnline()
	writeJSON(w, http.StatusOK, map[string]bool{"online": true})
}

func (s *Server) handleOffline(w http.ResponseWriter, r *http.Request) {
	s.engine.GoOffline()
	writeJSON(w, http.StatusOK, map[string]bool{"online": false})
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

func (s *Server) handleListAvailable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": s.engine.ListAvailable(r.Context()),
	})
}

func (s *Server) handleListOngoing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.engine.Ongoing()})
}

func (s *Server) handleListCompleted(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.engine.Completed()})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	task, err := s.engine.Accept(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.engine.SetStatus(r.Context(), chi.URLParam(r, "id"), status); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	receipt, err := s.engine.Complete(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// ─── Earnings ───────────────────────────────────────────────────────────────

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.earnings.Snapshot())
}

func (s *Server) handleListPayouts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"payouts": s.earnings.Payouts()})
}

func (s *Server) handleRecordPayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "payout amount must be positive")
		return
	}
	payout := s.earnings.RecordPayout(req.Amount, time.Now())
	writeJSON(w, http.StatusOK, map[string]any{"payout": payout})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeEngineError maps the domain error taxonomy onto HTTP statuses and
// stable kind strings.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyAssigned):
		writeError(w, http.StatusConflict, "already_assigned", err.Error())
	case errors.Is(err, domain.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task_not_found", err.Error())
	case errors.Is(err, domain.ErrCodeMismatch):
		writeError(w, http.StatusUnprocessableEntity, "code_mismatch", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, "unknown_status", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with a stable kind.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"kind":    kind,
			"message": msg,
		},
	})
}

// corsMiddleware allows the browser dashboard to call the local API from
// the configured origins only.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowOrigin resolves the Access-Control-Allow-Origin value for a
// request origin: wildcard when unrestricted, the echoed origin when it
// is on the configured list, empty otherwise.
func (s *Server) allowOrigin(reqOrigin string) string {
	if len(s.corsOrigins) == 0 {
		return "*"
	}
	for _, o := range s.corsOrigins {
		if o == "*" {
			return "*"
		}
		if o == reqOrigin {
			return reqOrigin
		}
	}
	return ""
}
