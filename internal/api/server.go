// Package api provides read-only REST access to the monitor's anomaly log
// and aircraft state history.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fleetwatch/internal/opensky"
	"fleetwatch/internal/state"
)

// Server exposes the state store over HTTP.
type Server struct {
	store       *state.Store
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the anomaly API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewServer creates an anomaly API server over the given store.
func NewServer(store *state.Store, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		store:       store,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", s.Router())
	})

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Anomaly API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the API routes for embedding in other servers or tests.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/anomalies", s.handleAnomalies)
	r.Get("/anomalies/stats", s.handleAnomalyStats)
	r.Post("/anomalies/{id}/ack", s.handleAcknowledge)
	r.Get("/aircraft", s.handleLatestStates)
	r.Get("/aircraft/{icao24}/history", s.handleHistory)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAnomalies lists recent anomalies, newest first. Query parameters:
// hours (lookback window, default 24), limit (default 100), severity and
// type (exact-match filters), icao24.
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	limit := queryInt(r, "limit", 100)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	anomalies, err := s.store.RecentAnomalies(since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	severity := strings.ToUpper(r.URL.Query().Get("severity"))
	anomalyType := r.URL.Query().Get("type")
	icao24 := opensky.NormalizeICAO24(r.URL.Query().Get("icao24"))

	filtered := anomalies[:0]
	for _, a := range anomalies {
		if severity != "" && a.Severity != severity {
			continue
		}
		if anomalyType != "" && a.Type != anomalyType {
			continue
		}
		if icao24 != "" && (a.ICAO24 == nil || *a.ICAO24 != icao24) {
			continue
		}
		filtered = append(filtered, a)
	}
	if filtered == nil {
		filtered = []state.Anomaly{}
	}

	writeJSON(w, http.StatusOK, filtered)
}

// AnomalyStatsResponse summarizes anomaly counts over a window.
type AnomalyStatsResponse struct {
	Hours      int            `json:"hours"`
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
}

func (s *Server) handleAnomalyStats(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	byType, bySeverity, err := s.store.AnomalyStats(since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	total := 0
	for _, n := range byType {
		total += n
	}

	writeJSON(w, http.StatusOK, AnomalyStatsResponse{
		Hours:      hours,
		Total:      total,
		ByType:     byType,
		BySeverity: bySeverity,
	})
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid anomaly id")
		return
	}

	if err := s.store.Acknowledge(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "acknowledged": true})
}

// handleLatestStates returns the newest stored snapshot per aircraft seen
// within the lookback window (hours, default 1).
func (s *Server) handleLatestStates(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 1)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	latest, err := s.store.LatestAll(since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	icao24 := opensky.NormalizeICAO24(chi.URLParam(r, "icao24"))
	if !opensky.ValidICAO24(icao24) {
		writeError(w, http.StatusBadRequest, "invalid icao24")
		return
	}

	hours := queryInt(r, "hours", 24)
	limit := queryInt(r, "limit", 100)
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	history, err := s.store.History(icao24, since, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []state.Snapshot{}
	}

	writeJSON(w, http.StatusOK, history)
}

// Helper functions.

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
