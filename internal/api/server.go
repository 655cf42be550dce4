// Package api is the admin HTTP surface: status, health and readiness
// probes, Prometheus metrics and user registration.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/personstore/personstore/internal/auth"
	"github.com/personstore/personstore/internal/collection"
	"github.com/personstore/personstore/internal/config"
	"github.com/personstore/personstore/internal/health"
	"github.com/personstore/personstore/internal/metrics"
	"github.com/personstore/personstore/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Server is the admin REST and metrics server.
type Server struct {
	creds       *auth.Service
	coll        *collection.Collection
	db          *store.Store
	healthCheck *health.Checker
	metrics     *metrics.Collector
	cfg         config.Config
	httpServer  *http.Server
	startTime   time.Time

	keyMu  sync.RWMutex
	apiKey string
}

// NewServer creates the admin API server. db may be nil when the process
// runs against a fake store in tests.
func NewServer(creds *auth.Service, coll *collection.Collection, db *store.Store, hc *health.Checker, m *metrics.Collector, cfg config.Config) *Server {
	return &Server{
		creds:       creds,
		coll:        coll,
		db:          db,
		healthCheck: hc,
		metrics:     m,
		cfg:         cfg,
		startTime:   time.Now(),
		apiKey:      cfg.Listen.APIKey,
	}
}

// UpdateAPIKey applies a hot-reloaded API key to the auth middleware.
func (s *Server) UpdateAPIKey(key string) {
	s.keyMu.Lock()
	changed := s.apiKey != key
	s.apiKey = key
	s.keyMu.Unlock()
	if changed {
		slog.Info("admin API key updated")
	}
}

func (s *Server) currentAPIKey() string {
	s.keyMu.RLock()
	defer s.keyMu.RUnlock()
	return s.apiKey
}

// authMiddleware checks for a valid API key. Probe and metrics routes are
// excluded so orchestrators can hit them unauthenticated.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/ready" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := s.currentAPIKey()
		if apiKey == "" {
			// No API key configured — allow all requests
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != apiKey {
			writeError(w, http.StatusUnauthorized, "unauthorized: invalid or missing API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP API server.
func (s *Server) Start(port int) error {
	r := mux.NewRouter()

	r.HandleFunc("/users", s.registerUser).Methods("POST")

	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/stats", s.statsHandler).Methods("GET")
	r.HandleFunc("/config", s.configHandler).Methods("GET")

	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/ready", s.readyHandler).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))

	handler := s.securityHeaders(s.authMiddleware(r))

	bind := s.cfg.Listen.APIBind
	if bind == "" {
		bind = "127.0.0.1"
	}
	addr := fmt.Sprintf("%s:%d", bind, port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if s.cfg.Listen.APIKey == "" {
		slog.Warn("API key not configured — registration endpoint is unauthenticated")
	}
	slog.Info("admin API listening", "addr", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "err", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// --- User registration ---

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
}

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	u, err := s.creds.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmptyUsername):
			writeError(w, http.StatusBadRequest, "username and password are required")
		case errors.Is(err, store.ErrDuplicateUser):
			writeError(w, http.StatusConflict, "username already taken")
		default:
			slog.Error("user registration failed", "username", req.Username, "err", err)
			writeError(w, http.StatusServiceUnavailable, "registration unavailable")
		}
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{Id: u.Id, Username: u.Username})
}

// --- Health handlers ---

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	state := s.healthCheck.GetState()

	status := http.StatusOK
	if !s.healthCheck.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"status":   state.Status.String(),
		"database": state,
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck.IsHealthy() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

// --- Status handlers ---

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds":  int(time.Since(s.startTime).Seconds()),
		"go_version":      runtime.Version(),
		"goroutines":      runtime.NumGoroutine(),
		"memory_mb":       float64(mem.Alloc) / 1024 / 1024,
		"collection_size": s.coll.Len(),
		"listen": map[string]int{
			"port":     s.cfg.Listen.Port,
			"api_port": s.cfg.Listen.APIPort,
		},
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "no database pool")
		return
	}

	st := s.db.Stat()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"acquired_conns":      st.AcquiredConns(),
		"idle_conns":          st.IdleConns(),
		"total_conns":         st.TotalConns(),
		"max_conns":           st.MaxConns(),
		"acquire_count":       st.AcquireCount(),
		"empty_acquire_count": st.EmptyAcquireCount(),
	})
}

func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	// The API key never leaves the process.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"listen": map[string]interface{}{
			"port":        s.cfg.Listen.Port,
			"buffer_size": s.cfg.Listen.BufferSize,
			"api_port":    s.cfg.Listen.APIPort,
			"api_bind":    s.cfg.Listen.APIBind,
		},
		"db":           s.cfg.DB.Redacted(),
		"pools":        s.cfg.Pools,
		"health_check": map[string]interface{}{
			"interval":          s.cfg.HealthCheck.Interval.String(),
			"timeout":           s.cfg.HealthCheck.Timeout.String(),
			"failure_threshold": s.cfg.HealthCheck.FailureThreshold,
		},
	})
}

// securityHeaders adds security-related HTTP headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
