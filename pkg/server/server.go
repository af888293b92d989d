// Package server exposes the kiosk control API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/entrhq/kiosk/pkg/browser"
	"github.com/entrhq/kiosk/pkg/coordinator"
	"github.com/entrhq/kiosk/pkg/logging"
	"github.com/entrhq/kiosk/pkg/metrics"
)

// Client-facing messages. Failure detail goes to the event log instead.
const (
	msgWebsiteRequired = "Website URL is required."
	msgTargetForbidden = "Website is not allowed."
	msgUpdateFailed    = "Failed to update website."
	msgRateLimited     = "Too many update requests."
	msgLogsUnavailable = "Failed to read log file."
)

// Coordinator is the part of the session coordinator the API drives.
type Coordinator interface {
	Reconfigure(ctx context.Context, address string) (browser.PageInfo, error)
	Status() coordinator.Status
}

// LogSource opens the event log for download.
type LogSource interface {
	Open() (io.ReadCloser, error)
}

// Config configures the API server.
type Config struct {
	// Address to listen on (default: :3000)
	Address string

	// UpdateRate limits POST /update-website in requests per second.
	// Zero disables limiting.
	UpdateRate  float64
	UpdateBurst int

	// Gatherer serves /metrics when set
	Gatherer prometheus.Gatherer

	// HTTPMetrics records request metrics when set
	HTTPMetrics *metrics.HTTPMetrics

	// LogFileName is the attachment name for /download-logs
	LogFileName string

	Logger *logging.Logger
}

// Server is the control API.
type Server struct {
	coord      Coordinator
	logs       LogSource
	logger     *logging.Logger
	limiter    *rate.Limiter
	logName    string
	router     *chi.Mux
	httpServer *http.Server
}

// New creates a server. It does not start listening.
func New(cfg Config, coord Coordinator, logs LogSource) *Server {
	if cfg.Address == "" {
		cfg.Address = ":3000"
	}
	if cfg.LogFileName == "" {
		cfg.LogFileName = "error.log"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscardLogger()
	}

	limit := rate.Inf
	if cfg.UpdateRate > 0 {
		limit = rate.Limit(cfg.UpdateRate)
	}
	burst := cfg.UpdateBurst
	if burst < 1 {
		burst = 1
	}

	s := &Server{
		coord:   coord,
		logs:    logs,
		logger:  cfg.Logger,
		limiter: rate.NewLimiter(limit, burst),
		logName: cfg.LogFileName,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	if cfg.HTTPMetrics != nil {
		router.Use(cfg.HTTPMetrics.Middleware)
	}
	router.Use(s.requestLogMiddleware)

	router.Get("/", s.handleRoot)
	router.Get("/healthz", s.handleHealthz)
	router.With(s.rateLimitMiddleware).Post("/update-website", s.handleUpdateWebsite)
	router.Get("/download-logs", s.handleDownloadLogs)
	if cfg.Gatherer != nil {
		router.Handle("/metrics", metrics.Handler(cfg.Gatherer))
	}
	s.router = router

	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Updates wait for a browser launch and page load
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("Control API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.coord.Status()
	code := http.StatusOK
	if !status.SessionLive {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

type updateRequest struct {
	Website string `json:"website"`
}

type updateResponse struct {
	Website string `json:"website"`
	Message string `json:"message"`
	Title   string `json:"title"`
}

func (s *Server) handleUpdateWebsite(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgWebsiteRequired)
		return
	}

	// A client hanging up must not abandon a half-done transition
	ctx := context.WithoutCancel(r.Context())

	info, err := s.coord.Reconfigure(ctx, req.Website)
	switch {
	case err == nil:
	case errors.Is(err, coordinator.ErrEmptyAddress):
		writeError(w, http.StatusBadRequest, msgWebsiteRequired)
		return
	case errors.Is(err, coordinator.ErrTargetNotAllowed):
		writeError(w, http.StatusForbidden, msgTargetForbidden)
		return
	default:
		s.logger.Errorf("Update to %q failed: %v", req.Website, err)
		writeError(w, http.StatusInternalServerError, msgUpdateFailed)
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{
		Website: info.Address,
		Message: "Website updated to " + info.Address,
		Title:   info.Title,
	})
}

func (s *Server) handleDownloadLogs(w http.ResponseWriter, r *http.Request) {
	file, err := s.logs.Open()
	if err != nil {
		s.logger.Errorf("Open event log: %v", err)
		writeError(w, http.StatusInternalServerError, msgLogsUnavailable)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.logName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, file); err != nil {
		s.logger.Warnf("Stream event log: %v", err)
	}
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debugf("%s %s %d %s %v", r.Method, r.URL.Path, ww.Status(), r.RemoteAddr, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
