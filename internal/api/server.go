// Package api serves the cached WSF data as JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wsf-tracker/internal/common/logger"
	"github.com/wsf-tracker/internal/wsf/cache"
	"github.com/wsf-tracker/pkg/wsf/models"
)

// Reader is the read side of the cache store.
type Reader interface {
	Vessels(ctx context.Context) ([]*models.Vessel, error)
	Vessel(ctx context.Context, id int, resetDelay bool) (*models.Vessel, error)
	Terminals(ctx context.Context) ([]*models.Terminal, error)
	Terminal(ctx context.Context, id int) (*models.Terminal, error)
	Schedule(ctx context.Context, dep, arr int) (*models.Schedule, error)
}

// Config holds configuration for the API server.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	// Status, when set, is included in the health response.
	Status func() map[string]interface{}
}

type Server struct {
	reader Reader
	config Config
	logger logger.Logger
	http   *http.Server
}

func NewServer(reader Reader, cfg Config, log logger.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		reader: reader,
		config: cfg,
		logger: log,
	}
	s.http = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.RequestTimeout))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/vessels", s.handleVessels)
		r.Get("/vessels/{id}", s.handleVessel)
		r.Get("/terminals", s.handleTerminals)
		r.Get("/terminals/{id}", s.handleTerminal)
		r.Get("/schedule/{departureId}/{arrivalId}", s.handleSchedule)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}

// requestLogger logs each request on the service logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if s.config.Status != nil {
		resp["refresh"] = s.config.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVessels(w http.ResponseWriter, r *http.Request) {
	vessels, err := s.reader.Vessels(r.Context())
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vessels)
}

func (s *Server) handleVessel(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	resetDelay, _ := strconv.ParseBool(r.URL.Query().Get("resetDelay"))

	vessel, err := s.reader.Vessel(r.Context(), id, resetDelay)
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vessel)
}

func (s *Server) handleTerminals(w http.ResponseWriter, r *http.Request) {
	terminals, err := s.reader.Terminals(r.Context())
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, terminals)
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	terminal, err := s.reader.Terminal(r.Context(), id)
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, terminal)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	dep, ok := intParam(w, r, "departureId")
	if !ok {
		return
	}
	arr, ok := intParam(w, r, "arrivalId")
	if !ok {
		return
	}

	sched, err := s.reader.Schedule(r.Context(), dep, arr)
	if err != nil {
		s.writeReadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) writeReadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cache.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "refresh in progress")
	default:
		s.logger.Error("Cache read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
