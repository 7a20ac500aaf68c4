package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/id/uuid"
	"github.com/JakeFAU/version-radar/internal/metrics"
	"github.com/JakeFAU/version-radar/internal/radar"
)

const (
	welcomeMessage  = "Welcome to Version Radar 📡"
	notFoundMessage = "Version information not found."
	fallbackMessage = "Error fetching version information."
)

// Checker runs a scrape cycle on demand.
type Checker interface {
	RunScrapeCycle(ctx context.Context) radar.Result
}

// Server wires HTTP handlers to the version store.
type Server struct {
	router       chi.Router
	store        radar.Store
	softwareName string
	checker      Checker
	logger       *zap.Logger
	ids          *uuid.Generator
}

// NewServer constructs a Server with middleware and routes. A nil checker
// leaves POST /check unregistered.
func NewServer(store radar.Store, softwareName string, checker Checker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:        store,
		softwareName: softwareName,
		checker:      checker,
		logger:       logger.Named("api"),
		ids:          uuid.New(),
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/", s.welcome)
	r.Get("/current-version", s.currentVersion)
	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if checker != nil {
		r.Post("/check", s.check)
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) welcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(welcomeMessage)); err != nil {
		s.logger.Error("welcome write failed", zap.Error(err))
	}
}

func (s *Server) currentVersion(w http.ResponseWriter, r *http.Request) {
	rec, err := radar.Lookup(r.Context(), s.store, s.softwareName)
	switch {
	case errors.Is(err, radar.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, messageResponse{Message: notFoundMessage})
	case err != nil:
		s.logger.Error("current version lookup failed",
			zap.String("software", s.softwareName),
			zap.Error(err),
		)
		msg := err.Error()
		if msg == "" {
			msg = fallbackMessage
		}
		s.writeJSON(w, http.StatusInternalServerError, messageResponse{Message: msg})
	default:
		s.writeJSON(w, http.StatusOK, dataResponse{Data: rec})
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	res := s.checker.RunScrapeCycle(r.Context())
	status := http.StatusOK
	if res.State == radar.StateFailed {
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, res)
}

type dataResponse struct {
	Data radar.VersionRecord `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = s.ids.MustID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", requestID(r.Context())),
					zap.Any("panic", rec),
				)
				s.writeJSON(w, http.StatusInternalServerError, messageResponse{Message: fallbackMessage})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}
