package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helpdeskhq/insight/internal/common"
	"github.com/helpdeskhq/insight/internal/search"
)

// Server exposes the semantic search engine over a small JSON API.
type Server struct {
	router chi.Router
	engine *search.Engine
	syncer *search.Syncer
}

func NewServer(engine *search.Engine, syncer *search.Syncer) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine required")
	}
	if syncer == nil {
		return nil, errors.New("syncer required")
	}
	srv := &Server{
		router: chi.NewRouter(),
		engine: engine,
		syncer: syncer,
	}
	srv.routes()
	common.Logger().Info("api: server ready")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()
			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r)
			logger.Debug("request", "id", requestID, "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/ask", s.handleAsk)
	s.router.Post("/v1/sync", s.handleSync)
	s.router.Get("/v1/logs", s.handleLogs)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
