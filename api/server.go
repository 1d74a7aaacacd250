// Package api is the HTTP surface over the engine. Handlers decode a
// request, call one engine operation, and serialize the result; no
// pricing or validation logic lives here.
package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"cloudwright/core/engine"
	"cloudwright/internal/config"
	"cloudwright/internal/logging"
)

// Server routes API requests to the engine
type Server struct {
	engine  *engine.Engine
	mux     *http.ServeMux
	handler http.Handler
	log     *zap.Logger
	version string
	httpSrv *http.Server
}

// NewServer creates a server over an opened engine
func NewServer(eng *engine.Engine, version string) *Server {
	s := &Server{
		engine:  eng,
		mux:     http.NewServeMux(),
		log:     logging.Named("api"),
		version: version,
	}
	s.registerRoutes()
	s.handler = withRequestID(withAccessLog(s.log, s.mux))
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/v1/estimate", s.handleEstimate)
	s.mux.HandleFunc("POST /api/v1/validate", s.handleValidate)
	s.mux.HandleFunc("POST /api/v1/diff", s.handleDiff)
	s.mux.HandleFunc("POST /api/v1/compare", s.handleCompare)
	s.mux.HandleFunc("POST /api/v1/score", s.handleScore)
	s.mux.HandleFunc("POST /api/v1/harden", s.handleHarden)
	s.mux.HandleFunc("POST /api/v1/ingest", s.handleIngest)

	s.mux.HandleFunc("GET /api/v1/catalog/search", s.handleCatalogSearch)
	s.mux.HandleFunc("GET /api/v1/catalog/instances/{name}", s.handleCatalogInstance)
	s.mux.HandleFunc("POST /api/v1/catalog/refresh", s.handleCatalogRefresh)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ServeHTTP implements http.Handler with middleware applied
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves until the listener fails or Shutdown is called
func (s *Server) ListenAndServe(addr string) error {
	cfg := config.Get().Server
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}
	s.log.Info("listening", zap.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}
