// Package server provides the HTTP API for styleseek.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/styleseek/internal/config"
	"github.com/hyperjump/styleseek/internal/imagecache"
	"github.com/hyperjump/styleseek/internal/keyword"
	"github.com/hyperjump/styleseek/internal/search"
)

// Server is the HTTP server for the styleseek API.
type Server struct {
	engine   *search.Engine
	keywords *keyword.Index
	images   *imagecache.Cache
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. keywords may be nil
// when the keyword index is disabled.
func NewServer(
	engine *search.Engine,
	keywords *keyword.Index,
	images *imagecache.Cache,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		keywords: keywords,
		images:   images,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/lookup", s.handleLookup)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	// Product images are served straight from the cache directory so clients
	// can resolve the bare filenames returned in search results.
	fs := http.StripPrefix("/static/", http.FileServer(http.Dir(s.images.Dir())))
	r.Get("/static/*", fs.ServeHTTP)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
