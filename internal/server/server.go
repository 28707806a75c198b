package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/stats-workbench/internal/api"
	"github.com/kartoza/stats-workbench/internal/backend"
	"github.com/kartoza/stats-workbench/internal/chat"
	"github.com/kartoza/stats-workbench/internal/config"
	"github.com/kartoza/stats-workbench/internal/httputil"
	"github.com/kartoza/stats-workbench/internal/metrics"
)

//go:embed static/*
var staticFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	logger     *zap.Logger
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	services   *backend.Services
	chatStore  *chat.Store
	metrics    *metrics.Collector
}

// New creates a new Server with all components initialized
func New(cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		router:  mux.NewRouter(),
		metrics: metrics.NewCollector(),
	}

	s.services = backend.New(cfg, backend.WithObserver(s.metrics.ObserveBackend))

	chatStore, err := chat.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("chat store not available: %w", err)
	}
	s.chatStore = chatStore

	// Set up routes
	s.setupRoutes()

	return s, nil
}

// setupRoutes configures all HTTP routes and the middleware around them
func (s *Server) setupRoutes() {
	s.router.Use(s.metrics.Middleware)

	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.services, s.chatStore, s.metrics, s.logger, s.cfg)
	apiHandler.RegisterRoutes(apiRouter)

	// Prometheus scrape endpoint
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	// Static frontend files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		s.logger.Warn("Could not load embedded static files", zap.Error(err))
	} else {
		// SPA fallback: serve index.html for any non-API route
		fileServer := http.FileServer(http.FS(staticContent))
		s.router.PathPrefix("/").Handler(spaHandler{staticContent: staticContent, fileServer: fileServer})
	}

	var h http.Handler = s.router
	h = httputil.Logger(s.logger)(h)
	h = httputil.Recoverer(s.logger)(h)
	h = httputil.RequestID(h)
	h = cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", api.ClientIDHeader, httputil.RequestIDHeader, "X-Filename"},
		ExposedHeaders: []string{httputil.RequestIDHeader},
		MaxAge:         300,
	})(h)
	s.handler = h
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("Server listening", zap.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server and closes the chat store
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var shutdownErr error
	if s.httpServer != nil {
		shutdownErr = s.httpServer.Shutdown(ctx)
	}
	if err := s.chatStore.Close(); err != nil {
		s.logger.Warn("Error closing chat store", zap.Error(err))
	}
	return shutdownErr
}

// spaHandler serves the SPA, falling back to index.html for client-side routing
type spaHandler struct {
	staticContent fs.FS
	fileServer    http.Handler
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Unknown API paths get a JSON 404 rather than the page
	if strings.HasPrefix(r.URL.Path, "/api/") {
		httputil.RespondError(w, http.StatusNotFound, "not found")
		return
	}

	path := r.URL.Path
	if path == "/" {
		path = "index.html"
	}

	// fs.FS paths must not have a leading slash
	cleanPath := strings.TrimPrefix(path, "/")

	if _, err := fs.Stat(h.staticContent, cleanPath); err != nil {
		// File not found, serve index.html for SPA routing
		r.URL.Path = "/"
	}

	h.fileServer.ServeHTTP(w, r)
}
