package server

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vilfredos/logviewer/internal/config"
	"github.com/vilfredos/logviewer/internal/ingest"
	"github.com/vilfredos/logviewer/internal/store"
)

// Server represents the HTTP server instance
type Server struct {
	app    *fiber.App
	config *config.Config
	store  *store.Store
	ingest *ingest.Service
}

// New creates a new Server instance serving the upload and JSON API.
func New(cfg *config.Config, st *store.Store, svc *ingest.Service) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "logviewer",
		BodyLimit:             cfg.MaxUploadBytes(),
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:    app,
		config: cfg,
		store:  st,
		ingest: svc,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the application
func (s *Server) setupMiddleware() {
	s.app.Use(recover.New())
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Uploads
	s.app.Post("/upload", s.handleUpload)
	s.app.Post("/api/test-parser", s.handleTestParser)

	// Stored records
	s.app.Get("/api/logs/:type", s.handleLogs)
	s.app.Get("/api/summary/:type", s.handleSummary)
	s.app.Get("/api/alerts/:type", s.handleAlerts)
	s.app.Get("/api/uploads", s.handleUploads)
	s.app.Post("/api/clear", s.handleClear)

	// Operations
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	log.Printf("server: listening on %s", s.config.Listen)
	return s.app.Listen(s.config.Listen)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	log.Println("server: shutting down")
	return s.app.Shutdown()
}
