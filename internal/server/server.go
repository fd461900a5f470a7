package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pulseloop/pulseloop/internal/conversation"
	"github.com/pulseloop/pulseloop/internal/platform"
	"github.com/pulseloop/pulseloop/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server is the pulseloop webhook ingress and viewer server.
type Server struct {
	cfg          Config
	registry     *platform.Registry
	orchestrator *conversation.Orchestrator
	store        conversation.Store
	tokens       *session.Issuer
	router       chi.Router
	httpServer   *http.Server
}

// New creates a server with all dependencies injected; there are no
// process-wide singletons.
func New(cfg Config, reg *platform.Registry, orc *conversation.Orchestrator, store conversation.Store, tokens *session.Issuer, dispatcher platform.Dispatcher) *Server {
	s := &Server{
		cfg:          cfg,
		registry:     reg,
		orchestrator: orc,
		store:        store,
		tokens:       tokens,
	}
	s.router = s.buildRouter(dispatcher)
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter(dispatcher platform.Dispatcher) chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	platform.RegisterRoutes(r, s.registry, dispatcher)
	s.registerConversationRoutes(r)

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("pulseloop server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
