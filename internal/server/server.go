// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — the composition root where handlers,
// middleware, and routes are connected. main.go stays minimal; everything
// that decides which URL runs which code lives here.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load() → server.New(cfg, logger) → Start()
//	server.New creates: sqlite.DB → TokenService/PasswordService/GitHubProvider
//	                    → AuthService/SnippetService → handlers → routes
//
// Each layer only receives what it needs: the services get repository
// interfaces (not the concrete sqlite.DB), the handlers get services.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/snippetkeep/internal/auth"
	"github.com/sakif/snippetkeep/internal/config"
	"github.com/sakif/snippetkeep/internal/handler"
	"github.com/sakif/snippetkeep/internal/middleware"
	sqliteRepo "github.com/sakif/snippetkeep/internal/repository/sqlite"
	"github.com/sakif/snippetkeep/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection. When it shuts down, the
// connection must be closed to flush the WAL and release the file lock;
// Start() handles that during graceful shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a new Server and wires the entire dependency chain.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` to avoid confusion with the
// sqlite driver package.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST   /api/users/register    → local registration (public)
//	POST   /api/users/login       → local login (public)
//	GET    /auth/github/login     → redirect to GitHub (public)
//	GET    /auth/github/callback  → OAuth callback (public)
//	GET    /api/me                → current user        ┐
//	GET    /api/snippets          → list snippets       │
//	GET    /api/snippets/{id}     → get one             │ RequireAuth
//	POST   /api/snippets          → create              │
//	PUT    /api/snippets/{id}     → update              │
//	DELETE /api/snippets/{id}     → delete              ┘
//
// MIDDLEWARE ORDER MATTERS — it executes in the order it's added:
// RequestID → RealIP → Recoverer → Logger → CORS, then RequireAuth only on
// the protected group. The auth check runs before any protected handler.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID) // Adds X-Request-ID header
	s.router.Use(chimiddleware.RealIP)    // Extracts real IP from X-Forwarded-For
	s.router.Use(chimiddleware.Recoverer) // Recovers from panics, returns 500

	s.router.Use(middleware.Logger(s.logger))

	// The React frontend runs on its own origin, so every API call is a
	// cross-origin request. Authorization must be in the allowed headers or
	// the browser strips the bearer token from preflighted requests.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	tokens, err := auth.NewTokenService(s.cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	authService := service.NewAuthService(
		s.db, tokens, passwords, s.logger,
		s.cfg.AccessTokenTTL, s.cfg.OAuthTokenTTL,
	)
	snippetService := service.NewSnippetService(s.db, s.logger)

	var github *auth.GitHubProvider
	if s.cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(
			s.cfg.GitHubClientID,
			s.cfg.GitHubClientSecret,
			s.cfg.GitHubCallbackURL,
		)
	}

	authHandler := handler.NewAuthHandler(github, authService, s.cfg.FrontendURL, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)

	// Public auth entry points
	s.router.Post("/api/users/register", authHandler.HandleRegister)
	s.router.Post("/api/users/login", authHandler.HandleLogin)

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	} else {
		s.logger.Warn("GitHub OAuth not configured — /auth/github routes disabled")
	}

	// Protected API — everything here sits behind the auth middleware, so
	// a request with no/invalid token is rejected before any handler runs.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/api/me", authHandler.HandleMe)

		r.Get("/api/snippets", snippetHandler.HandleList)
		r.Get("/api/snippets/{id}", snippetHandler.HandleGetByID)
		r.Post("/api/snippets", snippetHandler.HandleCreate)
		r.Put("/api/snippets/{id}", snippetHandler.HandleUpdate)
		r.Delete("/api/snippets/{id}", snippetHandler.HandleDelete)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
