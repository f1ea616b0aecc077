// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware and
// routes, and owns the http.Server lifecycle.
//
// DEPENDENCY INJECTION FLOW:
// cmd/keepup opens the store (sqlite or mongo) and passes it in:
//
//	repository.Store → services → handlers → routes
//
// The server never opens or closes the store; whoever created it does.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/keepup/keepup-api/internal/auth"
	"github.com/keepup/keepup-api/internal/config"
	"github.com/keepup/keepup-api/internal/handler"
	"github.com/keepup/keepup-api/internal/middleware"
	"github.com/keepup/keepup-api/internal/repository"
	"github.com/keepup/keepup-api/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store
	tokens *auth.TokenService
	github *auth.GitHubProvider
}

// Option customises a Server.
type Option func(*Server)

// WithGitHub replaces the GitHub provider built from the config, e.g. with
// one pointed at a fake GitHub.
func WithGitHub(p *auth.GitHubProvider) Option {
	return func(s *Server) { s.github = p }
}

// New wires services and handlers over store and registers every route.
func New(cfg *config.Config, store repository.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		tokens: tokens,
	}
	if cfg.GitHubEnabled() {
		s.github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.CallbackURL())
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s, nil
}

// Handler returns the router, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: unique id per request, picked up by the logger
//  2. RealIP: client address from proxy headers, used by the rate limiter
//  3. Logger: one line per request with status and timing
//  4. Recoverer: a panicking handler becomes a 500 instead of a crash
//
// AUTH:
// Reads use OptionalAuth so a signed-in viewer sees their own view; every
// write sits behind RequireAuth and acts as the token subject.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	var passwords *auth.PasswordService
	if s.config.Env == config.EnvTest {
		passwords = auth.NewPasswordServiceForTest(4)
	} else {
		passwords = auth.NewPasswordService()
	}

	users := service.NewUserService(s.store, passwords, s.tokens, s.logger)
	posts := service.NewPostService(s.store, s.logger)
	comments := service.NewCommentService(s.store, s.logger)
	groups := service.NewGroupService(s.store, s.logger)

	healthH := handler.NewHealthHandler(s.store, s.config.Env, s.logger)
	authH := handler.NewAuthHandler(users, s.github, s.tokens.TTL(), s.config.IsProduction(), s.logger)
	userH := handler.NewUserHandler(users, posts, s.logger)
	postH := handler.NewPostHandler(posts, s.logger)
	commentH := handler.NewCommentHandler(comments, s.logger)
	groupH := handler.NewGroupHandler(groups, posts, s.logger)

	requireAuth := auth.RequireAuth(s.tokens)
	optionalAuth := auth.OptionalAuth(s.tokens)
	limiter := middleware.NewRateLimiter(s.config.AuthRateLimit, s.config.AuthRateBurst)

	s.router.Get("/health", healthH.HandleHealth)

	// === OAuth (browser redirects, outside /api) ===
	s.router.Route("/auth", func(r chi.Router) {
		if s.github != nil {
			r.With(limiter.Middleware).Get("/github/login", authH.HandleGitHubLogin)
			r.With(limiter.Middleware).Get("/github/callback", authH.HandleGitHubCallback)
		}
		r.Post("/logout", authH.HandleLogout)
	})

	// Register and login answer under both /api/users and /api/auth.
	credentials := func(r chi.Router) {
		r.With(limiter.Middleware).Post("/register", authH.HandleRegister)
		r.With(limiter.Middleware).Post("/login", authH.HandleLogin)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", credentials)

		// === Users ===
		r.Route("/users", func(r chi.Router) {
			credentials(r)
			r.With(requireAuth).Get("/me", authH.HandleMe)
			r.With(requireAuth).Get("/me/saved", userH.HandleListSaved)

			r.With(optionalAuth).Get("/", userH.HandleList)
			r.With(optionalAuth).Get("/{id}", userH.HandleGet)
			r.With(requireAuth).Put("/{id}", userH.HandleUpdate)
			r.With(optionalAuth).Get("/{id}/posts", userH.HandleListPosts)
			r.With(optionalAuth).Get("/{id}/friends", userH.HandleListFriends)
			r.With(requireAuth).Post("/{id}/friends", userH.HandleAddFriend)
			r.With(requireAuth).Delete("/{id}/friends/{friendId}", userH.HandleRemoveFriend)
		})

		// === Posts ===
		r.Route("/posts", func(r chi.Router) {
			r.With(optionalAuth).Get("/", postH.HandleFeed)
			r.With(requireAuth).Post("/", postH.HandleCreate)
			r.With(requireAuth).Put("/", postH.HandleLegacyToggle)

			r.With(optionalAuth).Get("/{id}", postH.HandleGet)
			r.With(requireAuth).Put("/{id}", postH.HandleUpdate)
			r.With(requireAuth).Delete("/{id}", postH.HandleDelete)
			r.With(requireAuth).Post("/{id}/like", postH.HandleLike)
			r.With(requireAuth).Post("/{id}/save", postH.HandleSave)

			r.With(optionalAuth).Get("/{id}/comments", commentH.HandleList)
			r.With(requireAuth).Post("/{id}/comments", commentH.HandleCreate)
			r.With(requireAuth).Delete("/{id}/comments/{commentId}", commentH.HandleDelete)
			r.With(requireAuth).Post("/{id}/comments/{commentId}/like", commentH.HandleLike)
		})

		// === Groups ===
		r.Route("/groups", func(r chi.Router) {
			r.With(optionalAuth).Get("/", groupH.HandleList)
			r.With(requireAuth).Post("/", groupH.HandleCreate)
			r.With(optionalAuth).Get("/{id}", groupH.HandleGet)
			r.With(requireAuth).Delete("/{id}", groupH.HandleDelete)
			r.With(optionalAuth).Get("/{id}/posts", groupH.HandleListPosts)
			r.With(requireAuth).Post("/{id}/members", groupH.HandleAddMember)
			r.With(requireAuth).Delete("/{id}/members/{userId}", groupH.HandleRemoveMember)
		})
	})
}

// Start serves until SIGINT/SIGTERM or until ctx is cancelled, then shuts
// down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Return, so the caller can close the store
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("db_driver", s.config.DBDriver),
			slog.Bool("github_login", s.github != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}
