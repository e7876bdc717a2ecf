// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer — the composition root where the
// whole dependency chain is assembled in one place:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// Each layer only receives what it needs: services get repository
// interfaces (not the concrete DB), handlers get services (not
// repositories). main.go stays minimal — load config, start the server.
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

	"github.com/slidex/slidex/internal/auth"
	"github.com/slidex/slidex/internal/generator"
	"github.com/slidex/slidex/internal/handler"
	"github.com/slidex/slidex/internal/middleware"
	"github.com/slidex/slidex/internal/payments"
	sqliteRepo "github.com/slidex/slidex/internal/repository/sqlite"
	"github.com/slidex/slidex/internal/service"
	"github.com/slidex/slidex/internal/storage"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port   int
	DBPath string

	// BaseURL is the public frontend URL; checkout redirects and OAuth
	// callbacks are built against it.
	BaseURL string

	JWTSecret string

	GenerationAPIURL string

	StripeSecretKey     string
	StripeWebhookSecret string

	StorageURL        string
	StorageServiceKey string
	StorageBucket     string

	GoogleClientID     string
	GoogleClientSecret string
	OAuthCallbackURL   string
}

// Server owns the router and the resources that outlive a request.
// The database connection is closed during graceful shutdown, after
// in-flight requests drain.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain and registers all routes.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware, builds the services, and maps routes.
//
// ROUTE STRUCTURE:
//
//	POST /auth/signup                       → register, set session cookie
//	POST /auth/signin                       → authenticate
//	POST /auth/signout                      → clear session cookie
//	GET  /auth/oauth-login                  → redirect to Google
//	GET  /auth/oauth-callback               → complete OAuth, set cookie
//	GET  /auth/me                           → current profile        [auth]
//	POST /payments/checkout                 → open checkout session  [auth]
//	POST /payments/webhook                  → Stripe deliveries (raw body)
//	POST /presentations/generate-outline    → draft an outline (public)
//	POST /presentations/create              → generate a deck        [auth]
//	GET  /presentations/history             → list own decks         [auth]
//	GET  /presentations/download            → stream the deck file   [auth]
//	GET  /presentations/{id}                → one record             [auth]
//	POST /presentations/{id}/generate-pdf   → convert to PDF         [auth]
//
// MIDDLEWARE ORDER MATTERS — RequestID and RealIP first so the logger
// sees them, Recoverer before anything that can panic, CORS before
// routing so preflights are answered.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// The frontend is served from BaseURL, the API from this process —
	// different origins in every deployment, so CORS with credentials
	// (the session cookie) must be explicit.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.config.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// === AUTH UTILITIES ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.OAuthCallbackURL,
	)

	// === EXTERNAL COLLABORATORS ===
	gen := generator.NewClient(s.config.GenerationAPIURL, s.logger)
	store := storage.NewSupabase(
		s.config.StorageURL,
		s.config.StorageServiceKey,
		s.config.StorageBucket,
		s.logger,
	)
	stripeClient := payments.New(
		s.config.StripeSecretKey,
		s.config.StripeWebhookSecret,
		s.config.BaseURL,
	)

	// === SERVICES ===
	authService := service.NewAuthService(s.db.Users(), tokens, passwords, google, s.logger)
	presentationService := service.NewPresentationService(
		s.db.Presentations(), s.db.Users(), gen, store, s.logger)
	paymentService := service.NewPaymentService(
		s.db.Purchases(), s.db.Users(), stripeClient, s.logger)

	// === HANDLERS ===
	authHandler := handler.NewAuthHandler(authService, google, s.logger)
	presentationHandler := handler.NewPresentationHandler(presentationService, s.logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, s.logger)

	// === PUBLIC ROUTES ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignUp)
		r.Post("/signin", authHandler.HandleSignIn)
		r.Post("/signout", authHandler.HandleSignOut)
		r.Get("/oauth-login", authHandler.HandleOAuthLogin)
		r.Get("/oauth-callback", authHandler.HandleOAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
		})
	})

	// The webhook stays outside RequireAuth: Stripe authenticates with
	// its signature header, not a session cookie.
	s.router.Route("/payments", func(r chi.Router) {
		r.Post("/webhook", paymentHandler.HandleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/checkout", paymentHandler.HandleCheckout)
		})
	})

	s.router.Route("/presentations", func(r chi.Router) {
		// Outline drafting is free and public; only deck generation
		// debits credits.
		r.Post("/generate-outline", presentationHandler.HandleGenerateOutline)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/create", presentationHandler.HandleCreate)
			r.Get("/history", presentationHandler.HandleHistory)
			r.Get("/download", presentationHandler.HandleDownload)
			r.Get("/{id}", presentationHandler.HandleGet)
			r.Post("/{id}/generate-pdf", presentationHandler.HandleGeneratePDF)
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// SHUTDOWN ORDER:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		// Deck generation waits on the external service, which can run
		// for minutes. The write timeout has to outlast it.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
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
