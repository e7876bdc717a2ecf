// Package main is the entry point for the Slidex API server.
//
// main() stays minimal: read configuration from the environment, create
// the logger, hand both to internal/server. All actual logic lives in the
// imported packages.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/slidex/slidex/internal/server"
)

// env returns the variable's value or a fallback when unset.
func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// === 1. LOGGING ===
	// Structured text logs on stdout. Use LevelInfo in production;
	// LevelDebug also logs every generation-service round trip.
	level := slog.LevelInfo
	if env("LOG_LEVEL", "") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// === 2. CONFIGURATION ===
	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := env("DB_PATH", "data/slidex.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET must be a long random string:
	//   JWT_SECRET=$(openssl rand -hex 32)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("JWT_SECRET not set — refusing to start without a signing key")
		os.Exit(1)
	}

	baseURL := env("BASE_URL", fmt.Sprintf("http://localhost:%d", port))

	cfg := server.Config{
		Port:   port,
		DBPath: dbPath,

		BaseURL:   baseURL,
		JWTSecret: jwtSecret,

		GenerationAPIURL: env("GENERATION_API_URL", "http://localhost:8000"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		StorageURL:        os.Getenv("STORAGE_URL"),
		StorageServiceKey: os.Getenv("STORAGE_SERVICE_KEY"),
		StorageBucket:     env("STORAGE_BUCKET", "presentations"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		OAuthCallbackURL:   env("OAUTH_CALLBACK_URL", baseURL+"/auth/oauth-callback"),
	}

	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set — checkout will fail")
	}
	if cfg.StorageURL == "" || cfg.StorageServiceKey == "" {
		logger.Warn("storage credentials not set — deck uploads will fail")
	}

	// === 3. START ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until shutdown (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
