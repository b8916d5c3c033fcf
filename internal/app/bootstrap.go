package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/db"
	"finance-tracker/internal/maintenance"
	"finance-tracker/internal/observability"
	"finance-tracker/internal/user"
)

type Options struct {
	LoadDotEnv bool
}

type Runtime struct {
	Handler http.Handler
	Config  *config.Config
	Logger  *observability.Logger
	Close   func() error
}

// Build loads configuration, opens the database and assembles the HTTP
// handler. The caller owns Close.
func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(config.Options{LoadDotEnv: options.LoadDotEnv})
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	database.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.RunMigrationsOnStartup {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations_applied", nil)
	}

	handler, err := NewHandler(cfg, database, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

// NewHandler wires repositories, services and routes on an open database.
func NewHandler(cfg *config.Config, database *sql.DB, logger *observability.Logger) (http.Handler, error) {
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.AccessTokenSecret,
		RefreshSecret: cfg.RefreshTokenSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}

	authRepo := auth.NewRepository(database)
	if cfg.TokenDenylistEnabled {
		tokens.WithRevocations(authRepo)
	}

	userRepo := user.NewRepository(database)
	authService := auth.NewService(userRepo, auth.NewPasswordHasher(auth.PasswordCost), tokens)
	cookies := auth.NewCookiePolicy(cfg.IsProduction())
	authHandler := auth.NewHandler(authService, cookies, logger)
	gate := auth.NewGate(tokens, cookies, logger, cfg.LoginPath, cfg.ProtectedPaths)

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		cfg.CronSecret,
		cfg.TokenDenylistRetention,
		cfg.CleanupBatchSize,
	)

	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", authHandler.Signup)
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /user/logout-user", authHandler.Logout)
	mux.HandleFunc("DELETE /user/delete-user", authHandler.DeleteAccount)
	mux.HandleFunc("GET /user/get-user", authHandler.GetUser)
	mux.HandleFunc("POST /user/update-user", authHandler.UpdateUser)
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))
	if cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	var handler http.Handler = gate.Middleware(mux)
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", observability.RequestIDHeader},
			AllowCredentials: true,
		}).Handler(handler)
	}

	handler = observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, handler))
	if cfg.TrustProxyHeaders {
		handler = observability.ForwardedForMiddleware(handler)
	}
	return observability.RequestIDMiddleware(handler), nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
