// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Palm authentication API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables (and .env when present).
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Build the security primitives: hasher, session issuer, gate.
//  7. Wire domain services and handlers.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/palm/internal/api"
	"github.com/taibuivan/palm/internal/platform/config"
	"github.com/taibuivan/palm/internal/platform/constants"
	"github.com/taibuivan/palm/internal/platform/mail"
	"github.com/taibuivan/palm/internal/platform/middleware"
	"github.com/taibuivan/palm/internal/platform/migration"
	pgstore "github.com/taibuivan/palm/internal/platform/postgres"
	redisstore "github.com/taibuivan/palm/internal/platform/redis"
	"github.com/taibuivan/palm/internal/platform/sec"
	"github.com/taibuivan/palm/internal/users/access"
	"github.com/taibuivan/palm/internal/users/account"
	"github.com/taibuivan/palm/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	log := newLogger(slog.LevelInfo)
	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("resend_enabled", cfg.ResendEnabled()),
		slog.Bool("smtp_enabled", cfg.SMTPEnabled()),
	)

	// Root context for the process lifetime; cancelled on shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Startup deadline so misconfiguration fails fast instead of hanging.
	startupCtx, startupCancel := context.WithTimeout(rootCtx, 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, pgstore.PoolConfig{
		DSN:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Security Primitives ────────────────────────────────────────────
	hasher, err := sec.NewHasher(cfg.BcryptCost)
	must(log, err, "initialize password hasher")

	tokens, err := sec.NewTokenService(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL)
	must(log, err, "initialize session issuer")

	policy := access.NewPolicy(access.DefaultRoutes())

	proxies, err := middleware.ParseProxyTrust(cfg.TrustedProxyList())
	must(log, err, "parse trusted proxies")

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	accounts := auth.NewAccountRepository(pool)
	revocations := auth.NewRevocationList(rdb)

	var sender mail.Sender = mail.NewLogSender(log)
	switch {
	case cfg.ResendEnabled():
		sender, err = mail.NewResendSender(mail.ResendConfig{
			APIKey:   cfg.ResendAPIKey,
			From:     cfg.MailFrom,
			TokenTTL: cfg.ResetTokenTTL,
		})
		must(log, err, "initialize resend sender")
	case cfg.SMTPEnabled():
		sender, err = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			TokenTTL: cfg.ResetTokenTTL,
		})
		must(log, err, "initialize smtp sender")
	}

	authService := auth.NewService(accounts, hasher, tokens, revocations)
	resetManager := auth.NewResetManager(accounts, hasher, sender, cfg.ResetTokenTTL).
		WithLockout(auth.NewAttemptCounter(rdb), auth.ResetFailuresPerClient, auth.ResetFailuresOverall, auth.ResetFailureWindow)
	accountService := account.NewService(accounts, authService, revocations, cfg.SessionTTL)

	credentialLimiter := middleware.NewRateLimiter(rootCtx, cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)

	liveness, readiness := api.NewHealthHandlers([]api.Check{
		{Name: "postgres", Probe: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) }},
		{Name: "redis", Probe: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }},
	}, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(rootCtx, cfg, log,
		api.Security{Verifier: tokens, Resolver: revocations, Policy: policy, Proxies: proxies},
		api.Handlers{
			Liveness:  liveness,
			Readiness: readiness,
			Auth:      auth.NewHandler(authService, resetManager, policy, credentialLimiter),
			Account:   account.NewHandler(accountService),
		},
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
	}

	log.Info("server_stopped_cleanly")
}

// newLogger builds the JSON logger shared by every component.
func newLogger(level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(log)
	return log
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
