package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/splax/taskgate/internal/app/migrate"
	"github.com/splax/taskgate/internal/config"
	"github.com/splax/taskgate/internal/guard"
	"github.com/splax/taskgate/internal/httpx"
	"github.com/splax/taskgate/internal/logger"
	"github.com/splax/taskgate/internal/proxy"
	"github.com/splax/taskgate/internal/repository/postgres"
	"github.com/splax/taskgate/internal/service/auth"
	"github.com/splax/taskgate/internal/session"
	"github.com/splax/taskgate/internal/token"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New("gateway", slog.LevelInfo)

	// A missing signing secret is a deployment mistake, not a per-request
	// condition. Refuse to start.
	codec, err := token.NewCodec(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Error("signing secret missing or invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	authSvc := auth.New(repo, codec, log)
	sessions := session.NewStore(cfg.TokenTTL, cfg.Production())
	routeGuard := guard.New(cfg.ProtectedPrefixes, cfg.AuthOnlyPrefixes, cfg.LoginRedirectPath, cfg.AppRedirectPath)

	forwarder, err := proxy.New(cfg.BackendBaseURL, cfg.ProxyTimeout, log)
	if err != nil {
		log.Error("invalid backend configuration", "error", err)
		os.Exit(1)
	}

	var limiter httpx.RateLimiter
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		limiter, err = httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable, falling back to in-memory", "error", err)
		}
	}
	if limiter == nil {
		limiter = httpx.NewMemoryRateLimiter()
	}

	var app http.Handler = http.NotFoundHandler()
	if cfg.StaticDir != "" {
		app = http.FileServer(http.Dir(cfg.StaticDir))
	}

	router := httpx.NewRouter(log, authSvc, sessions, routeGuard, forwarder, app, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("gateway starting", "addr", cfg.Addr, "backend", cfg.BackendBaseURL)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("gateway stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
