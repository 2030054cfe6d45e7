package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"committeehub/config"
	"committeehub/internal/live"
	"committeehub/internal/logger"
	"committeehub/internal/metrics"
	"committeehub/routes"
	"committeehub/services"
	"committeehub/utils"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const defaultConfigPath = "./config/config.prod.yml"

func main() {
	configPath := os.Getenv("COMMITTEEHUB_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	utils.SetJWTSecret(cfg.JWT.Secret)
	utils.SetJWTExpiry(cfg.JWT.Expiry)

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
		log.Info("sentry enabled", "environment", cfg.Sentry.Environment)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	stores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close()

	policy, err := services.NewPolicy(stores.policyAdapter, log)
	if err != nil {
		return err
	}

	opts := services.Options{Logger: log, Metrics: metrics.New(registry)}
	if cfg.Redis.Addr != "" {
		rdb, err := live.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()

		publisher := live.NewStreamPublisher(rdb, cfg.Redis.StreamMaxLen)
		opts.Events = publisher
		opts.Feed = publisher
		opts.Limiter = live.NewRateLimiter(rdb, live.RateLimitConfig{
			MaxRaises: cfg.RateLimit.MaxHandRaises,
			Window:    cfg.RateLimit.Window,
		})
		log.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	gin.SetMode(gin.ReleaseMode)
	router := routes.SetupRouter(routes.Dependencies{
		Users:          stores.users,
		Auth:           services.NewAuthService(stores.users, stores.committees, stores.motions, opts),
		Committees:     services.NewCommitteeService(stores.committees, stores.motions, stores.users, policy, opts),
		Motions:        services.NewMotionService(stores.committees, stores.motions, policy, opts),
		Logger:         log,
		Gatherer:       registry,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		SecureCookies:  cfg.Server.SecureCookies,
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "storage", cfg.Storage)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
