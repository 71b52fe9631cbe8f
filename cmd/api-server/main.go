package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/careloop/telehealth-scheduling/internal/api"
	"github.com/careloop/telehealth-scheduling/internal/config"
	"github.com/careloop/telehealth-scheduling/internal/db"
	"github.com/careloop/telehealth-scheduling/internal/logger"
	"github.com/careloop/telehealth-scheduling/internal/metrics"
	redisclient "github.com/careloop/telehealth-scheduling/internal/redis"
	"github.com/careloop/telehealth-scheduling/internal/scheduling"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic("logger init error: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool)
	locker := redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL)
	bookingMetrics := metrics.NewBookingMetrics(nil)
	svc := scheduling.NewService(repo, locker, bookingMetrics, log)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  log,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("http server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}

	log.Info("api-server stopped")
}
