package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/careloop/telehealth-scheduling/internal/config"
	"github.com/careloop/telehealth-scheduling/internal/db"
	"github.com/careloop/telehealth-scheduling/internal/logger"
	"github.com/careloop/telehealth-scheduling/internal/metrics"
	redisclient "github.com/careloop/telehealth-scheduling/internal/redis"
	"github.com/careloop/telehealth-scheduling/internal/scheduling"
)

// The sweeper system-cancels pending appointments that were never accepted
// within PENDING_TTL, freeing the doctor's calendar.
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

	log.Info("sweeper starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.SweepInterval),
		zap.Duration("pending_ttl", cfg.PendingTTL))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

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
	svc := scheduling.NewService(repo, locker, metrics.NewBookingMetrics(nil), log)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.PendingTTL, log)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.PendingTTL, log)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, maxAge time.Duration, log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	swept, err := svc.SweepStalePending(runCtx, maxAge)
	if err != nil {
		log.Error("sweep run error", zap.Error(err))
		return
	}
	log.Info("sweep run complete",
		zap.Int("cancelled", swept),
		zap.Duration("took", time.Since(start)))
}
