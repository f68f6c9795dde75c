package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"volunteerledger/internal/cache"
	"volunteerledger/internal/config"
	"volunteerledger/internal/ledger"
	"volunteerledger/internal/logging"
	"volunteerledger/internal/query"
	"volunteerledger/internal/queue"
	"volunteerledger/internal/store"
	"volunteerledger/internal/worker"
)

// Worker refreshes cached summaries from ledger notifications and runs the
// scheduled aggregate reconciliation.
func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("worker failed", zap.Error(err))
	}
}

func run(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialect, err := store.ParseDialect(cfg.DBDriver)
	if err != nil {
		return err
	}
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	db, err := store.NewDB(startCtx, dialect, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	rc := redisClient.Raw()

	if cfg.QueueBackend == "memory" || cfg.QueueBackend == "" {
		log.Warn("memory queue is process-local, notifications are consumed inside the api process")
	}
	q, err := queue.Open(queue.Options{
		Backend:      cfg.QueueBackend,
		Key:          cfg.QueueKey,
		Redis:        rc,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaGroupID: cfg.KafkaGroupID,
	})
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	var summaryCache query.SummaryCache
	if s := cache.NewSummaries(rc, cfg.SummaryCacheTTL); s != nil {
		summaryCache = s
	} else {
		log.Warn("redis not configured, summary refresh is a no-op")
	}
	reader := query.NewService(db, summaryCache, log.Named("query"))
	led := ledger.NewService(db, log.Named("ledger"), nil, nil)

	c, err := worker.ScheduleReconcile(cfg.ReconcileSchedule, led, log.Named("reconcile"))
	if err != nil {
		return fmt.Errorf("reconcile schedule %q: %w", cfg.ReconcileSchedule, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init: %w", err)
	}
	log.Info("worker started",
		zap.String("queue", cfg.QueueBackend),
		zap.String("reconcile_schedule", cfg.ReconcileSchedule))

	worker.Consume(ctx, messages, reader, log.Named("consumer"))
	log.Info("worker stopped")
	return nil
}
