package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"volunteerledger/internal/api"
	"volunteerledger/internal/cache"
	"volunteerledger/internal/cloudinary"
	"volunteerledger/internal/config"
	"volunteerledger/internal/donations"
	"volunteerledger/internal/events"
	"volunteerledger/internal/gallery"
	"volunteerledger/internal/ledger"
	"volunteerledger/internal/logging"
	"volunteerledger/internal/query"
	"volunteerledger/internal/queue"
	"volunteerledger/internal/store"
	"volunteerledger/internal/users"
	"volunteerledger/internal/worker"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("warning", w))
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
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
	if cfg.AutoMigrate {
		if err := db.Migrate(startCtx); err != nil {
			return err
		}
		log.Info("schema migrated", zap.String("dialect", string(dialect)))
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	rc := redisClient.Raw()
	q, err := queue.Open(queue.Options{
		Backend:      cfg.QueueBackend,
		Key:          cfg.QueueKey,
		Redis:        rc,
		KafkaBrokers: cfg.KafkaBrokers,
	})
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	summaries := cache.NewSummaries(rc, cfg.SummaryCacheTTL)
	var invalidator ledger.Invalidator
	var summaryCache query.SummaryCache
	if summaries != nil {
		invalidator, summaryCache = summaries, summaries
	}

	var storage gallery.Storage
	if cfg.CloudinaryURL != "" {
		cdn, err := cloudinary.New(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return err
		}
		storage = cdn
		log.Info("cloudinary configured", zap.String("folder", cfg.CloudinaryFolder))
	} else {
		log.Warn("cloudinary not configured, media uploads disabled")
	}

	reader := query.NewService(db, summaryCache, log.Named("query"))
	if cfg.QueueBackend == "memory" || cfg.QueueBackend == "" {
		msgs, err := q.Consume(ctx)
		if err != nil {
			return err
		}
		go worker.Consume(ctx, msgs, reader, log.Named("consumer"))
		log.Info("in-process notification consumer started")
	}

	router := api.NewRouter(api.Deps{
		Config: cfg,
		Log:    log,
		DB:     db,
		Redis:  redisClient,
		Ledger: ledger.NewService(db, log.Named("ledger"), q, invalidator),
		Query:  reader,
		Users: users.NewService(db, log.Named("users"), users.TokenConfig{
			Issuer:     cfg.JWTIssuer,
			SigningKey: cfg.JWTSigningKey,
			TTL:        cfg.AccessTTL,
		}),
		Events:    events.NewService(db, log.Named("events")),
		Gallery:   gallery.NewService(db, storage, cfg.MaxUploadBytes, log.Named("gallery")),
		Donations: donations.NewService(db, log.Named("donations")),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("queue", cfg.QueueBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}
