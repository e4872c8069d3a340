package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joao-fontenele/dishpatch/internal/config"
	"github.com/joao-fontenele/dishpatch/internal/messaging"
	"github.com/joao-fontenele/dishpatch/internal/notify"
	"github.com/joao-fontenele/dishpatch/internal/scheduler"
	"github.com/joao-fontenele/dishpatch/internal/store"
)

// Standalone promoter worker. It runs the promotion loop against its own
// store instance, so it is only useful with seed data or a shared store
// implementation; the API service embeds the same loop by default.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Promoter
	if err := config.Load(&cfg); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	if cfg.SeedPath != "" {
		if err := store.LoadSeed(ctx, st, cfg.SeedPath); err != nil {
			logger.Error("failed to load seed data", "error", err, "path", cfg.SeedPath)
			os.Exit(1)
		}
		logger.Info("seed data loaded", "path", cfg.SeedPath)
	}

	var publisher scheduler.EventPublisher
	brokers := config.Brokers(cfg.KafkaBrokers)
	if len(brokers) > 0 {
		producer := messaging.NewProducer(brokers, messaging.TopicOrderPromoted)
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	notifier := notify.NewDispatcher(st, logger)
	promoter := scheduler.NewPromoter(st, notifier, publisher, logger, scheduler.Config{
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		ExpireAfter: time.Duration(cfg.ExpireHours) * time.Hour,
	})

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting promoter", "interval_seconds", cfg.IntervalSeconds, "expire_hours", cfg.ExpireHours)

	if err := promoter.Run(ctx); err != nil {
		logger.Error("promoter error", "error", err)
		os.Exit(1)
	}
}
