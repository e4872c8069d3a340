package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/dishpatch/internal/api"
	"github.com/joao-fontenele/dishpatch/internal/checkout"
	"github.com/joao-fontenele/dishpatch/internal/config"
	"github.com/joao-fontenele/dishpatch/internal/dashboard"
	"github.com/joao-fontenele/dishpatch/internal/dispatch"
	"github.com/joao-fontenele/dishpatch/internal/lifecycle"
	"github.com/joao-fontenele/dishpatch/internal/messaging"
	"github.com/joao-fontenele/dishpatch/internal/notify"
	"github.com/joao-fontenele/dishpatch/internal/pricing"
	"github.com/joao-fontenele/dishpatch/internal/scheduler"
	"github.com/joao-fontenele/dishpatch/internal/store"
	"github.com/joao-fontenele/dishpatch/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var cfg config.Marketplace
	if err := config.Load(&cfg); err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "marketplaced", serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("marketplaced", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	st := store.NewMemoryStore()
	if cfg.SeedPath != "" {
		if err := store.LoadSeed(ctx, st, cfg.SeedPath); err != nil {
			logger.Error("failed to load seed data", "error", err, "path", cfg.SeedPath)
			os.Exit(1)
		}
		logger.Info("seed data loaded", "path", cfg.SeedPath)
	}

	engine := pricing.NewEngine(pricing.NewPseudoGeocoder(), logger)
	notifier := notify.NewDispatcher(st, logger)
	machine := lifecycle.NewMachine(st, logger)
	dispatcher := dispatch.NewManager(st, machine, notifier, logger)
	checkoutSvc := checkout.NewService(st, engine, checkout.NewSimulatedPayments(), notifier, logger)
	views := dashboard.NewViews(st)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var statusProducer *messaging.Producer
	var promotedProducer *messaging.Producer
	brokers := config.Brokers(cfg.KafkaBrokers)
	if len(brokers) > 0 {
		statusProducer = messaging.NewProducer(brokers, messaging.TopicStatusChanged)
		defer func() { _ = statusProducer.Close() }()

		promotedProducer = messaging.NewProducer(brokers, messaging.TopicOrderPromoted)
		defer func() { _ = promotedProducer.Close() }()

		// Bridge machine events onto the stream so downstream consumers
		// (the archiver) see every transition.
		events, unsubscribe := machine.Events().Subscribe()
		defer unsubscribe()
		go func() {
			for event := range events {
				if err := statusProducer.Publish(runCtx, event.OrderID, event); err != nil {
					logger.Error("failed to publish status event", "error", err, "order_id", event.OrderID)
				}
			}
		}()
	}

	if cfg.EmbedPromoter {
		promoter := scheduler.NewPromoter(st, notifier, promotedPublisher(promotedProducer), logger, scheduler.Config{})
		go func() {
			if err := promoter.Run(runCtx); err != nil && runCtx.Err() == nil {
				logger.Error("promoter stopped", "error", err)
			}
		}()
	}

	handler := api.NewHandler(st, checkoutSvc, machine, dispatcher, views, logger)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "marketplaced",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting marketplace service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// promotedPublisher adapts an optional producer to the promoter's
// publisher interface; without brokers promotion events are not emitted.
func promotedPublisher(p *messaging.Producer) scheduler.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
