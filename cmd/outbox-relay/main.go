// Package main provides the outbox relay service entry point.
// Publishes encounter events written by the event store to Redpanda.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/drfirst/go-triage/internal/config"
	"github.com/drfirst/go-triage/internal/infrastructure/postgres"
	"github.com/drfirst/go-triage/internal/infrastructure/redpanda"
	"github.com/drfirst/go-triage/internal/observability/metrics"
	"github.com/drfirst/go-triage/internal/observability/tracing"
)

const serviceName = "outbox-relay"

// processedRetention is how long relayed rows are kept before cleanup
const processedRetention = 72 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "create logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.SampleRate = cfg.TraceSampleRate
	tp, err := tracing.Init(ctx, tcfg)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	m := metrics.New(prometheus.NewRegistry())

	// Connect to database
	pcfg := postgres.DefaultPoolConfig()
	pcfg.Migrate = true
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, pcfg, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	// Make sure every topic the relay writes to exists
	admin, err := redpanda.NewAdmin(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("admin client creation failed", zap.Error(err))
	}
	if err := admin.EnsureTopics(ctx); err != nil {
		logger.Warn("topic provisioning failed", zap.Error(err))
	}
	admin.Close()

	// Create Redpanda producer
	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.KafkaBrokers
	producerCfg.OnProduced = func(string) { m.MessageProduced() }

	producer, err := redpanda.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()

	logger.Info("connected to Redpanda", zap.Strings("brokers", cfg.KafkaBrokers))

	// Create outbox processor
	outboxCfg := postgres.DefaultOutboxConfig()
	outboxCfg.DeadLetterTopic = redpanda.TopicDeadLetter
	outboxCfg.OnPending = m.SetOutboxPending
	outbox := postgres.NewOutbox(pool, producer, outboxCfg, logger)

	outbox.Start()
	logger.Info("outbox relay started")

	// Periodic cleanup of relayed rows
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				n, err := outbox.CleanupProcessed(cleanupCtx, processedRetention)
				if err != nil {
					logger.Error("outbox cleanup failed", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Info("outbox cleaned up", zap.Int64("deleted", n))
				}
			}
		}
	}()

	// Health and metrics
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := producer.Ping(r.Context()); err != nil {
			http.Error(w, "broker unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	stopCleanup()
	outbox.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := producer.Flush(shutdownCtx); err != nil {
		logger.Warn("producer flush failed", zap.Error(err))
	}
	server.Shutdown(shutdownCtx)
	logger.Info("outbox relay stopped")
}
