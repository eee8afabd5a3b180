// Package main provides the triage worker entry point.
// Consumes intake messages, assesses each exactly once and records the
// encounter. Messages that cannot be processed go to the dead letter topic.
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

	"github.com/drfirst/go-triage/internal/classifier"
	"github.com/drfirst/go-triage/internal/config"
	"github.com/drfirst/go-triage/internal/domain/encounter"
	"github.com/drfirst/go-triage/internal/infrastructure/postgres"
	"github.com/drfirst/go-triage/internal/infrastructure/redpanda"
	"github.com/drfirst/go-triage/internal/infrastructure/waitlist"
	"github.com/drfirst/go-triage/internal/intake"
	"github.com/drfirst/go-triage/internal/observability/metrics"
	"github.com/drfirst/go-triage/internal/observability/tracing"
	"github.com/drfirst/go-triage/pkg/circuitbreaker"
	"github.com/drfirst/go-triage/pkg/idempotency"
	"github.com/drfirst/go-triage/pkg/workerpool"
)

const serviceName = "triage-worker"

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

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	set, err := classifier.LoadSet(cfg.ModelDir, logger)
	if err != nil {
		logger.Fatal("failed to load classifiers", zap.Error(err))
	}
	engine, err := set.Engine(logger)
	if err != nil {
		logger.Fatal("engine init failed", zap.Error(err))
	}

	// Connect to database; the inbox needs it even when nothing else does
	pcfg := postgres.DefaultPoolConfig()
	pcfg.Migrate = true
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, pcfg, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	inbox := idempotency.NewInbox(pool, idempotency.DefaultInboxConfig(), logger)
	if n, err := inbox.RecoverStaleEntries(ctx); err != nil {
		logger.Warn("stale inbox recovery failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("recovered stale inbox entries", zap.Int64("count", n))
	}
	inbox.StartCleanup()
	defer inbox.Stop()

	cbCfg := circuitbreaker.DefaultConfig("encounter-store")
	cbCfg.OnStateChange = func(name string, to circuitbreaker.State) {
		m.SetBreakerState(name, string(to))
	}
	breaker, err := circuitbreaker.New(cbCfg, logger)
	if err != nil {
		logger.Fatal("breaker init failed", zap.Error(err))
	}

	recorder := encounter.NewRecorder(encounter.NewRepository(pool, logger), breaker, logger)
	recorder.OnFailure = m.PersistenceFailed

	opts := []intake.Option{intake.WithMetrics(m)}
	if cfg.RedisAddr != "" {
		wcfg := waitlist.DefaultConfig()
		wcfg.Addr = cfg.RedisAddr
		queue, err := waitlist.NewRedis(ctx, wcfg, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer queue.Close()
		opts = append(opts, intake.WithWaitlist(queue, nil))
	}
	svc := intake.NewService(engine, recorder, logger, opts...)

	proc := &processor{svc: svc, inbox: inbox, metrics: m, logger: logger}

	// Create worker pool
	poolCfg := workerpool.DefaultConfig()
	if cfg.Workers > 0 {
		poolCfg.Workers = cfg.Workers
	}
	workerPool, err := workerpool.New(poolCfg, proc.handle, logger)
	if err != nil {
		logger.Fatal("worker pool creation failed", zap.Error(err))
	}
	workerPool.Start()
	m.WatchWorkerPool(func() (int64, int64, int64) {
		st := workerPool.Stats()
		return st.ActiveWorkers, st.QueueDepth, int64(st.QueueCapacity)
	})

	// Dead letter producer
	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.KafkaBrokers
	producerCfg.OnProduced = func(string) { m.MessageProduced() }
	producer, err := redpanda.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()

	// Create consumer
	consumerCfg := redpanda.DefaultConsumerConfig()
	consumerCfg.Brokers = cfg.KafkaBrokers
	consumerCfg.GroupID = cfg.ConsumerGroup

	consumer, err := redpanda.NewConsumer(consumerCfg, func(ctx context.Context, msg *redpanda.ConsumedMessage) error {
		res, err := workerPool.SubmitWait(ctx, &workerpool.Task{
			ID:      fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset),
			Payload: msg,
		})
		if err != nil {
			return err
		}
		if !res.Success {
			return res.Error
		}
		return nil
	}, logger)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}
	consumer.OnFailure(func(ctx context.Context, msg *redpanda.ConsumedMessage, err error) {
		dl := deadLetter{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       string(msg.Key),
			Payload:   deadLetterPayload(msg.Value),
			Error:     err.Error(),
			FailedAt:  time.Now().UTC(),
		}
		if perr := producer.PublishJSON(ctx, redpanda.TopicDeadLetter, string(msg.Key), dl); perr != nil {
			logger.Error("failed to dead-letter message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(perr))
		}
	})

	consumer.Start()

	// Health and metrics
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if !workerPool.IsHealthy() {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
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

	logger.Info("triage worker started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("group", consumerCfg.GroupID),
		zap.Int("workers", poolCfg.Workers),
	)

	// Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	if err := consumer.Stop(); err != nil {
		logger.Error("consumer stop failed", zap.Error(err))
	}
	if err := workerPool.Stop(); err != nil {
		logger.Error("worker pool stop failed", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	logger.Info("triage worker stopped")
}
