// Package main provides the triage API service entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/drfirst/go-triage/internal/api/handlers"
	"github.com/drfirst/go-triage/internal/api/middleware"
	"github.com/drfirst/go-triage/internal/classifier"
	"github.com/drfirst/go-triage/internal/config"
	"github.com/drfirst/go-triage/internal/domain/encounter"
	"github.com/drfirst/go-triage/internal/infrastructure/postgres"
	"github.com/drfirst/go-triage/internal/infrastructure/waitlist"
	"github.com/drfirst/go-triage/internal/intake"
	"github.com/drfirst/go-triage/internal/observability/metrics"
	"github.com/drfirst/go-triage/internal/observability/tracing"
	"github.com/drfirst/go-triage/pkg/circuitbreaker"
)

const serviceName = "triage-api"

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

	// Tracing
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.OTLPEndpoint = cfg.OTLPEndpoint
	tcfg.SampleRate = cfg.TraceSampleRate
	tp, err := tracing.Init(ctx, tcfg)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Classifiers are loaded once and shared by every request
	set, err := classifier.LoadSet(cfg.ModelDir, logger)
	if err != nil {
		logger.Fatal("failed to load classifiers", zap.Error(err))
	}
	engine, err := set.Engine(logger)
	if err != nil {
		logger.Fatal("engine init failed", zap.Error(err))
	}

	// Encounter store
	var (
		store encounter.Store
		ready = func(context.Context) error { return nil }
	)
	if cfg.DatabaseURL != "" {
		pcfg := postgres.DefaultPoolConfig()
		pcfg.Migrate = true
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, pcfg, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
		store = encounter.NewRepository(pool, logger)
		ready = pool.Ping
	} else {
		logger.Warn("DATABASE_URL not set, encounters are kept in memory")
		store = encounter.NewMemoryStore()
	}

	// Waitlist
	var queue waitlist.Waitlist
	if cfg.RedisAddr != "" {
		wcfg := waitlist.DefaultConfig()
		wcfg.Addr = cfg.RedisAddr
		rq, err := waitlist.NewRedis(ctx, wcfg, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rq.Close()
		queue = rq
	} else {
		logger.Warn("REDIS_ADDR not set, waitlist is kept in memory")
		queue = waitlist.NewMemory()
	}

	// Breakers around every collaborator that can hang a request
	breakers := circuitbreaker.NewManager(breakerConfig(m), logger)
	storeBreaker, err := breakers.GetOrCreate("encounter-store")
	if err != nil {
		logger.Fatal("breaker init failed", zap.Error(err))
	}
	queueBreaker, err := breakers.GetOrCreate("waitlist")
	if err != nil {
		logger.Fatal("breaker init failed", zap.Error(err))
	}

	for _, cb := range []*circuitbreaker.CircuitBreaker{storeBreaker, queueBreaker} {
		m.SetBreakerState(cb.Name(), string(cb.GetState()))
	}

	recorder := encounter.NewRecorder(store, storeBreaker, logger)
	recorder.OnFailure = m.PersistenceFailed

	svc := intake.NewService(engine, recorder, logger,
		intake.WithWaitlist(queue, queueBreaker),
		intake.WithMetrics(m),
	)
	triageHandler := handlers.NewTriageHandler(svc, store, logger)

	// Setup router
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.Correlation)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.Metrics(m))

	// Health check (no auth)
	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Get("/breakers", func(w http.ResponseWriter, r *http.Request) {
		writeBreakers(w, breakers)
	})
	r.Handle("/metrics", m.Handler())

	// API routes (with auth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))
		r.Mount("/", triageHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting triage API",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func breakerConfig(m *metrics.Metrics) circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("")
	cfg.OnStateChange = func(name string, to circuitbreaker.State) {
		m.SetBreakerState(name, string(to))
	}
	return cfg
}

func writeBreakers(w http.ResponseWriter, breakers *circuitbreaker.Manager) {
	statuses := breakers.GetHealthStatus()
	code := http.StatusOK
	for _, s := range statuses {
		if !s.Healthy {
			code = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(statuses)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":%q,"version":"1.0.0"}`, serviceName)
}
