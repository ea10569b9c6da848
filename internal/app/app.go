package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yes-simulation/accounts/internal/auth"
	"github.com/yes-simulation/accounts/internal/config"
	"github.com/yes-simulation/accounts/internal/event"
	handler "github.com/yes-simulation/accounts/internal/handler/http"
	"github.com/yes-simulation/accounts/internal/migrations"
	"github.com/yes-simulation/accounts/internal/repository/postgres"
	"github.com/yes-simulation/accounts/internal/service"
	"github.com/yes-simulation/accounts/pkg/database"
	"github.com/yes-simulation/accounts/pkg/health"
	pkgkafka "github.com/yes-simulation/accounts/pkg/kafka"
	"github.com/yes-simulation/accounts/pkg/middleware"
	"github.com/yes-simulation/accounts/pkg/tracing"
)

// ServiceName labels logs, metrics and traces.
const ServiceName = "accounts"

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

// App wires together all dependencies and runs the accounts service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svcCfg := cfg.Service()
	commonPasswords, err := cfg.CommonPasswords()
	if err != nil {
		return nil, err
	}
	if commonPasswords != nil {
		svcCfg.CommonPasswords = commonPasswords
		logger.Info("common password list loaded",
			slog.String("path", cfg.CommonPasswordsFile),
			slog.Int("entries", commonPasswords.Len()),
		)
	}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(ServiceName, Version))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("connect to postgres: %w", err), tracerShutdown(context.Background()))
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(reg, pool, ServiceName); err != nil {
		pool.Close()
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	queries := database.NewQueryTracer(
		database.WithSlowQueryLog(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger),
	)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	// Kafka is optional; registration works without it.
	var (
		producer *pkgkafka.Producer
		events   service.EventPublisher
	)
	if cfg.KafkaEnabled {
		brokers := cfg.Brokers()
		producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(brokers), pkgkafka.NewProducerMetrics(reg), logger)
		events = event.NewProducer(producer, logger)
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", brokers))
	}

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	userRepo := postgres.NewUserRepository(pool, queries)
	authService := service.NewAuthService(svcCfg, userRepo, jwtManager, events, service.NewMetrics(reg), logger)

	// HTTP router.
	router := handler.NewRouter(handler.RouterDeps{
		AuthService: authService,
		JWTManager:  jwtManager,
		Health:      healthHandler,
		HTTPMetrics: middleware.NewHTTPMetrics(reg, ServiceName),
		Gatherer:    reg,
		CORS:        cfg.CORS(),
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
