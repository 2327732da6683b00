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
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/stockcast/internal/api"
	"github.com/irfndi/stockcast/internal/api/handlers"
	"github.com/irfndi/stockcast/internal/config"
	"github.com/irfndi/stockcast/internal/database"
	"github.com/irfndi/stockcast/internal/logging"
	"github.com/irfndi/stockcast/internal/services"
	"github.com/irfndi/stockcast/internal/telemetry"
	"github.com/irfndi/stockcast/pkg/interfaces"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = telemetry.ServiceVersion

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.LogsEnabled {
		hook, err := logging.NewOTLPHook(ctx, logging.OTLPConfig{
			Endpoint:       cfg.Telemetry.LogsEndpoint,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Environment:    cfg.Environment,
		})
		if err != nil {
			logger.WithError(err).Warn("OTLP log export disabled")
		} else {
			logger.AddHook(hook)
			defer shutdownWithTimeout(logger, "log exporter", hook.Shutdown)
		}
	}

	provider, err := telemetry.InitTelemetryWithProvider(ctx, telemetryConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdownWithTimeout(logger, "tracer provider", provider.Shutdown)

	stores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	deps, err := buildDependencies(cfg, stores.source, stores.checkers, logger)
	if err != nil {
		return err
	}

	srv := newHTTPServer(cfg.Server, api.NewRouter(deps))
	serveErr := make(chan error, 1)
	go func() {
		logging.LogStartup(logger, cfg.Telemetry.ServiceName, version, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logging.LogShutdown(logger, cfg.Telemetry.ServiceName, "signal received")
	}

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

func telemetryConfig(cfg *config.Config) *telemetry.TelemetryConfig {
	tc := telemetry.DefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Exporter = cfg.Telemetry.Exporter
	tc.OTLPEndpoint = cfg.Telemetry.Endpoint
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.ServiceVersion = version
	tc.Environment = cfg.Environment
	tc.SampleRate = cfg.Telemetry.SampleRate
	return tc
}

// storeSet owns the connections opened at startup.
type storeSet struct {
	source   interfaces.BarSource
	checkers map[string]handlers.HealthChecker
	closers  []func()
}

func (s *storeSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the enabled backends and selects the bar source named by market_data.source.
func openStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*storeSet, error) {
	stores := &storeSet{checkers: map[string]handlers.HealthChecker{}}

	if cfg.Database.Enabled {
		db, err := database.NewPostgresConnection(ctx, cfg.Database)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		stores.closers = append(stores.closers, db.Close)
		stores.checkers["database"] = db

		if cfg.MarketData.Source == config.SourcePostgres {
			repo := database.NewBarRepository(database.NewTracedPool(db.Pool, telemetry.GetDatabaseTracer()))
			if err := repo.EnsureSchema(ctx); err != nil {
				stores.Close()
				return nil, fmt.Errorf("failed to prepare bar schema: %w", err)
			}
			stores.source = repo
		}
	}

	if cfg.Redis.Enabled {
		rdb, err := database.NewRedisConnection(ctx, cfg.Redis)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		stores.closers = append(stores.closers, rdb.Close)
		stores.checkers["redis"] = rdb

		if cfg.MarketData.Source == config.SourceRedis {
			stores.source = rdb.BarStore()
		}
	}

	if stores.source == nil {
		logger.Warn("No market data source configured; only request-supplied bars can be analysed")
		return stores, nil
	}

	if bc := cfg.MarketData.Breaker; bc.Enabled {
		breaker := services.NewCircuitBreaker(stores.source.Name(), services.CircuitBreakerConfig{
			FailureThreshold: bc.FailureThreshold,
			SuccessThreshold: bc.SuccessThreshold,
			Timeout:          bc.OpenTimeout,
		}, logger)
		stores.source = services.WithCircuitBreaker(stores.source, breaker)
		stores.checkers["market_data"] = breaker
	}
	logger.WithField("source", stores.source.Name()).Info("Market data source ready")
	return stores, nil
}

// buildDependencies assembles the analysis services around source.
func buildDependencies(cfg *config.Config, source interfaces.BarSource, checkers map[string]handlers.HealthChecker, logger *logrus.Logger) (api.Dependencies, error) {
	guard := services.NewResourceGuard(cfg.Forecast.MaxConcurrentTraining, cfg.Forecast.MaxMemoryPercent, logger)
	predictions, err := services.NewPredictionService(cfg.Forecast, guard, logger)
	if err != nil {
		return api.Dependencies{}, fmt.Errorf("failed to create prediction service: %w", err)
	}
	logger.WithField("backend", predictions.SequenceBackend()).Info("Sequence forecaster ready")

	analysis := services.NewAnalysisService(
		services.NewTechnicalAnalysisService(cfg.Indicators, logger),
		services.NewSignalConsensusService(cfg.Signals, logger),
		predictions,
		source,
		cfg.MarketData.LookbackBars,
		logger,
	)

	return api.Dependencies{
		Analysis:       analysis,
		Checkers:       checkers,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ServiceName:    cfg.Telemetry.ServiceName,
		Version:        version,
		Logger:         logger,
	}, nil
}

func newHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func shutdownWithTimeout(logger *logrus.Logger, name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.WithError(err).Warnf("Failed to shut down %s", name)
	}
}
