package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/stockcast/internal/config"
	"github.com/irfndi/stockcast/internal/forecast"
	"github.com/irfndi/stockcast/internal/metrics"
	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
)

const tracerName = "github.com/irfndi/stockcast/internal/services"

// PredictionService trains a fresh forecaster per request.
// Sequence training is admitted through the ResourceGuard; the trend fit is cheap and is not.
type PredictionService struct {
	config   config.ForecastConfig
	trend    *forecast.TrendForecaster
	sequence *forecast.SequenceForecaster
	guard    *ResourceGuard
	tracer   trace.Tracer
	logger   *logrus.Logger
}

// LSTMOptions maps the lstm config section onto backend options.
func LSTMOptions(cfg config.LSTMConfig) forecast.LSTMOptions {
	return forecast.LSTMOptions{
		Enabled:      cfg.Enabled,
		MinCPUs:      cfg.MinCPUs,
		Units:        cfg.Units,
		DenseUnits:   cfg.DenseUnits,
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
	}
}

// MLPOptions maps the mlp config section onto backend options.
func MLPOptions(cfg config.MLPConfig) forecast.MLPOptions {
	return forecast.MLPOptions{
		HiddenLayers:  cfg.HiddenLayers,
		MaxIter:       cfg.MaxIter,
		BatchSize:     cfg.BatchSize,
		LearningRate:  cfg.LearningRate,
		Alpha:         cfg.Alpha,
		Tol:           cfg.Tol,
		NIterNoChange: cfg.NIterNoChange,
	}
}

// NewPredictionService creates a new prediction service. The sequence backend is
// chosen here, LSTM first and MLP as the fallback.
func NewPredictionService(cfg config.ForecastConfig, guard *ResourceGuard, logger *logrus.Logger) (*PredictionService, error) {
	backends := []forecast.Backend{
		forecast.NewLSTMBackend(LSTMOptions(cfg.LSTM)),
		forecast.NewMLPBackend(MLPOptions(cfg.MLP)),
	}
	sequence, err := forecast.NewSequenceForecaster(cfg.LookBack, cfg.Seed, backends, logger)
	if err != nil {
		return nil, err
	}
	if guard == nil {
		guard = NewResourceGuard(cfg.MaxConcurrentTraining, cfg.MaxMemoryPercent, logger)
	}
	return &PredictionService{
		config:   cfg,
		trend:    forecast.NewTrendForecaster(cfg.TrainRatio),
		sequence: sequence,
		guard:    guard,
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
	}, nil
}

// SequenceBackend names the backend the sequence forecaster runs on.
func (ps *PredictionService) SequenceBackend() string {
	return ps.sequence.Backend()
}

// Guard returns the training admission guard.
func (ps *PredictionService) Guard() *ResourceGuard {
	return ps.guard
}

// ResolveHorizon applies the default horizon and enforces the configured maximum.
func (ps *PredictionService) ResolveHorizon(horizon int) (int, error) {
	if horizon == 0 {
		horizon = ps.config.Horizon
	}
	if horizon < 1 || horizon > ps.config.MaxHorizon {
		return 0, utils.NewValidationErrorf("horizon must be between 1 and %d, got %d", ps.config.MaxHorizon, horizon)
	}
	return horizon, nil
}

func (ps *PredictionService) forecaster(model models.ModelType) (forecast.Forecaster, error) {
	switch model {
	case models.ModelLinear, "":
		return ps.trend, nil
	case models.ModelSequence:
		return ps.sequence, nil
	default:
		return nil, utils.NewValidationErrorf("unknown model %q", model)
	}
}

// Predict trains the requested model on series and forecasts horizon days.
func (ps *PredictionService) Predict(ctx context.Context, series models.BarSeries, model models.ModelType, horizon int) (*models.Forecast, error) {
	horizon, err := ps.ResolveHorizon(horizon)
	if err != nil {
		return nil, err
	}
	f, err := ps.forecaster(model)
	if err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	ctx, span := ps.tracer.Start(ctx, "PredictionService.Predict", trace.WithAttributes(
		attribute.String("forecast.model", string(f.Name())),
		attribute.Int("forecast.horizon", horizon),
		attribute.Int("forecast.bars", len(series)),
	))
	defer span.End()

	if f.Name() == models.ModelSequence {
		release, err := ps.guard.Acquire(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "training not admitted")
			return nil, err
		}
		defer release()
	}

	start := time.Now()
	trained, err := f.Train(series.Clone())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "training failed")
		return nil, err
	}
	result, err := trained.Forecast(horizon)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forecast failed")
		return nil, err
	}
	elapsed := time.Since(start)

	metrics.RecordForecast(string(result.Model), result.Backend, elapsed)
	span.SetAttributes(attribute.String("forecast.backend", result.Backend))
	ps.logger.WithFields(logrus.Fields{
		"model":    result.Model,
		"backend":  result.Backend,
		"horizon":  horizon,
		"bars":     len(series),
		"duration": elapsed.String(),
	}).Info("Forecast completed")

	return result, nil
}
