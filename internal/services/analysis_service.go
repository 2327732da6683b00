package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/irfndi/stockcast/internal/metrics"
	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
	"github.com/irfndi/stockcast/pkg/interfaces"
)

// AnalysisRequest describes one analysis run over a bar series.
type AnalysisRequest struct {
	Symbol   string
	Strategy models.Strategy
	Series   models.BarSeries
	// ForecastModel is optional; empty skips the forecast path.
	ForecastModel models.ModelType
	Horizon       int
}

// AnalysisResult carries the indicator frame and, when the series is long enough, the consensus signal.
type AnalysisResult struct {
	Symbol   string
	Source   string
	Frame    *models.IndicatorFrame
	Snapshot *interfaces.MarketSnapshot
	Signals  *models.SignalResult
	Forecast *models.Forecast
}

// AnalysisService ties the indicator, consensus and forecast engines to a bar source.
type AnalysisService struct {
	indicators   *TechnicalAnalysisService
	consensus    *SignalConsensusService
	predictions  *PredictionService
	source       interfaces.BarSource
	lookbackBars int
	tracer       trace.Tracer
	logger       *logrus.Logger
}

// NewAnalysisService creates a new analysis service. source may be nil, in which case
// only inline series can be analysed.
func NewAnalysisService(
	indicators *TechnicalAnalysisService,
	consensus *SignalConsensusService,
	predictions *PredictionService,
	source interfaces.BarSource,
	lookbackBars int,
	logger *logrus.Logger,
) *AnalysisService {
	return &AnalysisService{
		indicators:   indicators,
		consensus:    consensus,
		predictions:  predictions,
		source:       source,
		lookbackBars: lookbackBars,
		tracer:       otel.Tracer(tracerName),
		logger:       logger,
	}
}

// Predictions exposes the prediction service used for forecasts.
func (as *AnalysisService) Predictions() *PredictionService {
	return as.predictions
}

// DefaultStrategy returns the strategy applied when a request names none.
func (as *AnalysisService) DefaultStrategy() models.Strategy {
	return as.consensus.DefaultStrategy()
}

// SourceName names the configured bar source, or "none".
func (as *AnalysisService) SourceName() string {
	if as.source == nil {
		return "none"
	}
	return as.source.Name()
}

// LoadSeries fetches the configured number of recent bars for symbol.
func (as *AnalysisService) LoadSeries(ctx context.Context, symbol string) (models.BarSeries, error) {
	if as.source == nil {
		return nil, utils.ErrSourceUnavailable
	}
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, utils.NewValidationError("symbol is required")
	}
	series, err := as.source.GetBars(ctx, symbol, as.lookbackBars)
	if err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// SaveBars stores bars through the configured source when it accepts writes.
func (as *AnalysisService) SaveBars(ctx context.Context, symbol string, series models.BarSeries) error {
	writer, ok := as.source.(interfaces.BarWriter)
	if !ok {
		return utils.ErrSourceUnavailable
	}
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return utils.NewValidationError("symbol is required")
	}
	if len(series) == 0 {
		return utils.NewValidationError("at least one bar is required")
	}
	if err := series.Validate(); err != nil {
		return err
	}
	if err := writer.SaveBars(ctx, symbol, series); err != nil {
		return err
	}
	as.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"bars":   len(series),
		"source": as.source.Name(),
	}).Info("Bars stored")
	return nil
}

// AnalyzeSymbol loads bars for symbol from the configured source and analyses them.
func (as *AnalysisService) AnalyzeSymbol(ctx context.Context, symbol string, strategy models.Strategy) (*AnalysisResult, error) {
	series, err := as.LoadSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	result, err := as.Analyze(ctx, AnalysisRequest{
		Symbol:   models.NormalizeSymbol(symbol),
		Strategy: strategy,
		Series:   series,
	})
	if err != nil {
		return nil, err
	}
	result.Source = as.source.Name()
	return result, nil
}

// PredictSymbol loads bars for symbol and forecasts horizon days with model.
func (as *AnalysisService) PredictSymbol(ctx context.Context, symbol string, model models.ModelType, horizon int) (*models.Forecast, error) {
	series, err := as.LoadSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return as.predictions.Predict(ctx, series, model, horizon)
}

// Analyze computes indicators and signals for req.Series. When a forecast model is set the
// forecast runs concurrently with the signal path; either failure fails the whole run.
// Series shorter than MinSignalRows yield a result with nil Signals.
func (as *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if err := req.Series.Validate(); err != nil {
		return nil, err
	}
	if req.Strategy == "" {
		req.Strategy = as.consensus.DefaultStrategy()
	}
	if req.ForecastModel != "" {
		horizon, err := as.predictions.ResolveHorizon(req.Horizon)
		if err != nil {
			return nil, err
		}
		req.Horizon = horizon
	}

	ctx, span := as.tracer.Start(ctx, "AnalysisService.Analyze", trace.WithAttributes(
		attribute.String("analysis.symbol", req.Symbol),
		attribute.String("analysis.strategy", string(req.Strategy)),
		attribute.Int("analysis.bars", len(req.Series)),
	))
	defer span.End()

	result := &AnalysisResult{Symbol: req.Symbol, Source: "request"}
	result.Snapshot, _ = interfaces.NewMarketSnapshot(req.Symbol, req.Series)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		frame, err := as.indicators.Compute(req.Series.Clone())
		if err != nil {
			return err
		}
		result.Frame = frame
		if frame.Len() < MinSignalRows {
			return nil
		}
		signals, err := as.consensus.Evaluate(frame, req.Strategy)
		if err != nil {
			return err
		}
		result.Signals = signals
		metrics.RecordSignal(string(signals.Signal), string(req.Strategy))
		return nil
	})
	if req.ForecastModel != "" {
		g.Go(func() error {
			forecast, err := as.predictions.Predict(gctx, req.Series, req.ForecastModel, req.Horizon)
			if err != nil {
				return err
			}
			result.Forecast = forecast
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		var validationErr *utils.ValidationError
		if !errors.As(err, &validationErr) && !errors.Is(err, utils.ErrInsufficientData) {
			as.logger.WithError(err).WithField("symbol", req.Symbol).Error("Analysis failed")
		}
		return nil, err
	}

	fields := logrus.Fields{"symbol": req.Symbol, "bars": len(req.Series)}
	if result.Signals != nil {
		fields["signal"] = result.Signals.Signal
		fields["score"] = result.Signals.Score
	}
	as.logger.WithFields(fields).Info("Analysis completed")
	return result, nil
}
