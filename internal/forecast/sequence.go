package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
)

// DefaultLookBack is the default window length of the sequence model.
const DefaultLookBack = 60

// SequenceForecaster fits a regressor from a window of scaled closes to the next close
// and forecasts by feeding its own predictions back in.
type SequenceForecaster struct {
	lookBack int
	seed     int64
	backend  Backend
	logger   *logrus.Logger
}

// NewSequenceForecaster picks the first available backend from preference.
func NewSequenceForecaster(lookBack int, seed int64, preference []Backend, logger *logrus.Logger) (*SequenceForecaster, error) {
	if lookBack < 1 {
		lookBack = DefaultLookBack
	}
	backend, err := SelectBackend(preference)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"backend":   backend.Name(),
			"look_back": lookBack,
		}).Info("Sequence forecaster backend selected")
	}
	return &SequenceForecaster{
		lookBack: lookBack,
		seed:     seed,
		backend:  backend,
		logger:   logger,
	}, nil
}

// Name implements Forecaster.
func (f *SequenceForecaster) Name() models.ModelType {
	return models.ModelSequence
}

// Backend returns the name of the selected backend.
func (f *SequenceForecaster) Backend() string {
	return f.backend.Name()
}

// MinBars is the shortest series Train accepts.
func (f *SequenceForecaster) MinBars() int {
	return f.lookBack + 1
}

// Train implements Forecaster.
func (f *SequenceForecaster) Train(series models.BarSeries) (Model, error) {
	if len(series) < f.MinBars() {
		return nil, utils.NewInsufficientDataError("sequence forecaster", f.MinBars(), len(series))
	}

	closes := series.Closes()
	scaler := FitMinMaxScaler(closes)
	scaled := scaler.TransformAll(closes)
	x, y := slidingWindows(scaled, f.lookBack)

	start := time.Now()
	reg := f.backend.New(f.seed)
	if err := reg.Fit(x, y); err != nil {
		return nil, utils.NewComputationError(f.backend.Name()+" fit", err)
	}
	if f.logger != nil {
		f.logger.WithFields(logrus.Fields{
			"backend":  f.backend.Name(),
			"samples":  len(x),
			"duration": time.Since(start).String(),
		}).Debug("Sequence model trained")
	}

	seed := make([]float64, f.lookBack)
	copy(seed, scaled[len(scaled)-f.lookBack:])
	return &sequenceModel{
		regressor: reg,
		scaler:    scaler,
		window:    seed,
		lastDate:  series[len(series)-1].Date,
		backend:   f.backend.Name(),
	}, nil
}

// slidingWindows pairs every run of lookBack values with the value that follows it.
func slidingWindows(values []float64, lookBack int) ([][]float64, []float64) {
	count := len(values) - lookBack
	x := make([][]float64, count)
	y := make([]float64, count)
	for i := 0; i < count; i++ {
		x[i] = values[i : i+lookBack]
		y[i] = values[i+lookBack]
	}
	return x, y
}

type sequenceModel struct {
	regressor Regressor
	scaler    MinMaxScaler
	window    []float64
	lastDate  time.Time
	backend   string
}

// Forecast predicts one step at a time. Each prediction is clamped to [0, 1]
// before it joins the window, then all of them are mapped back to prices.
// A non-finite prediction fails the forecast.
func (m *sequenceModel) Forecast(horizon int) (*models.Forecast, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}

	lookBack := len(m.window)
	buf := make([]float64, lookBack, lookBack+horizon)
	copy(buf, m.window)

	dates := models.FutureDates(m.lastDate, horizon)
	points := make([]models.ForecastPoint, horizon)
	for i := 0; i < horizon; i++ {
		pred, err := m.regressor.Predict(buf[len(buf)-lookBack:])
		if err != nil {
			return nil, utils.NewComputationError(m.backend+" predict", err)
		}
		if math.IsNaN(pred) || math.IsInf(pred, 0) {
			return nil, utils.NewComputationError(m.backend+" predict",
				fmt.Errorf("step %d produced a non-finite value", i+1))
		}
		pred = clamp01(pred)
		buf = append(buf, pred)
		points[i] = models.ForecastPoint{Date: dates[i], Price: m.scaler.Inverse(pred)}
	}

	return &models.Forecast{
		Model:   models.ModelSequence,
		Backend: m.backend,
		Points:  points,
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
