package forecast

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
)

const secondsPerDay = 24 * 60 * 60

// minTrendTrainingBars is the smallest training slice a line can be fitted to.
const minTrendTrainingBars = 2

// TrendForecaster fits an ordinary least squares line of close on calendar day.
// The chronologically last share of bars (1 - trainRatio) is held out for error metrics only.
type TrendForecaster struct {
	trainRatio float64
}

// NewTrendForecaster creates a trend forecaster. Ratios outside (0, 1) fall back to 0.8.
func NewTrendForecaster(trainRatio float64) *TrendForecaster {
	if trainRatio <= 0 || trainRatio >= 1 {
		trainRatio = 0.8
	}
	return &TrendForecaster{trainRatio: trainRatio}
}

// Name implements Forecaster.
func (f *TrendForecaster) Name() models.ModelType {
	return models.ModelLinear
}

// Train implements Forecaster.
func (f *TrendForecaster) Train(series models.BarSeries) (Model, error) {
	n := len(series)
	nTrain := f.trainSize(n)
	if nTrain < minTrendTrainingBars {
		return nil, utils.NewInsufficientDataError("trend forecaster", f.minBars(), n)
	}

	xs := make([]float64, n)
	ys := series.Closes()
	for i, bar := range series {
		xs[i] = dayOrdinal(bar.Date)
	}

	slope, intercept, err := fitLine(xs[:nTrain], ys[:nTrain])
	if err != nil {
		return nil, utils.NewComputationError("trend fit", err)
	}

	m := &trendModel{
		slope:     slope,
		intercept: intercept,
		lastDate:  series[n-1].Date,
	}
	if nTest := n - nTrain; nTest > 0 {
		m.holdout = holdoutMetrics(xs[nTrain:], ys[nTrain:], m.at)
	}
	return m, nil
}

// trainSize keeps ceil((1-ratio)·n) bars for the holdout.
func (f *TrendForecaster) trainSize(n int) int {
	nTest := int(math.Ceil((1-f.trainRatio)*float64(n) - 1e-9))
	return n - nTest
}

// minBars is the shortest series that leaves minTrendTrainingBars after the split.
func (f *TrendForecaster) minBars() int {
	n := minTrendTrainingBars
	for f.trainSize(n) < minTrendTrainingBars {
		n++
	}
	return n
}

type trendModel struct {
	slope     float64
	intercept float64
	lastDate  time.Time
	holdout   *models.HoldoutMetrics
}

func (m *trendModel) at(ordinal float64) float64 {
	return m.intercept + m.slope*ordinal
}

// Forecast evaluates the line at each of the horizon days after the last bar.
func (m *trendModel) Forecast(horizon int) (*models.Forecast, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	points := make([]models.ForecastPoint, 0, horizon)
	for _, date := range models.FutureDates(m.lastDate, horizon) {
		points = append(points, models.ForecastPoint{Date: date, Price: m.at(dayOrdinal(date))})
	}

	var holdout *models.HoldoutMetrics
	if m.holdout != nil {
		h := *m.holdout
		holdout = &h
	}
	return &models.Forecast{
		Model:   models.ModelLinear,
		Backend: "ols",
		Points:  points,
		Holdout: holdout,
	}, nil
}

// dayOrdinal counts whole days since the Unix epoch.
func dayOrdinal(t time.Time) float64 {
	return float64(models.TruncateDate(t).Unix() / secondsPerDay)
}

// fitLine solves ordinary least squares of ys on xs.
func fitLine(xs, ys []float64) (slope, intercept float64, err error) {
	if floats.Min(xs) == floats.Max(xs) {
		return 0, 0, errors.New("training dates are not distinct")
	}
	intercept, slope = stat.LinearRegression(xs, ys, nil, false)
	return slope, intercept, nil
}

func holdoutMetrics(xs, ys []float64, predict func(float64) float64) *models.HoldoutMetrics {
	predicted := make([]float64, len(xs))
	for i, x := range xs {
		predicted[i] = predict(x)
	}
	n := float64(len(xs))
	return &models.HoldoutMetrics{
		Samples: len(xs),
		MAE:     floats.Distance(predicted, ys, 1) / n,
		RMSE:    floats.Distance(predicted, ys, 2) / math.Sqrt(n),
	}
}
