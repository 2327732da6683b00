// Package forecast trains short-horizon close-price models on a bar series.
//
// Every call to Train fits a fresh model; nothing is cached between calls and a
// trained Model only reads its own fields, so models may be used from any goroutine.
package forecast

import (
	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
)

// Forecaster fits a Model to a bar series.
type Forecaster interface {
	Name() models.ModelType
	Train(series models.BarSeries) (Model, error)
}

// Model produces forecasts for the days after the last trained bar.
type Model interface {
	Forecast(horizon int) (*models.Forecast, error)
}

// Regressor maps a window of scaled closes to the next scaled close.
type Regressor interface {
	Fit(x [][]float64, y []float64) error
	Predict(window []float64) (float64, error)
}

// Backend builds regressors for the sequence forecaster.
type Backend interface {
	Name() string
	// Available reports whether the backend can run in this process.
	Available() bool
	New(seed int64) Regressor
}

// SelectBackend returns the first available backend in preference order.
func SelectBackend(preference []Backend) (Backend, error) {
	for _, b := range preference {
		if b != nil && b.Available() {
			return b, nil
		}
	}
	return nil, utils.NewValidationError("no forecasting backend available")
}

func checkHorizon(horizon int) error {
	if horizon < 1 {
		return utils.NewValidationErrorf("horizon must be at least 1, got %d", horizon)
	}
	return nil
}

func checkTrainingSet(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return utils.NewValidationError("training set is empty")
	}
	if len(x) != len(y) {
		return utils.NewValidationErrorf("training set has %d inputs and %d targets", len(x), len(y))
	}
	width := len(x[0])
	for _, row := range x {
		if len(row) != width {
			return utils.NewValidationError("training inputs have uneven widths")
		}
	}
	return nil
}
