package models

import (
	"fmt"
	"strings"
	"time"
)

// ModelType names a forecasting strategy.
type ModelType string

const (
	ModelLinear   ModelType = "linear"
	ModelSequence ModelType = "lstm"
)

// ParseModelType accepts "linear", "trend", "lstm" and "sequence". Empty means linear.
func ParseModelType(value string) (ModelType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "linear", "trend":
		return ModelLinear, nil
	case "lstm", "sequence":
		return ModelSequence, nil
	default:
		return "", fmt.Errorf("unknown model %q", value)
	}
}

// ForecastPoint is one predicted close.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// HoldoutMetrics are errors measured on the chronological holdout slice.
type HoldoutMetrics struct {
	Samples int     `json:"samples"`
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
}

// Forecast is an ordered run of predicted closes.
type Forecast struct {
	Model   ModelType       `json:"model"`
	Backend string          `json:"backend"`
	Points  []ForecastPoint `json:"predictions"`
	Holdout *HoldoutMetrics `json:"holdout,omitempty"`
}

// FutureDates returns horizon consecutive calendar days following last.
func FutureDates(last time.Time, horizon int) []time.Time {
	dates := make([]time.Time, horizon)
	base := TruncateDate(last)
	for i := 0; i < horizon; i++ {
		dates[i] = base.AddDate(0, 0, i+1)
	}
	return dates
}
