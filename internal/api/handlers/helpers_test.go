package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/stockcast/internal/config"
	"github.com/irfndi/stockcast/internal/middleware"
	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/services"
	"github.com/irfndi/stockcast/pkg/interfaces"
)

const testLookbackBars = 365

var seriesStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		LookBack:              5,
		Horizon:               7,
		MaxHorizon:            30,
		TrainRatio:            0.8,
		Seed:                  42,
		MaxConcurrentTraining: 1,
		MaxMemoryPercent:      90,
		LSTM:                  config.LSTMConfig{Enabled: false},
		MLP: config.MLPConfig{
			HiddenLayers:  []int{8},
			MaxIter:       20,
			BatchSize:     16,
			LearningRate:  0.01,
			Alpha:         0.0001,
			Tol:           0.0001,
			NIterNoChange: 5,
		},
	}
}

func testSignalsConfig() config.SignalsConfig {
	return config.SignalsConfig{
		DefaultStrategy: "day_trading",
		Scalping: config.ScalpingConfig{
			StopDistance:    4.0,
			TargetDistance:  7.5,
			NeutralDistance: 4.0,
		},
		DayTrading: config.DayTradingConfig{
			SupportATRMultiple: 2.0,
			StopATRMultiple:    1.5,
			MinRiskATRMultiple: 0.5,
			RewardRatio:        2.0,
			NeutralATRMultiple: 1.0,
		},
	}
}

// newTestAnalysisService wires the real services around source with memory pinned at percent.
func newTestAnalysisService(t *testing.T, source interfaces.BarSource, percent float64) *services.AnalysisService {
	t.Helper()
	logger := quietLogger()
	cfg := testForecastConfig()
	guard := services.NewResourceGuard(cfg.MaxConcurrentTraining, cfg.MaxMemoryPercent, logger).
		WithMemoryProbe(func(context.Context) (float64, error) { return percent, nil })
	predictions, err := services.NewPredictionService(cfg, guard, logger)
	require.NoError(t, err)

	return services.NewAnalysisService(
		services.NewTechnicalAnalysisService(models.DefaultIndicatorWindows(), logger),
		services.NewSignalConsensusService(testSignalsConfig(), logger),
		predictions,
		source,
		testLookbackBars,
		logger,
	)
}

// risingSeries builds closes start, start+1, ... with a 2.0 high-low range.
func risingSeries(count int, start float64) models.BarSeries {
	series := make(models.BarSeries, count)
	for i := 0; i < count; i++ {
		c := start + float64(i)
		series[i] = models.Bar{
			Date:   seriesStart.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return series
}

func risingBars(count int, start float64) []BarDTO {
	series := risingSeries(count, start)
	bars := make([]BarDTO, len(series))
	for i, b := range series {
		bars[i] = BarDTO{
			Date:   b.Date.Format(models.DateLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return bars
}

func newTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	return router
}

func performRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}
