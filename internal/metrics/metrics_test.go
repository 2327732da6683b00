package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSignal(t *testing.T) {
	before := testutil.ToFloat64(signals.WithLabelValues("BUY", "day_trading"))
	RecordSignal("BUY", "day_trading")
	RecordSignal("BUY", "day_trading")

	assert.Equal(t, before+2, testutil.ToFloat64(signals.WithLabelValues("BUY", "day_trading")))
}

func TestRecordTrainingRejection(t *testing.T) {
	before := testutil.ToFloat64(trainingRejections.WithLabelValues("memory"))
	RecordTrainingRejection("memory")

	assert.Equal(t, before+1, testutil.ToFloat64(trainingRejections.WithLabelValues("memory")))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "200"))
	RecordHTTPRequest("GET", "/health", "200", 15*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "200")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RecordForecast("linear", "ols", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stockcast_forecast_duration_seconds")
}
