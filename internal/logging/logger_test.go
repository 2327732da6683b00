package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/sdk/log"
)

func TestParseLogrusLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"DEBUG", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"info", logrus.InfoLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogrusLevel(tt.input))
		})
	}
}

func TestNewLogger_Formatters(t *testing.T) {
	_, isText := NewLogger("info", "development").Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)

	_, isJSON := NewLogger("info", "production").Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)
}

func TestNewLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "production")

	logger.Info("dropped")
	LogAPIRequest(logger, "GET", "/api/v1/stock/AAPL", 503, 12, "req-1")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "API request", entry["msg"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, float64(503), entry["status"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestLogStartupAndShutdown(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "production")

	LogStartup(logger, "stockcast", "1.0.0", 8080)
	assert.Contains(t, buf.String(), `"event":"startup"`)
	assert.Contains(t, buf.String(), `"port":8080`)

	buf.Reset()
	LogShutdown(logger, "stockcast", "signal")
	assert.Contains(t, buf.String(), `"reason":"signal"`)
}

// recordingExporter keeps exported records in memory.
type recordingExporter struct {
	mu      sync.Mutex
	records []log.Record
}

func (e *recordingExporter) Export(_ context.Context, records []log.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func TestOTLPHook_ForwardsEntries(t *testing.T) {
	exporter := &recordingExporter{}
	provider := log.NewLoggerProvider(log.WithProcessor(log.NewSimpleProcessor(exporter)))
	hook := newOTLPHook(provider, "stockcast-test")

	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "production")
	logger.AddHook(hook)

	logger.WithFields(logrus.Fields{"symbol": "AAPL", "bars": 80}).
		WithError(errors.New("boom")).
		Warn("Analysis failed")

	require.Len(t, exporter.records, 1)
	record := exporter.records[0]
	assert.Equal(t, "Analysis failed", record.Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, record.Severity())
	assert.Equal(t, "warning", record.SeverityText())

	attrs := map[string]string{}
	record.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	assert.Equal(t, "AAPL", attrs["symbol"])
	assert.Equal(t, "80", attrs["bars"])
	assert.Equal(t, "boom", attrs["error"])

	assert.NoError(t, hook.Shutdown(context.Background()))
}

func TestLogrusSeverity(t *testing.T) {
	assert.Equal(t, otellog.SeverityDebug, logrusSeverity(logrus.DebugLevel))
	assert.Equal(t, otellog.SeverityInfo, logrusSeverity(logrus.InfoLevel))
	assert.Equal(t, otellog.SeverityError, logrusSeverity(logrus.ErrorLevel))
	assert.Equal(t, otellog.SeverityFatal, logrusSeverity(logrus.PanicLevel))
}
