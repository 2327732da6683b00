package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/stockcast/internal/models"
)

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		DBName:   "stockcast",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=stockcast sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://user:pass@db/stockcast"
	assert.Equal(t, "postgres://user:pass@db/stockcast", cfg.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}

func TestLoad_WithDefaults(t *testing.T) {
	// Clear any existing environment variables that might interfere
	os.Clearenv()

	config, err := Load()
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, config.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.False(t, config.Database.Enabled)
	assert.Equal(t, "stockcast", config.Database.DBName)
	assert.Equal(t, "stockcast:bars:", config.Redis.KeyPrefix)
	assert.Equal(t, SourceNone, config.MarketData.Source)
	assert.Equal(t, models.DefaultIndicatorWindows(), config.Indicators)

	assert.Equal(t, "day_trading", config.Signals.DefaultStrategy)
	assert.Equal(t, 4.0, config.Signals.Scalping.StopDistance)
	assert.Equal(t, 7.5, config.Signals.Scalping.TargetDistance)
	assert.Equal(t, 4.0, config.Signals.Scalping.NeutralDistance)
	assert.Equal(t, 2.0, config.Signals.DayTrading.SupportATRMultiple)
	assert.Equal(t, 1.5, config.Signals.DayTrading.StopATRMultiple)
	assert.Equal(t, 0.5, config.Signals.DayTrading.MinRiskATRMultiple)
	assert.Equal(t, 2.0, config.Signals.DayTrading.RewardRatio)

	assert.Equal(t, 60, config.Forecast.LookBack)
	assert.Equal(t, 7, config.Forecast.Horizon)
	assert.Equal(t, int64(42), config.Forecast.Seed)
	assert.Equal(t, int64(1), config.Forecast.MaxConcurrentTraining)
	assert.Equal(t, []int{100, 50}, config.Forecast.MLP.HiddenLayers)
	assert.Equal(t, 50, config.Forecast.LSTM.Units)
	assert.Equal(t, 25, config.Forecast.LSTM.DenseUnits)
	assert.False(t, config.Telemetry.Enabled)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "prod-redis.example.com")
	t.Setenv("MARKET_DATA_SOURCE", "redis")
	t.Setenv("SIGNALS_SCALPING_STOP_DISTANCE", "3.5")
	t.Setenv("FORECAST_SEED", "7")
	t.Setenv("FORECAST_MAX_CONCURRENT_TRAINING", "2")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "error", config.LogLevel)
	assert.Equal(t, 9000, config.Server.Port)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "prod-redis.example.com", config.Redis.Host)
	assert.Equal(t, SourceRedis, config.MarketData.Source)
	assert.Equal(t, 3.5, config.Signals.Scalping.StopDistance)
	assert.Equal(t, int64(7), config.Forecast.Seed)
	assert.Equal(t, int64(2), config.Forecast.MaxConcurrentTraining)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres source without database", map[string]string{"MARKET_DATA_SOURCE": "postgres"}},
		{"unknown source", map[string]string{"MARKET_DATA_SOURCE": "ftp"}},
		{"horizon beyond max", map[string]string{"FORECAST_HORIZON": "40"}},
		{"bad strategy", map[string]string{"SIGNALS_DEFAULT_STRATEGY": "swing"}},
		{"bad train ratio", map[string]string{"FORECAST_TRAIN_RATIO": "1.5"}},
		{"bad port", map[string]string{"SERVER_PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			config, err := Load()
			assert.Error(t, err)
			assert.Nil(t, config)
		})
	}
}
