package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/irfndi/stockcast/internal/models"
)

type Config struct {
	Environment string                  `mapstructure:"environment"`
	LogLevel    string                  `mapstructure:"log_level"`
	Server      ServerConfig            `mapstructure:"server"`
	Database    DatabaseConfig          `mapstructure:"database"`
	Redis       RedisConfig             `mapstructure:"redis"`
	MarketData  MarketDataConfig        `mapstructure:"market_data"`
	Indicators  models.IndicatorWindows `mapstructure:"indicators"`
	Signals     SignalsConfig           `mapstructure:"signals"`
	Forecast    ForecastConfig          `mapstructure:"forecast"`
	Telemetry   TelemetryConfig         `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password" json:"-" yaml:"-"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	DatabaseURL string `mapstructure:"database_url" json:"-" yaml:"-"`
	MaxConns    int    `mapstructure:"max_conns"`
}

// DSN returns DatabaseURL when set, otherwise a keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password" json:"-" yaml:"-"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Bar sources understood by market_data.source.
const (
	SourceNone     = "none"
	SourcePostgres = "postgres"
	SourceRedis    = "redis"
)

type MarketDataConfig struct {
	Source       string        `mapstructure:"source"`
	LookbackBars int           `mapstructure:"lookback_bars"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig guards reads and writes against a failing bar store.
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

type SignalsConfig struct {
	DefaultStrategy string           `mapstructure:"default_strategy"`
	Scalping        ScalpingConfig   `mapstructure:"scalping"`
	DayTrading      DayTradingConfig `mapstructure:"day_trading"`
}

// ScalpingConfig holds the fixed price distances of the XAU scalping rules.
type ScalpingConfig struct {
	StopDistance    float64 `mapstructure:"stop_distance"`
	TargetDistance  float64 `mapstructure:"target_distance"`
	NeutralDistance float64 `mapstructure:"neutral_distance"`
}

// DayTradingConfig holds the ATR multiples of the day-trading rules.
type DayTradingConfig struct {
	SupportATRMultiple float64 `mapstructure:"support_atr_multiple"`
	StopATRMultiple    float64 `mapstructure:"stop_atr_multiple"`
	MinRiskATRMultiple float64 `mapstructure:"min_risk_atr_multiple"`
	RewardRatio        float64 `mapstructure:"reward_ratio"`
	NeutralATRMultiple float64 `mapstructure:"neutral_atr_multiple"`
}

type ForecastConfig struct {
	LookBack              int        `mapstructure:"look_back"`
	Horizon               int        `mapstructure:"horizon"`
	MaxHorizon            int        `mapstructure:"max_horizon"`
	TrainRatio            float64    `mapstructure:"train_ratio"`
	Seed                  int64      `mapstructure:"seed"`
	MaxConcurrentTraining int64      `mapstructure:"max_concurrent_training"`
	MaxMemoryPercent      float64    `mapstructure:"max_memory_percent"`
	LSTM                  LSTMConfig `mapstructure:"lstm"`
	MLP                   MLPConfig  `mapstructure:"mlp"`
}

type LSTMConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	MinCPUs      int     `mapstructure:"min_cpus"`
	Units        int     `mapstructure:"units"`
	DenseUnits   int     `mapstructure:"dense_units"`
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
}

type MLPConfig struct {
	HiddenLayers  []int   `mapstructure:"hidden_layers"`
	MaxIter       int     `mapstructure:"max_iter"`
	BatchSize     int     `mapstructure:"batch_size"`
	LearningRate  float64 `mapstructure:"learning_rate"`
	Alpha         float64 `mapstructure:"alpha"`
	Tol           float64 `mapstructure:"tol"`
	NIterNoChange int     `mapstructure:"n_iter_no_change"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	Exporter     string  `mapstructure:"exporter"`
	Endpoint     string  `mapstructure:"endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	LogsEnabled  bool    `mapstructure:"logs_enabled"`
	LogsEndpoint string  `mapstructure:"logs_endpoint"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set default values
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize for consistent comparison
	config.Environment = strings.ToLower(config.Environment)
	config.MarketData.Source = strings.ToLower(config.MarketData.Source)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.MarketData.Source {
	case SourceNone:
	case SourcePostgres:
		if !c.Database.Enabled {
			return errors.New("market_data.source is postgres but database is not enabled")
		}
	case SourceRedis:
		if !c.Redis.Enabled {
			return errors.New("market_data.source is redis but redis is not enabled")
		}
	default:
		return fmt.Errorf("unknown market_data.source %q", c.MarketData.Source)
	}
	if c.MarketData.LookbackBars <= 0 {
		return fmt.Errorf("market_data.lookback_bars must be positive, got %d", c.MarketData.LookbackBars)
	}

	w := c.Indicators
	for name, period := range map[string]int{
		"sma_short": w.SMAShort, "sma_long": w.SMALong, "rsi": w.RSI,
		"ema_fast": w.EMAFast, "ema_slow": w.EMASlow, "macd_fast": w.MACDFast,
		"macd_slow": w.MACDSlow, "macd_signal": w.MACDSignal, "bollinger_window": w.BollingerWindow,
		"atr": w.ATR, "support_resistance": w.SupportResistance,
	} {
		if period <= 0 {
			return fmt.Errorf("indicators.%s must be positive, got %d", name, period)
		}
	}

	if _, err := models.ParseStrategy(c.Signals.DefaultStrategy, models.StrategyDayTrading); err != nil {
		return fmt.Errorf("signals.default_strategy: %w", err)
	}

	f := c.Forecast
	if f.LookBack <= 0 {
		return fmt.Errorf("forecast.look_back must be positive, got %d", f.LookBack)
	}
	if f.MaxHorizon <= 0 || f.Horizon <= 0 || f.Horizon > f.MaxHorizon {
		return fmt.Errorf("forecast.horizon must be between 1 and %d, got %d", f.MaxHorizon, f.Horizon)
	}
	if f.TrainRatio <= 0 || f.TrainRatio >= 1 {
		return fmt.Errorf("forecast.train_ratio must be in (0, 1), got %v", f.TrainRatio)
	}
	if f.MaxConcurrentTraining < 1 {
		return fmt.Errorf("forecast.max_concurrent_training must be at least 1, got %d", f.MaxConcurrentTraining)
	}
	if f.MaxMemoryPercent <= 0 || f.MaxMemoryPercent > 100 {
		return fmt.Errorf("forecast.max_memory_percent must be in (0, 100], got %v", f.MaxMemoryPercent)
	}
	if len(f.MLP.HiddenLayers) == 0 {
		return errors.New("forecast.mlp.hidden_layers must not be empty")
	}

	if c.Telemetry.Enabled && c.Telemetry.Exporter != "stdout" && c.Telemetry.Exporter != "otlp" {
		return fmt.Errorf("telemetry.exporter must be stdout or otlp, got %q", c.Telemetry.Exporter)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")

	// Set database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "stockcast")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_conns", 10)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "stockcast:bars:")

	// Market Data
	v.SetDefault("market_data.source", SourceNone)
	v.SetDefault("market_data.lookback_bars", 365)
	v.SetDefault("market_data.breaker.enabled", true)
	v.SetDefault("market_data.breaker.failure_threshold", 5)
	v.SetDefault("market_data.breaker.success_threshold", 1)
	v.SetDefault("market_data.breaker.open_timeout", "30s")

	// Indicators
	windows := models.DefaultIndicatorWindows()
	v.SetDefault("indicators.sma_short", windows.SMAShort)
	v.SetDefault("indicators.sma_long", windows.SMALong)
	v.SetDefault("indicators.rsi", windows.RSI)
	v.SetDefault("indicators.ema_fast", windows.EMAFast)
	v.SetDefault("indicators.ema_slow", windows.EMASlow)
	v.SetDefault("indicators.macd_fast", windows.MACDFast)
	v.SetDefault("indicators.macd_slow", windows.MACDSlow)
	v.SetDefault("indicators.macd_signal", windows.MACDSignal)
	v.SetDefault("indicators.bollinger_window", windows.BollingerWindow)
	v.SetDefault("indicators.bollinger_std_dev", windows.BollingerStdDev)
	v.SetDefault("indicators.atr", windows.ATR)
	v.SetDefault("indicators.support_resistance", windows.SupportResistance)

	// Signals
	v.SetDefault("signals.default_strategy", string(models.StrategyDayTrading))
	v.SetDefault("signals.scalping.stop_distance", 4.0)
	v.SetDefault("signals.scalping.target_distance", 7.5)
	v.SetDefault("signals.scalping.neutral_distance", 4.0)
	v.SetDefault("signals.day_trading.support_atr_multiple", 2.0)
	v.SetDefault("signals.day_trading.stop_atr_multiple", 1.5)
	v.SetDefault("signals.day_trading.min_risk_atr_multiple", 0.5)
	v.SetDefault("signals.day_trading.reward_ratio", 2.0)
	v.SetDefault("signals.day_trading.neutral_atr_multiple", 1.0)

	// Forecast
	v.SetDefault("forecast.look_back", 60)
	v.SetDefault("forecast.horizon", 7)
	v.SetDefault("forecast.max_horizon", 30)
	v.SetDefault("forecast.train_ratio", 0.8)
	v.SetDefault("forecast.seed", 42)
	v.SetDefault("forecast.max_concurrent_training", 1)
	v.SetDefault("forecast.max_memory_percent", 90.0)
	v.SetDefault("forecast.lstm.enabled", true)
	v.SetDefault("forecast.lstm.min_cpus", 2)
	v.SetDefault("forecast.lstm.units", 50)
	v.SetDefault("forecast.lstm.dense_units", 25)
	v.SetDefault("forecast.lstm.epochs", 5)
	v.SetDefault("forecast.lstm.batch_size", 32)
	v.SetDefault("forecast.lstm.learning_rate", 0.001)
	v.SetDefault("forecast.mlp.hidden_layers", []int{100, 50})
	v.SetDefault("forecast.mlp.max_iter", 200)
	v.SetDefault("forecast.mlp.batch_size", 200)
	v.SetDefault("forecast.mlp.learning_rate", 0.001)
	v.SetDefault("forecast.mlp.alpha", 0.0001)
	v.SetDefault("forecast.mlp.tol", 0.0001)
	v.SetDefault("forecast.mlp.n_iter_no_change", 10)

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "stockcast")
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.logs_enabled", false)
	v.SetDefault("telemetry.logs_endpoint", "localhost:4318")
}
