package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	BinanceConfig     BinanceConfig     `json:"binance"`
	Instruments       []Instrument      `json:"instruments"`
	ScannerConfig     ScannerConfig     `json:"scanner"`
	AnalysisConfig    AnalysisConfig    `json:"analysis"`
	LiquidationConfig LiquidationConfig `json:"liquidations"`
	ServerConfig      ServerConfig      `json:"server"`
	RedisConfig       RedisConfig       `json:"redis"`
	LoggingConfig     LoggingConfig     `json:"logging"`
}

// Instrument is one market to scan. Name is the display label used in
// reports, Symbol is the exchange symbol.
type Instrument struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// BinanceConfig holds the public market-data endpoints. No API keys: the
// scanner only reads public data and places no orders.
type BinanceConfig struct {
	BaseURL        string `json:"base_url"`
	FuturesBaseURL string `json:"futures_base_url"`
	FuturesWSURL   string `json:"futures_ws_url"`
	TimeoutSecs    int    `json:"timeout_secs"`
}

type ScannerConfig struct {
	ScanIntervalSecs int  `json:"scan_interval_secs"` // Seconds between scan cycles
	WorkerCount      int  `json:"worker_count"`       // Concurrent instrument workers
	RunOnce          bool `json:"run_once"`           // Single scan then exit (external cron)
	UseDerivatives   bool `json:"use_derivatives"`    // Query futures positioning endpoints
	UseLiquidations  bool `json:"use_liquidations"`   // Subscribe to the liquidation stream
}

// AnalysisConfig holds the per-instrument analysis knobs. Zero values fall
// back to the strategy package defaults.
type AnalysisConfig struct {
	GapThresholdPct      float64 `json:"gap_threshold_pct"`      // Minimum gap size, percent
	GapLookbackDays      int     `json:"gap_lookback_days"`      // Recent-gap window
	HistoricLookbackDays int     `json:"historic_lookback_days"` // Gap inventory window
	PenalizeContrary     bool    `json:"penalize_contrary"`      // Subtract points for opposing indicators
}

type LiquidationConfig struct {
	RetentionMins       int     `json:"retention_mins"`        // How long events stay in memory
	ClusterTolerancePct float64 `json:"cluster_tolerance_pct"` // Price bucket width for clustering
	GapTolerancePct     float64 `json:"gap_tolerance_pct"`     // Event-to-gap distance for confluence
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Enabled        bool   `json:"enabled"`
	Port           int    `json:"port"`
	Host           string `json:"host"`
	AllowedOrigins string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout    int    `json:"read_timeout"`    // Seconds
	WriteTimeout   int    `json:"write_timeout"`   // Seconds
}

// RedisConfig holds Redis configuration for the kline cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	TTLSecs  int    `json:"ttl_secs"` // Base TTL for cached klines
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // Console writer instead of JSON
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.FuturesBaseURL = getEnvOrDefault("BINANCE_FUTURES_BASE_URL", cfg.BinanceConfig.FuturesBaseURL)
	cfg.BinanceConfig.FuturesWSURL = getEnvOrDefault("BINANCE_FUTURES_WS_URL", cfg.BinanceConfig.FuturesWSURL)

	cfg.ScannerConfig.ScanIntervalSecs = getEnvIntOrDefault("SCANNER_INTERVAL_SECS", cfg.ScannerConfig.ScanIntervalSecs)
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKERS", cfg.ScannerConfig.WorkerCount)
	if v := os.Getenv("SCANNER_RUN_ONCE"); v != "" {
		cfg.ScannerConfig.RunOnce = v == "true"
	}
	if v := os.Getenv("SCANNER_USE_DERIVATIVES"); v != "" {
		cfg.ScannerConfig.UseDerivatives = v == "true"
	}
	if v := os.Getenv("SCANNER_USE_LIQUIDATIONS"); v != "" {
		cfg.ScannerConfig.UseLiquidations = v == "true"
	}

	if v := os.Getenv("SERVER_ENABLED"); v != "" {
		cfg.ServerConfig.Enabled = v == "true"
	}
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.LoggingConfig.Pretty = v == "true"
	}
}

// applyDefaults fills in anything the file and environment left empty.
func applyDefaults(cfg *Config) {
	if cfg.BinanceConfig.BaseURL == "" {
		cfg.BinanceConfig.BaseURL = "https://api.binance.com"
	}
	if cfg.BinanceConfig.FuturesBaseURL == "" {
		cfg.BinanceConfig.FuturesBaseURL = "https://fapi.binance.com"
	}
	if cfg.BinanceConfig.FuturesWSURL == "" {
		cfg.BinanceConfig.FuturesWSURL = "wss://fstream.binance.com/ws/!forceOrder@arr"
	}
	if cfg.BinanceConfig.TimeoutSecs <= 0 {
		cfg.BinanceConfig.TimeoutSecs = 15
	}

	if len(cfg.Instruments) == 0 {
		cfg.Instruments = []Instrument{
			{Name: "BTC", Symbol: "BTCUSDT"},
			{Name: "ETH", Symbol: "ETHUSDT"},
			{Name: "SOL", Symbol: "SOLUSDT"},
			{Name: "BNB", Symbol: "BNBUSDT"},
			{Name: "XRP", Symbol: "XRPUSDT"},
		}
	}

	if cfg.ScannerConfig.ScanIntervalSecs <= 0 {
		cfg.ScannerConfig.ScanIntervalSecs = 300
	}
	if cfg.ScannerConfig.WorkerCount <= 0 {
		cfg.ScannerConfig.WorkerCount = 4
	}

	if cfg.AnalysisConfig.GapThresholdPct <= 0 {
		cfg.AnalysisConfig.GapThresholdPct = 0.3
	}
	if cfg.AnalysisConfig.GapLookbackDays <= 0 {
		cfg.AnalysisConfig.GapLookbackDays = 7
	}
	if cfg.AnalysisConfig.HistoricLookbackDays <= 0 {
		cfg.AnalysisConfig.HistoricLookbackDays = 120
	}

	if cfg.LiquidationConfig.RetentionMins <= 0 {
		cfg.LiquidationConfig.RetentionMins = 30
	}
	if cfg.LiquidationConfig.ClusterTolerancePct <= 0 {
		cfg.LiquidationConfig.ClusterTolerancePct = 0.5
	}
	if cfg.LiquidationConfig.GapTolerancePct <= 0 {
		cfg.LiquidationConfig.GapTolerancePct = 0.4
	}

	if cfg.ServerConfig.Port <= 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.ServerConfig.ReadTimeout <= 0 {
		cfg.ServerConfig.ReadTimeout = 30
	}
	if cfg.ServerConfig.WriteTimeout <= 0 {
		cfg.ServerConfig.WriteTimeout = 30
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize <= 0 {
		cfg.RedisConfig.PoolSize = 10
	}
	if cfg.RedisConfig.TTLSecs <= 0 {
		cfg.RedisConfig.TTLSecs = 240
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
}

// Timeout returns the HTTP client timeout for market-data requests.
func (b BinanceConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}

// ScanInterval returns the delay between scheduled scan cycles.
func (s ScannerConfig) ScanInterval() time.Duration {
	return time.Duration(s.ScanIntervalSecs) * time.Second
}

// Retention returns how long liquidation events are kept in memory.
func (l LiquidationConfig) Retention() time.Duration {
	return time.Duration(l.RetentionMins) * time.Minute
}

// KlineTTL returns the base cache TTL for klines.
func (r RedisConfig) KlineTTL() time.Duration {
	return time.Duration(r.TTLSecs) * time.Second
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		BinanceConfig: BinanceConfig{
			BaseURL:        "https://api.binance.com",
			FuturesBaseURL: "https://fapi.binance.com",
			FuturesWSURL:   "wss://fstream.binance.com/ws/!forceOrder@arr",
			TimeoutSecs:    15,
		},
		Instruments: []Instrument{
			{Name: "BTC", Symbol: "BTCUSDT"},
			{Name: "ETH", Symbol: "ETHUSDT"},
			{Name: "SOL", Symbol: "SOLUSDT"},
		},
		ScannerConfig: ScannerConfig{
			ScanIntervalSecs: 300,
			WorkerCount:      4,
			UseDerivatives:   true,
			UseLiquidations:  true,
		},
		AnalysisConfig: AnalysisConfig{
			GapThresholdPct:      0.3,
			GapLookbackDays:      7,
			HistoricLookbackDays: 120,
			PenalizeContrary:     true,
		},
		LiquidationConfig: LiquidationConfig{
			RetentionMins:       30,
			ClusterTolerancePct: 0.5,
			GapTolerancePct:     0.4,
		},
		ServerConfig: ServerConfig{
			Enabled:        true,
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: "*",
			ReadTimeout:    30,
			WriteTimeout:   30,
		},
		RedisConfig: RedisConfig{
			Enabled:  false,
			Address:  "localhost:6379",
			PoolSize: 10,
			TTLSecs:  240,
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
