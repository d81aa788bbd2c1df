// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	HTTP      HTTPConfig       `yaml:"http" mapstructure:"http"`
	Suppliers []SupplierConfig `yaml:"suppliers" mapstructure:"suppliers"`
	Enhance   EnhanceConfig    `yaml:"enhance" mapstructure:"enhance"`
	Pipeline  PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the catalog backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// HTTPConfig configures the shared resilient HTTP client.
type HTTPConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	JitterFraction    float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	RateLimitPerHost  float64 `yaml:"rate_limit_per_host" mapstructure:"rate_limit_per_host"`
	BreakerThreshold  int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	CorrelationPrefix string  `yaml:"correlation_prefix" mapstructure:"correlation_prefix"`
}

// SupplierConfig configures one supplier backend. Order in the list is
// merge priority, highest first.
type SupplierConfig struct {
	Name         string `yaml:"name" mapstructure:"name"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	APIKey       string `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLMins int    `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
}

// EnhanceConfig configures the AI enhancement step.
type EnhanceConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	MaxConcurrentItems int `yaml:"max_concurrent_items" mapstructure:"max_concurrent_items"`
	NormalizeTimeoutS  int `yaml:"normalize_timeout_secs" mapstructure:"normalize_timeout_secs"`
	SupplierTimeoutS   int `yaml:"supplier_timeout_secs" mapstructure:"supplier_timeout_secs"`
	EnhanceTimeoutS    int `yaml:"enhance_timeout_secs" mapstructure:"enhance_timeout_secs"`
	StorageTimeoutS    int `yaml:"storage_timeout_secs" mapstructure:"storage_timeout_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BOMENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "bom-enrich.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.initial_backoff_ms", 1500)
	v.SetDefault("http.max_backoff_ms", 30000)
	v.SetDefault("http.backoff_multiplier", 2.0)
	v.SetDefault("http.jitter_fraction", 0.2)
	v.SetDefault("http.rate_limit_per_host", 20)
	v.SetDefault("http.breaker_threshold", 5)
	v.SetDefault("http.breaker_reset_secs", 30)
	v.SetDefault("http.correlation_prefix", "enrich")
	v.SetDefault("enhance.enabled", true)
	v.SetDefault("enhance.model", "claude-haiku-4-5-20251001")
	v.SetDefault("enhance.max_tokens", 1024)
	v.SetDefault("pipeline.max_concurrent_items", 4)
	v.SetDefault("pipeline.normalize_timeout_secs", 5)
	v.SetDefault("pipeline.supplier_timeout_secs", 45)
	v.SetDefault("pipeline.enhance_timeout_secs", 60)
	v.SetDefault("pipeline.storage_timeout_secs", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// StepTimeouts converts the pipeline timeout settings to durations.
func (c PipelineConfig) StepTimeouts() (normalize, supplier, enhance, storage time.Duration) {
	return time.Duration(c.NormalizeTimeoutS) * time.Second,
		time.Duration(c.SupplierTimeoutS) * time.Second,
		time.Duration(c.EnhanceTimeoutS) * time.Second,
		time.Duration(c.StorageTimeoutS) * time.Second
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
