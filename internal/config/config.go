package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Meta       MetaConfig       `yaml:"meta" mapstructure:"meta"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Budget     BudgetConfig     `yaml:"budget" mapstructure:"budget"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// AnthropicConfig holds settings for the creative content generator.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// MetaConfig holds ads-platform Graph API settings used for interest lookup.
type MetaConfig struct {
	AccessToken       string  `yaml:"access_token" mapstructure:"access_token"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	APIVersion        string  `yaml:"api_version" mapstructure:"api_version"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	SearchLimit       int     `yaml:"search_limit" mapstructure:"search_limit"`
}

// PipelineConfig configures job execution.
type PipelineConfig struct {
	JobTimeoutSecs   int      `yaml:"job_timeout_secs" mapstructure:"job_timeout_secs"`
	TickIntervalSecs int      `yaml:"tick_interval_secs" mapstructure:"tick_interval_secs"`
	DefaultCountries []string `yaml:"default_countries" mapstructure:"default_countries"`
	MaxConcurrency   int      `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// JobTimeout returns the hard wall-clock budget for one job.
func (p PipelineConfig) JobTimeout() time.Duration {
	if p.JobTimeoutSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.JobTimeoutSecs) * time.Second
}

// TickInterval returns the interim progress cadence.
func (p PipelineConfig) TickInterval() time.Duration {
	if p.TickIntervalSecs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(p.TickIntervalSecs) * time.Second
}

// BudgetConfig overrides the optimizer's built-in floors and caps.
type BudgetConfig struct {
	MinDailyFloor    float64 `yaml:"min_daily_floor" mapstructure:"min_daily_floor"`
	SmallAudienceCap float64 `yaml:"small_audience_cap" mapstructure:"small_audience_cap"`
}

// ResilienceConfig tunes retries and circuit breaking for external calls.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PricingConfig holds per-model generator pricing.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures job health checks and alert delivery.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	CostThresholdUSD      float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
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
	v.SetEnvPrefix("CAMPAIGN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "campaigns.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("meta.base_url", "https://graph.facebook.com")
	v.SetDefault("meta.api_version", "v21.0")
	v.SetDefault("meta.requests_per_second", 5.0)
	v.SetDefault("meta.search_limit", 5)
	v.SetDefault("pipeline.job_timeout_secs", 300)
	v.SetDefault("pipeline.tick_interval_secs", 3)
	v.SetDefault("pipeline.default_countries", []string{"US"})
	v.SetDefault("pipeline.max_concurrency", 4)
	v.SetDefault("budget.min_daily_floor", 10.0)
	v.SetDefault("budget.small_audience_cap", 50.0)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 10000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.5)

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

// Validate checks that the keys required by a command are present and in range.
// Modes: "serve", "generate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
			errs = append(errs, "monitoring.webhook_url is required when monitoring is enabled")
		}
	case "generate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Anthropic.Key != "" && c.Anthropic.Model == "" {
		errs = append(errs, "anthropic.model is required when anthropic.key is set")
	}
	if c.Pipeline.JobTimeoutSecs <= 0 {
		errs = append(errs, "pipeline.job_timeout_secs must be > 0")
	}
	if c.Pipeline.MaxConcurrency < 1 || c.Pipeline.MaxConcurrency > 32 {
		errs = append(errs, "pipeline.max_concurrency must be between 1 and 32")
	}
	if c.Budget.MinDailyFloor < 0 || c.Budget.SmallAudienceCap < 0 {
		errs = append(errs, "budget floors and caps must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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
