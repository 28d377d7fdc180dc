// Package config loads and validates process-wide configuration. It follows
// the load-once pattern: configuration is read at startup from an optional
// YAML file plus environment overrides and is immutable afterwards.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Database DatabaseConfig `mapstructure:"database"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Cycle    CycleConfig    `mapstructure:"cycle"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AuthConfig contains the shared secret for internal HTTP auth
type AuthConfig struct {
	InternalAPIKey string `mapstructure:"internal_api_key"`
}

// AgentsConfig contains the base URL per collaborator
type AgentsConfig struct {
	RiskURL      string `mapstructure:"risk_url"`
	TechnicalURL string `mapstructure:"technical_url"`
	MacroURL     string `mapstructure:"macro_url"`
	SentimentURL string `mapstructure:"sentiment_url"`
	AdvisorURL   string `mapstructure:"advisor_url"`
	SizerURL     string `mapstructure:"sizer_url"`
}

// TimeoutsConfig contains per-stage call timeouts
type TimeoutsConfig struct {
	Default  time.Duration `mapstructure:"default"`  // analyzer calls
	Decision time.Duration `mapstructure:"decision"` // advisor + sizer stage
	Exchange time.Duration `mapstructure:"exchange"` // exchange calls
}

// CycleDeadline bounds one full cycle: fan-out, decision and execution
func (t TimeoutsConfig) CycleDeadline() time.Duration {
	return t.Default + t.Decision + t.Exchange
}

// ExchangeConfig contains exchange credentials and mode
type ExchangeConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	APISecret      string  `mapstructure:"api_secret"`
	Testnet        bool    `mapstructure:"testnet"`
	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
}

// DatabaseConfig contains the receipt store connection settings
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size"`
}

// NotifierConfig contains the out-of-band notification settings
type NotifierConfig struct {
	TelegramToken string  `mapstructure:"telegram_token"`
	ChatIDs       []int64 `mapstructure:"chat_ids"`
	QueueSize     int     `mapstructure:"queue_size"`
}

// CycleConfig contains decision-cycle tuning
type CycleConfig struct {
	Warmup              int   `mapstructure:"warmup"`
	MaxConcurrentCycles int64 `mapstructure:"max_concurrent_cycles"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SAKA")

	setDefaults(v)
	bindEnvAliases(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindEnvAliases maps the flat, historically-named environment variables to
// their structured keys, so deployments keep working without the SAKA_ prefix.
func bindEnvAliases(v *viper.Viper) {
	_ = v.BindEnv("auth.internal_api_key", "SAKA_AUTH_INTERNAL_API_KEY", "INTERNAL_API_KEY")
	_ = v.BindEnv("agents.risk_url", "SAKA_AGENTS_RISK_URL", "RISK_URL")
	_ = v.BindEnv("agents.technical_url", "SAKA_AGENTS_TECHNICAL_URL", "TECHNICAL_URL")
	_ = v.BindEnv("agents.macro_url", "SAKA_AGENTS_MACRO_URL", "MACRO_URL")
	_ = v.BindEnv("agents.sentiment_url", "SAKA_AGENTS_SENTIMENT_URL", "SENTIMENT_URL")
	_ = v.BindEnv("agents.advisor_url", "SAKA_AGENTS_ADVISOR_URL", "ADVISOR_URL")
	_ = v.BindEnv("agents.sizer_url", "SAKA_AGENTS_SIZER_URL", "SIZER_URL")
	_ = v.BindEnv("timeouts.default", "SAKA_TIMEOUTS_DEFAULT", "DEFAULT_TIMEOUT")
	_ = v.BindEnv("timeouts.decision", "SAKA_TIMEOUTS_DECISION", "DECISION_TIMEOUT")
	_ = v.BindEnv("exchange.api_key", "SAKA_EXCHANGE_API_KEY", "EXCHANGE_API_KEY")
	_ = v.BindEnv("exchange.api_secret", "SAKA_EXCHANGE_API_SECRET", "EXCHANGE_API_SECRET")
	_ = v.BindEnv("exchange.testnet", "SAKA_EXCHANGE_TESTNET", "EXCHANGE_TESTNET")
	_ = v.BindEnv("database.url", "SAKA_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("notifier.telegram_token", "SAKA_NOTIFIER_TELEGRAM_TOKEN", "NOTIFIER_TELEGRAM_TOKEN")
	_ = v.BindEnv("app.log_level", "SAKA_APP_LOG_LEVEL", "LOG_LEVEL")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "saka")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("timeouts.default", 20*time.Second)
	v.SetDefault("timeouts.decision", 30*time.Second)
	v.SetDefault("timeouts.exchange", 10*time.Second)

	v.SetDefault("exchange.testnet", true)
	v.SetDefault("exchange.requests_per_sec", 10.0)

	v.SetDefault("database.pool_size", 10)

	v.SetDefault("notifier.queue_size", 64)

	v.SetDefault("cycle.warmup", 30)
	v.SetDefault("cycle.max_concurrent_cycles", 16)
}
