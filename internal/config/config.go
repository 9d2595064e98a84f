package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the metrics result cache.
type CacheConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLSecs  int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// MetricsConfig configures the metrics engine.
type MetricsConfig struct {
	FetchTimeoutMs         int               `yaml:"fetch_timeout_ms" mapstructure:"fetch_timeout_ms"`
	EfficiencyWindowDays   int               `yaml:"efficiency_window_days" mapstructure:"efficiency_window_days"`
	ProductivityWindowDays int               `yaml:"productivity_window_days" mapstructure:"productivity_window_days"`
	FeedbackLimit          int               `yaml:"feedback_limit" mapstructure:"feedback_limit"`
	Efficiency             EfficiencyWeights `yaml:"efficiency" mapstructure:"efficiency"`
	Workflow               WorkflowWeights   `yaml:"workflow" mapstructure:"workflow"`
}

// EfficiencyWeights holds the efficiency score blend.
type EfficiencyWeights struct {
	CompletionWeight  float64 `yaml:"completion_weight" mapstructure:"completion_weight"`
	DurationWeight    float64 `yaml:"duration_weight" mapstructure:"duration_weight"`
	PenaltyPerDayLate float64 `yaml:"penalty_per_day_late" mapstructure:"penalty_per_day_late"`
}

// WorkflowWeights holds the point allocation of the workflow completeness score.
type WorkflowWeights struct {
	Baseline       float64 `yaml:"baseline" mapstructure:"baseline"`
	RequiredFields float64 `yaml:"required_fields" mapstructure:"required_fields"`
	Certifications float64 `yaml:"certifications" mapstructure:"certifications"`
	Avatar         float64 `yaml:"avatar" mapstructure:"avatar"`
}

// ResilienceConfig configures retries and circuit breaking around store reads.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	CORSOrigins    []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
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
	v.SetEnvPrefix("PRACTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl_secs", 60)
	v.SetDefault("metrics.fetch_timeout_ms", 3000)
	v.SetDefault("metrics.efficiency_window_days", 30)
	v.SetDefault("metrics.productivity_window_days", 7)
	v.SetDefault("metrics.feedback_limit", 10)
	v.SetDefault("metrics.efficiency.completion_weight", 0.7)
	v.SetDefault("metrics.efficiency.duration_weight", 0.3)
	v.SetDefault("metrics.efficiency.penalty_per_day_late", 10)
	v.SetDefault("metrics.workflow.baseline", 30)
	v.SetDefault("metrics.workflow.required_fields", 40)
	v.SetDefault("metrics.workflow.certifications", 15)
	v.SetDefault("metrics.workflow.avatar", 15)
	v.SetDefault("resilience.max_attempts", 2)
	v.SetDefault("resilience.initial_backoff_ms", 100)
	v.SetDefault("resilience.max_backoff_ms", 1000)
	v.SetDefault("resilience.multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 50)
	v.SetDefault("server.rate_limit_burst", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command depends on.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres (PRACTICE_STORE_DATABASE_URL)")
		}
	case "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}

	switch c.Cache.Driver {
	case "memory", "none", "":
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, "cache.redis_url is required for redis (PRACTICE_CACHE_REDIS_URL)")
		}
	default:
		errs = append(errs, "cache.driver must be memory, redis or none")
	}

	if c.Metrics.FetchTimeoutMs <= 0 {
		errs = append(errs, "metrics.fetch_timeout_ms must be > 0")
	}
	if c.Metrics.FeedbackLimit <= 0 {
		errs = append(errs, "metrics.feedback_limit must be > 0")
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
