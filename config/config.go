package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type ProbeConfig struct {
	Timeout      string `mapstructure:"timeout"`
	MaxRetries   int    `mapstructure:"max_retries"`
	RetryBackoff string `mapstructure:"retry_backoff"`
	Concurrency  int    `mapstructure:"concurrency"`
	PoolSize     int    `mapstructure:"pool_size"`
}

type CacheConfig struct {
	TTL string `mapstructure:"ttl"`
}

type ScoringConfig struct {
	FastThresholdMillis float64 `mapstructure:"fast_threshold_ms"`
	SlowThresholdMillis float64 `mapstructure:"slow_threshold_ms"`
	MidPenaltyPerMilli  float64 `mapstructure:"mid_penalty_per_ms"`
	SlowPenaltyPerMilli float64 `mapstructure:"slow_penalty_per_ms"`
	MaxScore            float64 `mapstructure:"max_score"`
	MinScore            float64 `mapstructure:"min_score"`
}

type UpstreamConfig struct {
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
	Weight int    `mapstructure:"weight"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Probe     ProbeConfig      `mapstructure:"probe"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Scoring   ScoringConfig    `mapstructure:"scoring"`
	Upstreams []UpstreamConfig `mapstructure:"upstreams"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":10000")
	viper.SetDefault("probe.timeout", "3s")
	viper.SetDefault("probe.max_retries", 2)
	viper.SetDefault("probe.retry_backoff", "300ms")
	viper.SetDefault("probe.concurrency", 10)
	viper.SetDefault("probe.pool_size", 20)
	viper.SetDefault("cache.ttl", "10s")
	viper.SetDefault("scoring.fast_threshold_ms", 100.0)
	viper.SetDefault("scoring.slow_threshold_ms", 500.0)
	viper.SetDefault("scoring.mid_penalty_per_ms", 0.2)
	viper.SetDefault("scoring.slow_penalty_per_ms", 0.1)
	viper.SetDefault("scoring.max_score", 100.0)
	viper.SetDefault("scoring.min_score", 1.0)
	viper.SetDefault("metrics.buffer_size", 1000)
	viper.SetDefault("logging.level", LogLevelInfo)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Probe,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(ProbeConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ProbeConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.Timeout,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&pc.RetryBackoff,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
					validation.Field(&pc.MaxRetries,
						validation.Min(0),
					),
					validation.Field(&pc.Concurrency,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&pc.PoolSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Cache,
			validation.Required,
			validation.By(func(value interface{}) error {
				cc, ok := value.(CacheConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CacheConfig")
				}
				return validation.ValidateStruct(&cc,
					validation.Field(&cc.TTL,
						validation.Required,
						validation.By(validatePositiveDuration),
					),
				)
			}),
		),
		validation.Field(&c.Scoring,
			validation.Required,
			validation.By(validateScoringConfig),
		),
		validation.Field(&c.Upstreams,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateUpstreamConfig)),
			validation.By(validateUniqueUpstreams),
		),
		validation.Field(&c.Metrics,
			validation.Required,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validatePositiveDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 300ms, 3s, 1m)")
	}

	if d <= 0 {
		return validation.NewError("validation_nonpositive_duration", "must be a positive duration")
	}

	return nil
}

func validateScoringConfig(value interface{}) error {
	sc, ok := value.(ScoringConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ScoringConfig")
	}

	if sc.FastThresholdMillis <= 0 {
		return validation.NewError("validation_invalid_threshold", "fast_threshold_ms must be positive")
	}
	if sc.SlowThresholdMillis <= sc.FastThresholdMillis {
		return validation.NewError("validation_invalid_threshold", "slow_threshold_ms must be greater than fast_threshold_ms")
	}
	if sc.MidPenaltyPerMilli <= 0 || sc.SlowPenaltyPerMilli <= 0 {
		return validation.NewError("validation_invalid_penalty", "penalties must be positive")
	}
	if sc.MinScore < 0 {
		return validation.NewError("validation_invalid_score", "min_score must not be negative")
	}
	if sc.MaxScore <= sc.MinScore {
		return validation.NewError("validation_invalid_score", "max_score must be greater than min_score")
	}

	return nil
}

func validateUpstreamConfig(value interface{}) error {
	upstream, ok := value.(UpstreamConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an UpstreamConfig")
	}

	if strings.TrimSpace(upstream.Name) == "" {
		return validation.NewError("validation_empty_name", "upstream name cannot be empty")
	}

	if upstream.URL == "" {
		return validation.NewError("validation_empty_url", "upstream URL cannot be empty")
	}

	parsedURL, err := url.Parse(upstream.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if upstream.Weight < 1 {
		return validation.NewError("validation_invalid_weight", "weight must be at least 1")
	}

	return nil
}

func validateUniqueUpstreams(value interface{}) error {
	upstreams, ok := value.([]UpstreamConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a list of upstreams")
	}

	names := make(map[string]bool, len(upstreams))
	urls := make(map[string]bool, len(upstreams))

	for _, upstream := range upstreams {
		name := strings.TrimSpace(upstream.Name)
		if names[name] {
			return validation.NewError("validation_duplicate_name",
				fmt.Sprintf("duplicate upstream name %q", name))
		}
		names[name] = true

		normalized := strings.TrimRight(upstream.URL, "/")
		if urls[normalized] {
			return validation.NewError("validation_duplicate_url",
				fmt.Sprintf("duplicate upstream url %q", upstream.URL))
		}
		urls[normalized] = true
	}

	return nil
}
