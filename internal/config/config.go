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
	CourtListener CourtListenerConfig `yaml:"courtlistener" mapstructure:"courtlistener"`
	ECFR          ECFRConfig          `yaml:"ecfr" mapstructure:"ecfr"`
	Fetch         FetchConfig         `yaml:"fetch" mapstructure:"fetch"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" mapstructure:"rate_limit"`
	Pipeline      PipelineConfig      `yaml:"pipeline" mapstructure:"pipeline"`
	Sources       SourcesConfig       `yaml:"sources" mapstructure:"sources"`
	Store         StoreConfig         `yaml:"store" mapstructure:"store"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
}

// CourtListenerConfig holds CourtListener API settings.
type CourtListenerConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ECFRConfig holds eCFR search API settings.
type ECFRConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FetchConfig configures the official-document fetcher.
type FetchConfig struct {
	MinIntervalMillis int `yaml:"min_interval_millis" mapstructure:"min_interval_millis"`
	TimeoutSecs       int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig configures the query result cache.
type CacheConfig struct {
	ResultTTLHours   int `yaml:"result_ttl_hours" mapstructure:"result_ttl_hours"`
	CaseLawTTLHours  int `yaml:"case_law_ttl_hours" mapstructure:"case_law_ttl_hours"`
	MaxEntries       int `yaml:"max_entries" mapstructure:"max_entries"`
	SweepIntervalMin int `yaml:"sweep_interval_min" mapstructure:"sweep_interval_min"`
}

// RateLimitConfig configures per-user query limits.
type RateLimitConfig struct {
	FastPerHour int `yaml:"fast_per_hour" mapstructure:"fast_per_hour"`
	DeepPerHour int `yaml:"deep_per_hour" mapstructure:"deep_per_hour"`
}

// PipelineConfig configures aggregated query execution.
type PipelineConfig struct {
	SourceTimeoutSecs    int     `yaml:"source_timeout_secs" mapstructure:"source_timeout_secs"`
	MaxConcurrentFetches int     `yaml:"max_concurrent_fetches" mapstructure:"max_concurrent_fetches"`
	SimilarityThreshold  float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	DuplicateWindow      int     `yaml:"duplicate_window" mapstructure:"duplicate_window"`
}

// SourcesConfig points at the official-source routing table.
type SourcesConfig struct {
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
}

// StoreConfig configures the query-history database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SourceTimeout returns the per-source timeout as a duration.
func (p PipelineConfig) SourceTimeout() time.Duration {
	return time.Duration(p.SourceTimeoutSecs) * time.Second
}

// MinInterval returns the fetcher's minimum inter-request interval.
func (f FetchConfig) MinInterval() time.Duration {
	return time.Duration(f.MinIntervalMillis) * time.Millisecond
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEGALRESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("courtlistener.base_url", "https://www.courtlistener.com/api/rest/v4")
	v.SetDefault("ecfr.base_url", "https://www.ecfr.gov/api/search/v1")
	v.SetDefault("fetch.min_interval_millis", 1500)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("cache.result_ttl_hours", 24)
	v.SetDefault("cache.case_law_ttl_hours", 6)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.sweep_interval_min", 10)
	v.SetDefault("rate_limit.fast_per_hour", 60)
	v.SetDefault("rate_limit.deep_per_hour", 10)
	v.SetDefault("pipeline.source_timeout_secs", 20)
	v.SetDefault("pipeline.max_concurrent_fetches", 4)
	v.SetDefault("pipeline.similarity_threshold", 0.6)
	v.SetDefault("pipeline.duplicate_window", 200)
	v.SetDefault("store.path", "legalresearch.db")

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

// Validate checks configuration invariants before the pipeline starts.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Fetch.MinIntervalMillis < 0 {
		problems = append(problems, "fetch.min_interval_millis must be >= 0")
	}
	if c.RateLimit.FastPerHour < 1 || c.RateLimit.DeepPerHour < 1 {
		problems = append(problems, "rate_limit limits must be >= 1")
	}
	if c.Pipeline.SimilarityThreshold < 0 || c.Pipeline.SimilarityThreshold > 1 {
		problems = append(problems, "pipeline.similarity_threshold must be between 0 and 1")
	}
	if c.Pipeline.MaxConcurrentFetches < 1 || c.Pipeline.MaxConcurrentFetches > 32 {
		problems = append(problems, "pipeline.max_concurrent_fetches must be between 1 and 32")
	}
	if c.Cache.MaxEntries < 1 {
		problems = append(problems, "cache.max_entries must be >= 1")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
