package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://www.courtlistener.com/api/rest/v4", cfg.CourtListener.BaseURL)
	assert.Equal(t, "https://www.ecfr.gov/api/search/v1", cfg.ECFR.BaseURL)
	assert.Equal(t, 1500, cfg.Fetch.MinIntervalMillis)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 24, cfg.Cache.ResultTTLHours)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 60, cfg.RateLimit.FastPerHour)
	assert.Equal(t, 10, cfg.RateLimit.DeepPerHour)
	assert.Equal(t, 20, cfg.Pipeline.SourceTimeoutSecs)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrentFetches)
	assert.InDelta(t, 0.6, cfg.Pipeline.SimilarityThreshold, 0.001)
	assert.Equal(t, "legalresearch.db", cfg.Store.Path)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
rate_limit:
  deep_per_hour: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.RateLimit.DeepPerHour)
	// Defaults still apply for unset values
	assert.Equal(t, 60, cfg.RateLimit.FastPerHour)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LEGALRESEARCH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("LEGALRESEARCH_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestDurationHelpers(t *testing.T) {
	f := FetchConfig{MinIntervalMillis: 1500}
	assert.Equal(t, "1.5s", f.MinInterval().String())

	p := PipelineConfig{SourceTimeoutSecs: 20}
	assert.Equal(t, "20s", p.SourceTimeout().String())
}

func validDefaults() *Config {
	return &Config{
		Server:    ServerConfig{Port: 8080},
		RateLimit: RateLimitConfig{FastPerHour: 60, DeepPerHour: 10},
		Pipeline:  PipelineConfig{SimilarityThreshold: 0.6, MaxConcurrentFetches: 4},
		Cache:     CacheConfig{MaxEntries: 1000},
	}
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_RateLimitBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.RateLimit.DeepPerHour = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit")
}

func TestValidate_SimilarityThreshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Pipeline.SimilarityThreshold = 1.5

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
}

func TestValidate_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.MaxConcurrentFetches = 0
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_fetches must be between 1 and 32")

	cfg.Pipeline.MaxConcurrentFetches = 33
	err = cfg.Validate()
	assert.Error(t, err)

	cfg.Pipeline.MaxConcurrentFetches = 32
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "rate_limit")
	assert.Contains(t, err.Error(), "cache.max_entries")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
