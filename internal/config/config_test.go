package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Data.Dir)
	assert.Equal(t, "comments.jsonl", cfg.Data.CommentsFile)
	assert.Equal(t, "extracted.jsonl", cfg.Data.ExtractedFile)
	assert.Equal(t, "by_bank.json", cfg.Data.SummaryFile)
	assert.Equal(t, "metadata.json", cfg.Data.MetadataFile)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 24906, cfg.Source.PostID)
	assert.Equal(t, "America/New_York", cfg.Source.Timezone)
	assert.Contains(t, cfg.Source.UserAgent, "Firefox")
	assert.Contains(t, cfg.Source.Endpoint, "admin-ajax.php")
	assert.Equal(t, 1, cfg.Source.MaxAttempts)
	assert.Zero(t, cfg.Source.MaxPages)
	assert.Zero(t, cfg.Source.Timeout())
	assert.InDelta(t, 2.0, cfg.Source.RatePerSec, 0.001)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 1, cfg.Anthropic.MaxAttempts)
	assert.True(t, cfg.Classify.IncludeKnown)
	assert.Zero(t, cfg.Classify.MatchThreshold)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/runs.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
storage:
  backend: gcs
  bucket: closures
log:
  level: debug
  format: console
source:
  max_pages: 3
  timeout_secs: 20
classify:
  match_threshold: 0.9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gcs", cfg.Storage.Backend)
	assert.Equal(t, "closures", cfg.Storage.Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Source.MaxPages)
	assert.Equal(t, 20.0, cfg.Source.Timeout().Seconds())
	assert.InDelta(t, 0.9, cfg.Classify.MatchThreshold, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, "comments.jsonl", cfg.Data.CommentsFile)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CLOSURES_STORE_DRIVER", "none")
	t.Setenv("CLOSURES_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CLOSURES_SERVER_PORT", "3000")
	t.Setenv("CLOSURES_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Data.Dir = "data"
	cfg.Storage.Backend = "local"
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "data/runs.db"
	cfg.Source.Endpoint = "https://example.com/wp-admin/admin-ajax.php"
	cfg.Source.PostURL = "https://example.com/post/"
	cfg.Source.PostID = 24906
	cfg.Source.Timezone = "America/New_York"
	cfg.Anthropic.Model = "claude-haiku-4-5-20251001"
	cfg.Anthropic.MaxTokens = 1024
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateScrape(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("scrape"))

	cfg.Source.PostID = 0
	cfg.Source.Timezone = "Mars/Olympus"
	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.post_id is required")
	assert.Contains(t, err.Error(), "source.timezone")
}

func TestValidateExtract_NeedsKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("extract")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("extract"))
	assert.NoError(t, cfg.Validate("update"))
}

func TestValidateSummarize_NoKeyNeeded(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("summarize"))
	assert.NoError(t, cfg.Validate("stats"))
}

func TestValidateGCSNeedsBucket(t *testing.T) {
	cfg := validDefaults()
	cfg.Storage.Backend = "gcs"

	err := cfg.Validate("summarize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.bucket is required")

	cfg.Storage.Bucket = "closures"
	assert.NoError(t, cfg.Validate("summarize"))
}

func TestValidateBadDrivers(t *testing.T) {
	cfg := validDefaults()
	cfg.Storage.Backend = "s3"
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("summarize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateStoreNone(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "none"
	cfg.Store.DatabaseURL = ""
	assert.NoError(t, cfg.Validate("summarize"))
}

func TestValidateMatchThreshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Classify.MatchThreshold = 1.5

	err := cfg.Validate("summarize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match_threshold")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestLoadPricingOverrides(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
pricing:
  anthropic:
    claude-haiku-4-5-20251001:
      input: 0.5
      output: 2.5
      cache_write_mul: 1.25
      cache_read_mul: 0.1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	require.Contains(t, cfg.Pricing.Anthropic, "claude-haiku-4-5-20251001")
	assert.InDelta(t, 2.5, cfg.Pricing.Anthropic["claude-haiku-4-5-20251001"].Output, 0.001)
}
