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
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig names the data files relative to the storage root.
type DataConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	CommentsFile  string `yaml:"comments_file" mapstructure:"comments_file"`
	ExtractedFile string `yaml:"extracted_file" mapstructure:"extracted_file"`
	SummaryFile   string `yaml:"summary_file" mapstructure:"summary_file"`
	MetadataFile  string `yaml:"metadata_file" mapstructure:"metadata_file"`
}

// StorageConfig selects where the data files live.
type StorageConfig struct {
	Backend         string `yaml:"backend" mapstructure:"backend"` // local or gcs
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix" mapstructure:"prefix"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// SourceConfig configures the comment endpoint.
type SourceConfig struct {
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	PostURL     string  `yaml:"post_url" mapstructure:"post_url"`
	PostID      int     `yaml:"post_id" mapstructure:"post_id"`
	Timezone    string  `yaml:"timezone" mapstructure:"timezone"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	MaxPages    int     `yaml:"max_pages" mapstructure:"max_pages"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ClassifyConfig configures the bank vocabulary.
type ClassifyConfig struct {
	VocabularyFile string  `yaml:"vocabulary_file" mapstructure:"vocabulary_file"`
	MatchThreshold float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
	IncludeKnown   bool    `yaml:"include_known" mapstructure:"include_known"`
}

// PricingConfig overrides per-model token pricing.
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

// StoreConfig configures the run ledger.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or none
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CLOSURES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.comments_file", "comments.jsonl")
	v.SetDefault("data.extracted_file", "extracted.jsonl")
	v.SetDefault("data.summary_file", "by_bank.json")
	v.SetDefault("data.metadata_file", "metadata.json")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("source.endpoint", "https://www.doctorofcredit.com/wp-admin/admin-ajax.php")
	v.SetDefault("source.post_url", "https://www.doctorofcredit.com/complete-list-of-ways-to-close-bank-accounts-at-each-bank/")
	v.SetDefault("source.post_id", 24906)
	v.SetDefault("source.timezone", "America/New_York")
	v.SetDefault("source.user_agent", defaultUserAgent)
	v.SetDefault("source.timeout_secs", 0)
	v.SetDefault("source.rate_per_sec", 2)
	v.SetDefault("source.max_attempts", 1)
	v.SetDefault("source.max_pages", 0)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.max_attempts", 1)
	v.SetDefault("classify.vocabulary_file", "")
	v.SetDefault("classify.match_threshold", 0)
	v.SetDefault("classify.include_known", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks that the settings a command needs are present. mode is
// the command name.
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, key string) {
		if !ok {
			errs = append(errs, key+" is required")
		}
	}

	switch mode {
	case "scrape", "extract", "summarize", "update", "stats", "export", "serve", "runs", "check-changes":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Storage.Backend {
	case "local":
		require(c.Data.Dir != "", "data.dir")
	case "gcs":
		require(c.Storage.Bucket != "", "storage.bucket")
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q must be local or gcs", c.Storage.Backend))
	}

	switch c.Store.Driver {
	case "sqlite":
		require(c.Store.DatabaseURL != "", "store.database_url")
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or none", c.Store.Driver))
	}

	if c.Classify.MatchThreshold < 0 || c.Classify.MatchThreshold > 1 {
		errs = append(errs, "classify.match_threshold must be between 0 and 1")
	}

	if mode == "scrape" || mode == "update" {
		require(c.Source.Endpoint != "", "source.endpoint")
		require(c.Source.PostURL != "", "source.post_url")
		require(c.Source.PostID > 0, "source.post_id")
		if _, err := c.Source.Location(); err != nil {
			errs = append(errs, fmt.Sprintf("source.timezone %q is not a known zone", c.Source.Timezone))
		}
	}
	if mode == "extract" || mode == "update" {
		require(c.Anthropic.Key != "", "anthropic.key")
		require(c.Anthropic.Model != "", "anthropic.model")
		if c.Anthropic.MaxTokens <= 0 {
			errs = append(errs, "anthropic.max_tokens must be > 0")
		}
	}
	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location loads the civil time zone rendered comment dates are in.
func (s SourceConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", s.Timezone)
	}
	return loc, nil
}

// Timeout returns the per-request timeout; zero keeps the transport default.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
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
