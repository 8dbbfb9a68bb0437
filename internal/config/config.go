// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Redact   RedactConfig   `mapstructure:"redact"`
	DB       DBConfig       `mapstructure:"db"`
	Export   ExportConfig   `mapstructure:"export"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs scheduler batching and pacing.
type CrawlerConfig struct {
	BatchSize             int    `mapstructure:"batch_size"`
	BatchPauseSeconds     int    `mapstructure:"batch_pause_seconds"`
	RequestDelayMs        int    `mapstructure:"request_delay_ms"`
	FailureBackoffSeconds int    `mapstructure:"failure_backoff_seconds"`
	MaxPagesDefault       int    `mapstructure:"max_pages_default"`
	UserAgent             string `mapstructure:"user_agent"`
	TimeoutSeconds        int    `mapstructure:"timeout_seconds"`
}

// RedactConfig configures the result sink's substitution pass.
type RedactConfig struct {
	Terms       []string `mapstructure:"terms"`
	Replacement string   `mapstructure:"replacement"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ExportConfig selects the export sink. GCSBucket wins over Dir when both are
// set.
type ExportConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// HeadlessConfig toggles the chromedp fetch collaborator.
type HeadlessConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITECRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.batch_size", 10)
	v.SetDefault("crawler.batch_pause_seconds", 60)
	v.SetDefault("crawler.request_delay_ms", 1000)
	v.SetDefault("crawler.failure_backoff_seconds", 10)
	v.SetDefault("crawler.max_pages_default", 25)
	v.SetDefault("crawler.user_agent", "sitecrawler/0.1")
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("redact.terms", []string{"gohighlevel"})
	v.SetDefault("redact.replacement", "mightytools")
	v.SetDefault("export.gcs_prefix", "results")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.Crawler.MaxPagesDefault <= 0 {
		return fmt.Errorf("crawler.max_pages_default must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if len(c.Redact.Terms) > 0 && c.Redact.Replacement == "" {
		return fmt.Errorf("redact.replacement must be set when redact.terms is non-empty")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// BatchPause returns the inter-batch pause as a duration.
func (c Config) BatchPause() time.Duration {
	return time.Duration(c.Crawler.BatchPauseSeconds) * time.Second
}

// RequestDelay returns the inter-request delay as a duration.
func (c Config) RequestDelay() time.Duration {
	return time.Duration(c.Crawler.RequestDelayMs) * time.Millisecond
}

// FailureBackoff returns the post-failure backoff as a duration.
func (c Config) FailureBackoff() time.Duration {
	return time.Duration(c.Crawler.FailureBackoffSeconds) * time.Second
}

// FetchTimeout returns the per-fetch timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}
