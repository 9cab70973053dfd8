// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vltavalabs/leadscout/internal/priority"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Dedupe   DedupeConfig    `yaml:"dedupe" mapstructure:"dedupe"`
	Scoring  priority.Weights `yaml:"scoring" mapstructure:"scoring"`
	Progress ProgressConfig  `yaml:"progress" mapstructure:"progress"`
	Maps     MapsConfig      `yaml:"maps" mapstructure:"maps"`
	Website  WebsiteConfig   `yaml:"website" mapstructure:"website"`
	Export   ExportConfig    `yaml:"export" mapstructure:"export"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DedupeConfig configures in-batch duplicate detection.
type DedupeConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// ProgressConfig configures area completion tracking. The thresholds are
// business policy, not algorithmic necessity, so they stay configurable.
type ProgressConfig struct {
	MinResultsForCompletion int           `yaml:"min_results_for_completion" mapstructure:"min_results_for_completion"`
	RescrapeWindowDays      int           `yaml:"rescrape_window_days" mapstructure:"rescrape_window_days"`
	QualitySteps            []QualityStep `yaml:"quality_steps" mapstructure:"quality_steps"`
}

// QualityStep maps a minimum result count to a quality score. Steps are
// evaluated highest MinFound first.
type QualityStep struct {
	MinFound int `yaml:"min_found" mapstructure:"min_found"`
	Score    int `yaml:"score" mapstructure:"score"`
}

// MapsConfig configures the map-search scraper collaborator.
type MapsConfig struct {
	Headless       bool `yaml:"headless" mapstructure:"headless"`
	TimeoutSecs    int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxResults     int  `yaml:"max_results" mapstructure:"max_results"`
	ScrollRounds   int  `yaml:"scroll_rounds" mapstructure:"scroll_rounds"`
	ScrollDelayMs  int  `yaml:"scroll_delay_ms" mapstructure:"scroll_delay_ms"`
}

// WebsiteConfig configures the website enrichment scraper.
type WebsiteConfig struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	MaxBodyKB      int     `yaml:"max_body_kb" mapstructure:"max_body_kb"`
}

// ExportConfig configures spreadsheet output.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/leadscout.db")
	v.SetDefault("dedupe.similarity_threshold", 0.9)
	v.SetDefault("scoring.no_website", 100)
	v.SetDefault("scoring.poor_website", 75)
	v.SetDefault("scoring.no_email", 50)
	v.SetDefault("scoring.no_social", 25)
	v.SetDefault("progress.min_results_for_completion", 50)
	v.SetDefault("progress.rescrape_window_days", 7)
	v.SetDefault("maps.headless", true)
	v.SetDefault("maps.timeout_secs", 120)
	v.SetDefault("maps.max_results", 200)
	v.SetDefault("maps.scroll_rounds", 15)
	v.SetDefault("maps.scroll_delay_ms", 1500)
	v.SetDefault("website.enabled", true)
	v.SetDefault("website.timeout_secs", 30)
	v.SetDefault("website.requests_per_sec", 1.0)
	v.SetDefault("website.max_body_kb", 512)
	v.SetDefault("export.output_dir", "data/exports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Progress.QualitySteps) == 0 {
		cfg.Progress.QualitySteps = DefaultQualitySteps()
	}

	return &cfg, nil
}

// DefaultQualitySteps returns the stock count-to-quality step function.
func DefaultQualitySteps() []QualityStep {
	return []QualityStep{
		{MinFound: 100, Score: 100},
		{MinFound: 50, Score: 80},
		{MinFound: 20, Score: 50},
		{MinFound: 10, Score: 30},
		{MinFound: 0, Score: 10},
	}
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
