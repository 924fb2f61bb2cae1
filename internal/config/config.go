package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/regtechmx/expediente-engine/internal/classify"
	"github.com/regtechmx/expediente-engine/internal/fusion"
	"github.com/regtechmx/expediente-engine/internal/semantic"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig     `yaml:"store" mapstructure:"store"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
	Extract  ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Fusion   fusion.Config   `yaml:"fusion" mapstructure:"fusion"`
	Classify classify.Config `yaml:"classify" mapstructure:"classify"`
	Semantic semantic.Config `yaml:"semantic" mapstructure:"semantic"`
	Batch    BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Paths    PathsConfig     `yaml:"paths" mapstructure:"paths"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int     `yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ExtractConfig configures per-document extraction.
type ExtractConfig struct {
	Mode           string  `yaml:"mode" mapstructure:"mode"`
	MergePolicy    string  `yaml:"merge_policy" mapstructure:"merge_policy"`
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentCases int `yaml:"max_concurrent_cases" mapstructure:"max_concurrent_cases"`
}

// PathsConfig points at the optional YAML overrides for the field registry
// and the classification and situation dictionaries.
type PathsConfig struct {
	Registry           string `yaml:"registry" mapstructure:"registry"`
	ClassifyDictionary string `yaml:"classify_dictionary" mapstructure:"classify_dictionary"`
	SemanticDictionary string `yaml:"semantic_dictionary" mapstructure:"semantic_dictionary"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXPEDIENTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "expediente.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("batch.max_concurrent_cases", 5)
	v.SetDefault("extract.mode", "merge_all")
	v.SetDefault("extract.merge_policy", "most_complete")
	v.SetDefault("extract.concurrency", 4)
	v.SetDefault("extract.fuzzy_threshold", 0.85)
	v.SetDefault("fusion.source_reliability.xml", 0.90)
	v.SetDefault("fusion.source_reliability.pdf_ocr", 0.75)
	v.SetDefault("fusion.source_reliability.docx_ocr", 0.70)
	v.SetDefault("fusion.fuzzy_threshold", 0.85)
	v.SetDefault("fusion.conflict_margin", 0.15)
	v.SetDefault("fusion.auto_process_threshold", 0.85)
	v.SetDefault("fusion.review_threshold", 0.70)
	v.SetDefault("fusion.agree_confidence_base", 0.85)
	v.SetDefault("fusion.agree_confidence_max", 0.95)
	v.SetDefault("fusion.pattern_invalid_factor", 0.60)
	v.SetDefault("fusion.catalog_invalid_factor", 0.70)
	v.SetDefault("fusion.concurrency", 4)
	v.SetDefault("classify.high_confidence", 0.90)
	v.SetDefault("classify.spot_review_floor", 0.70)
	v.SetDefault("classify.keyword_weight", 0.60)
	v.SetDefault("classify.presence_weight", 0.25)
	v.SetDefault("classify.pattern_weight", 0.15)
	v.SetDefault("classify.keyword_saturation", 2)
	v.SetDefault("semantic.phrase_threshold", 0.85)
	v.SetDefault("semantic.window_bytes", 180)

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

// Validate checks the configuration for the requested run mode. It reports
// every problem at once rather than failing on the first.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "process", "batch", "serve", "migrate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RateLimitRPS <= 0 {
			problems = append(problems, "server.rate_limit_rps must be > 0")
		}
	}
	if mode == "batch" || mode == "serve" {
		if c.Batch.MaxConcurrentCases < 1 || c.Batch.MaxConcurrentCases > 50 {
			problems = append(problems, "batch.max_concurrent_cases must be between 1 and 50")
		}
	}

	unitRange := []struct {
		name string
		v    float64
	}{
		{"fusion.fuzzy_threshold", c.Fusion.FuzzyThreshold},
		{"fusion.conflict_margin", c.Fusion.ConflictMargin},
		{"fusion.auto_process_threshold", c.Fusion.AutoProcessThreshold},
		{"fusion.review_threshold", c.Fusion.ReviewThreshold},
		{"classify.high_confidence", c.Classify.HighConfidence},
		{"classify.spot_review_floor", c.Classify.SpotReviewFloor},
	}
	for _, t := range unitRange {
		if t.v < 0 || t.v > 1 {
			problems = append(problems, t.name+" must be between 0 and 1")
		}
	}
	if c.Fusion.AutoProcessThreshold < c.Fusion.ReviewThreshold {
		problems = append(problems, "fusion.auto_process_threshold must be >= fusion.review_threshold")
	}
	if c.Fusion.AgreeConfidenceBase > c.Fusion.AgreeConfidenceMax {
		problems = append(problems, "fusion.agree_confidence_base must be <= fusion.agree_confidence_max")
	}
	if c.Classify.KeywordWeight < 0 || c.Classify.PresenceWeight < 0 || c.Classify.PatternWeight < 0 {
		problems = append(problems, "classify weights must be >= 0")
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
