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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnalysisConfig configures segmentation and dispatch behavior. BatchSize is
// the number of records per stage-one deduplication call.
type AnalysisConfig struct {
	MaxChunkSize   int  `yaml:"max_chunk_size" mapstructure:"max_chunk_size"`
	ChunkOverlap   int  `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	MaxConcurrency int  `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	LLMDedup       bool `yaml:"llm_dedup" mapstructure:"llm_dedup"`
	LLMRelevance   bool `yaml:"llm_relevance" mapstructure:"llm_relevance"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
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
	v.SetEnvPrefix("RISKSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "riskscan.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.rate_per_sec", 2.0)
	v.SetDefault("analysis.max_chunk_size", 30000)
	v.SetDefault("analysis.chunk_overlap", 500)
	v.SetDefault("analysis.batch_size", 3)
	v.SetDefault("analysis.max_concurrency", 5)
	v.SetDefault("analysis.llm_dedup", true)
	v.SetDefault("analysis.llm_relevance", true)
	v.SetDefault("report.dir", "reports")

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the bounds segmentation and dispatch depend on.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.MaxChunkSize <= 0 {
		return eris.Errorf("config: analysis.max_chunk_size must be positive, got %d", a.MaxChunkSize)
	}
	if a.ChunkOverlap < 0 || a.ChunkOverlap >= a.MaxChunkSize {
		return eris.Errorf("config: analysis.chunk_overlap must be in [0, max_chunk_size), got %d", a.ChunkOverlap)
	}
	if a.BatchSize <= 0 {
		return eris.Errorf("config: analysis.batch_size must be positive, got %d", a.BatchSize)
	}
	if a.MaxConcurrency <= 0 {
		return eris.Errorf("config: analysis.max_concurrency must be positive, got %d", a.MaxConcurrency)
	}
	if c.Anthropic.MaxTokens <= 0 {
		return eris.Errorf("config: anthropic.max_tokens must be positive, got %d", c.Anthropic.MaxTokens)
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
