package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Built once per process
// and passed by reference; never mutated after load.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Clarify   ClarifyConfig   `yaml:"clarify" mapstructure:"clarify"`
	Normalize NormalizeConfig `yaml:"normalize" mapstructure:"normalize"`
	Rank      RankConfig      `yaml:"rank" mapstructure:"rank"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the history/session database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // memory | sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PipelineConfig configures the planner.
type PipelineConfig struct {
	MinCandidates       int `yaml:"min_candidates" mapstructure:"min_candidates"`
	MaxTopK             int `yaml:"max_topk" mapstructure:"max_topk"`
	MinReviews          int `yaml:"min_reviews" mapstructure:"min_reviews"`
	RequestDeadlineSecs int `yaml:"request_deadline_secs" mapstructure:"request_deadline_secs"`
}

// RequestDeadline returns the overall per-request deadline.
func (p PipelineConfig) RequestDeadline() time.Duration {
	return time.Duration(p.RequestDeadlineSecs) * time.Second
}

// DiscoveryConfig configures the candidate fan-out.
type DiscoveryConfig struct {
	SourceTimeoutSecs int `yaml:"source_timeout_secs" mapstructure:"source_timeout_secs"`
	MaxExpansions     int `yaml:"max_expansions" mapstructure:"max_expansions"`
}

// SourceTimeout returns the independent per-source timeout.
func (d DiscoveryConfig) SourceTimeout() time.Duration {
	return time.Duration(d.SourceTimeoutSecs) * time.Second
}

// ClarifyConfig configures the VOI policy.
type ClarifyConfig struct {
	Tau               float64 `yaml:"tau" mapstructure:"tau"`
	MaxQuestions      int     `yaml:"max_questions" mapstructure:"max_questions"`
	AnswerTimeoutSecs int     `yaml:"answer_timeout_secs" mapstructure:"answer_timeout_secs"`
	ProbeTimeoutSecs  int     `yaml:"probe_timeout_secs" mapstructure:"probe_timeout_secs"`
	ProbeCacheSize    int     `yaml:"probe_cache_size" mapstructure:"probe_cache_size"`
}

// AnswerTimeout bounds the wait for a user's clarification answer.
func (c ClarifyConfig) AnswerTimeout() time.Duration {
	return time.Duration(c.AnswerTimeoutSecs) * time.Second
}

// ProbeTimeout bounds the cheap pre-discovery probe.
func (c ClarifyConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSecs) * time.Second
}

// NormalizeConfig configures canonicalization and enrichment.
type NormalizeConfig struct {
	DedupeThreshold float64 `yaml:"dedupe_threshold" mapstructure:"dedupe_threshold"`
	MaxConcurrency  int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	AspectVocabPath string  `yaml:"aspect_vocab_path" mapstructure:"aspect_vocab_path"`
}

// RankConfig configures scoring.
type RankConfig struct {
	Weights              map[string]float64 `yaml:"weights" mapstructure:"weights"`
	NeutralCutoff        float64            `yaml:"neutral_cutoff" mapstructure:"neutral_cutoff"`
	DiversityKey         string             `yaml:"diversity_key" mapstructure:"diversity_key"`
	SentimentTimeoutSecs int                `yaml:"sentiment_timeout_secs" mapstructure:"sentiment_timeout_secs"`
	MaxConcurrency       int                `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// SentimentTimeout bounds a single aspect-sentiment call.
func (r RankConfig) SentimentTimeout() time.Duration {
	return time.Duration(r.SentimentTimeoutSecs) * time.Second
}

// SourcesConfig enables and configures candidate sources.
type SourcesConfig struct {
	Fixture FixtureSourceConfig `yaml:"fixture" mapstructure:"fixture"`
	Catalog CatalogSourceConfig `yaml:"catalog" mapstructure:"catalog"`
	Gemini  GeminiSourceConfig  `yaml:"gemini" mapstructure:"gemini"`
}

// FixtureSourceConfig points at JSON review pools.
type FixtureSourceConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	Paths   []string `yaml:"paths" mapstructure:"paths"`
}

// CatalogSourceConfig points at an XLSX merchant export.
type CatalogSourceConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// GeminiSourceConfig enables web-grounded discovery through Gemini.
type GeminiSourceConfig struct {
	Enabled bool    `yaml:"enabled" mapstructure:"enabled"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
	Burst   int     `yaml:"burst" mapstructure:"burst"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Claude API settings for the sentiment scorer.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
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

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PICKPAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

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

// SetDefaults registers every tunable's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pickpal.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("pipeline.min_candidates", 3)
	v.SetDefault("pipeline.max_topk", 3)
	v.SetDefault("pipeline.min_reviews", 5)
	v.SetDefault("pipeline.request_deadline_secs", 60)

	v.SetDefault("discovery.source_timeout_secs", 10)
	v.SetDefault("discovery.max_expansions", 2)

	v.SetDefault("clarify.tau", 0.75)
	v.SetDefault("clarify.max_questions", 2)
	v.SetDefault("clarify.answer_timeout_secs", 30)
	v.SetDefault("clarify.probe_timeout_secs", 3)
	v.SetDefault("clarify.probe_cache_size", 64)

	v.SetDefault("normalize.dedupe_threshold", 0.85)
	v.SetDefault("normalize.max_concurrency", 8)

	v.SetDefault("rank.weights", map[string]float64{
		"rating":      0.4,
		"sentiment":   0.3,
		"recency":     0.2,
		"helpfulness": 0.1,
	})
	v.SetDefault("rank.neutral_cutoff", 0.2)
	v.SetDefault("rank.diversity_key", "brand")
	v.SetDefault("rank.sentiment_timeout_secs", 10)
	v.SetDefault("rank.max_concurrency", 8)

	v.SetDefault("sources.fixture.enabled", true)
	v.SetDefault("sources.fixture.paths", []string{})
	v.SetDefault("sources.catalog.enabled", false)
	v.SetDefault("sources.gemini.enabled", false)
	v.SetDefault("sources.gemini.rps", 1.0)
	v.SetDefault("sources.gemini.burst", 2)

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

// Default returns a Config populated with defaults only. Used by tests and
// by callers that do not read a config file.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
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
