package config

import (
	"time"

	"github.com/jackzampolin/docket/internal/metrics"
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/ratelimit"
	"github.com/jackzampolin/docket/internal/retry"
	"github.com/jackzampolin/docket/internal/translate"
)

// Config holds docket configuration.
// Stored at: ./config.yaml or ~/.docket/config.yaml
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	Anchor    AnchorCfg    `mapstructure:"anchor" yaml:"anchor"`
	Detection DetectionCfg `mapstructure:"detection" yaml:"detection"`
	Analysis  AnalysisCfg  `mapstructure:"analysis" yaml:"analysis"`

	Providers          map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	ConnectionCacheTTL time.Duration          `mapstructure:"connection_cache_ttl" yaml:"connection_cache_ttl"`
	Pricing            PricingCfg             `mapstructure:"pricing" yaml:"pricing"`
	RateLimits         ratelimit.Config       `mapstructure:"rate_limits" yaml:"rate_limits"`
	Retry              retry.Config           `mapstructure:"retry" yaml:"retry"`

	Metrics     metrics.Config   `mapstructure:"metrics" yaml:"metrics"`
	Store       StoreCfg         `mapstructure:"store" yaml:"store"`
	Translation translate.Config `mapstructure:"translation" yaml:"translation"`

	// Prompts overrides embedded prompt templates. Keys nest by their dotted
	// prompt key, e.g. prompts.translation.system.
	Prompts map[string]any `mapstructure:"prompts" yaml:"prompts,omitempty"`
}

// AnchorCfg configures anchor generation.
type AnchorCfg struct {
	Prefix              string `mapstructure:"prefix" yaml:"prefix"`
	Suffix              string `mapstructure:"suffix" yaml:"suffix"`
	MaxTitleLength      int    `mapstructure:"max_title_length" yaml:"max_title_length"`
	MaxSectionIDLength  int    `mapstructure:"max_section_id_length" yaml:"max_section_id_length"`
	MaxTitleInputLength int    `mapstructure:"max_title_input_length" yaml:"max_title_input_length"`
	MaxTextLength       int    `mapstructure:"max_text_length" yaml:"max_text_length"` // bytes
	Transliterate       bool   `mapstructure:"transliterate" yaml:"transliterate"`
	Lowercase           bool   `mapstructure:"lowercase" yaml:"lowercase"`
}

// DetectionCfg configures section detection.
type DetectionCfg struct {
	MinSectionLength int `mapstructure:"min_section_length" yaml:"min_section_length"`
	MaxTitleLength   int `mapstructure:"max_title_length" yaml:"max_title_length"`
	// ExtraKeywords are appended to the built-in legal keywords.
	ExtraKeywords []string `mapstructure:"extra_keywords" yaml:"extra_keywords,omitempty"`
}

// AnalysisCfg configures the structure analyzer.
type AnalysisCfg struct {
	MinConfidence      float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
	LowConfidence      float64 `mapstructure:"low_confidence" yaml:"low_confidence"`
	LowConfidenceRatio float64 `mapstructure:"low_confidence_ratio" yaml:"low_confidence_ratio"`
	MinDocumentLength  int     `mapstructure:"min_document_length" yaml:"min_document_length"`
	BatchConcurrency   int     `mapstructure:"batch_concurrency" yaml:"batch_concurrency"`
}

// ProviderCfg configures a language-model provider.
type ProviderCfg struct {
	Type        string        `mapstructure:"type" yaml:"type"`   // "anthropic", "openai", "mock"
	Model       string        `mapstructure:"model" yaml:"model"` // Default model
	Models      []string      `mapstructure:"models" yaml:"models,omitempty"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url,omitempty"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature *float64      `mapstructure:"temperature" yaml:"temperature,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
}

// PricingCfg overrides per-model token prices (USD per million tokens).
type PricingCfg struct {
	Models   map[string]providers.ModelRates `mapstructure:"models" yaml:"models,omitempty"`
	Fallback providers.ModelRates            `mapstructure:"fallback" yaml:"fallback"`
}

// Store drivers
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// StoreCfg selects the shared counter and metrics store.
type StoreCfg struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	// Path of the SQLite database. Empty means {home}/docket.db.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}
