package config

import (
	"time"

	"github.com/jackzampolin/docket/internal/anchor"
	"github.com/jackzampolin/docket/internal/metrics"
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/ratelimit"
	"github.com/jackzampolin/docket/internal/retry"
	"github.com/jackzampolin/docket/internal/sections"
	"github.com/jackzampolin/docket/internal/structure"
	"github.com/jackzampolin/docket/internal/translate"
)

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	a := anchor.DefaultConfig()
	return &Config{
		LogLevel: "info",
		Anchor: AnchorCfg{
			Prefix:              a.Prefix,
			Suffix:              a.Suffix,
			MaxTitleLength:      a.MaxTitleLength,
			MaxSectionIDLength:  a.MaxSectionIDLength,
			MaxTitleInputLength: a.MaxTitleInputLength,
			MaxTextLength:       a.MaxTextLength,
			Transliterate:       a.Transliterate,
			Lowercase:           a.Lowercase,
		},
		Detection: DetectionCfg{
			MinSectionLength: sections.DefaultMinSectionLength,
			MaxTitleLength:   sections.DefaultMaxTitleLength,
		},
		Analysis: AnalysisCfg{
			MinConfidence:      structure.DefaultMinConfidence,
			LowConfidence:      structure.DefaultLowConfidence,
			LowConfidenceRatio: structure.DefaultLowConfidenceRatio,
			MinDocumentLength:  structure.DefaultMinDocumentLength,
			BatchConcurrency:   structure.DefaultBatchConcurrency,
		},
		Providers: map[string]ProviderCfg{
			providers.AnthropicName: {
				Type:      providers.AnthropicName,
				Model:     "claude-3-5-sonnet-20241022",
				APIKey:    "${ANTHROPIC_API_KEY}",
				MaxTokens: providers.DefaultMaxTokens,
				Timeout:   providers.DefaultTimeout,
				Enabled:   true,
			},
			providers.OpenAIName: {
				Type:      providers.OpenAIName,
				Model:     "gpt-4o",
				APIKey:    "${OPENAI_API_KEY}",
				MaxTokens: providers.DefaultMaxTokens,
				Timeout:   providers.DefaultTimeout,
				Enabled:   true,
			},
			providers.MockName: {
				Type:    providers.MockName,
				Enabled: true,
			},
		},
		ConnectionCacheTTL: providers.DefaultConnectionCacheTTL,
		Pricing: PricingCfg{
			Fallback: providers.FallbackRates,
		},
		RateLimits:  ratelimit.DefaultConfig(),
		Retry:       retry.DefaultConfig(),
		Metrics:     metrics.DefaultConfig(),
		Store:       StoreCfg{Driver: StoreSQLite},
		Translation: translate.DefaultConfig(),
	}
}

// DefaultShutdownTimeout bounds how long the CLI waits for an in-flight job
// after an interrupt.
const DefaultShutdownTimeout = 10 * time.Second
