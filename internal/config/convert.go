package config

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/jackzampolin/docket/internal/anchor"
	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/sections"
	"github.com/jackzampolin/docket/internal/structure"
)

func validProviderType(t string) error {
	switch t {
	case providers.AnthropicName, providers.OpenAIName, providers.MockName:
		return nil
	}
	return fmt.Errorf("unknown provider type %q", t)
}

// Level returns the configured slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// AnchorConfig converts the anchor section.
func (c *Config) AnchorConfig() anchor.Config {
	return anchor.Config{
		Prefix:              c.Anchor.Prefix,
		Suffix:              c.Anchor.Suffix,
		MaxTitleLength:      c.Anchor.MaxTitleLength,
		MaxSectionIDLength:  c.Anchor.MaxSectionIDLength,
		MaxTitleInputLength: c.Anchor.MaxTitleInputLength,
		MaxTextLength:       c.Anchor.MaxTextLength,
		Transliterate:       c.Anchor.Transliterate,
		Lowercase:           c.Anchor.Lowercase,
	}
}

// DetectionConfig converts the detection section. Patterns are always the
// built-in legal tables.
func (c *Config) DetectionConfig() sections.Config {
	cfg := sections.DefaultConfig()
	cfg.MinSectionLength = c.Detection.MinSectionLength
	if c.Detection.MaxTitleLength > 0 {
		cfg.MaxTitleLength = c.Detection.MaxTitleLength
	}
	if len(c.Detection.ExtraKeywords) > 0 {
		cfg.Keywords = append(append([]string(nil), cfg.Keywords...), c.Detection.ExtraKeywords...)
	}
	return cfg
}

// AnalysisConfig converts the analysis section.
func (c *Config) AnalysisConfig() structure.Config {
	return structure.Config{
		MinConfidence:      c.Analysis.MinConfidence,
		LowConfidence:      c.Analysis.LowConfidence,
		LowConfidenceRatio: c.Analysis.LowConfidenceRatio,
		MinDocumentLength:  c.Analysis.MinDocumentLength,
		BatchConcurrency:   c.Analysis.BatchConcurrency,
	}
}

// CostCalculator builds pricing from the built-in rates overlaid with
// pricing.models.
func (c *Config) CostCalculator() *providers.CostCalculator {
	rates := providers.DefaultRates()
	maps.Copy(rates, c.Pricing.Models)
	return providers.NewCostCalculator(rates, c.Pricing.Fallback)
}

// ToProviderRegistryConfig converts the config to a format suitable for providers.Registry.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		Providers:    make(map[string]providers.AdapterConfig, len(c.Providers)),
		Costs:        c.CostCalculator(),
		ConnCacheTTL: c.ConnectionCacheTTL,
	}

	for name, p := range c.Providers {
		cfg.Providers[name] = providers.AdapterConfig{
			Type:        p.Type,
			Model:       p.Model,
			Models:      p.Models,
			APIKey:      ResolveEnvVars(p.APIKey),
			BaseURL:     p.BaseURL,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			Timeout:     p.Timeout,
			Enabled:     p.Enabled,
		}
	}

	return cfg
}

// PromptOverrides flattens the prompts section into dotted prompt keys.
func (c *Config) PromptOverrides() map[string]string {
	out := make(map[string]string)
	flattenPrompts("", c.Prompts, out)
	return out
}

func flattenPrompts(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flattenPrompts(key, val, out)
		}
	}
}
