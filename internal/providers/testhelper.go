package providers

import (
	"os"
)

// TestConfig holds provider keys loaded from environment variables so live
// tests use the same configuration pattern as production.
type TestConfig struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// LoadTestConfig loads provider API keys from environment variables.
func LoadTestConfig() TestConfig {
	return TestConfig{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
	}
}

// HasAnthropic returns true if an Anthropic API key is configured.
func (c TestConfig) HasAnthropic() bool {
	return c.AnthropicAPIKey != ""
}

// HasOpenAI returns true if an OpenAI API key is configured.
func (c TestConfig) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// ToRegistryConfig converts test config to a RegistryConfig.
// Only includes providers that have API keys configured.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{Providers: make(map[string]AdapterConfig)}

	if c.HasAnthropic() {
		cfg.Providers[AnthropicName] = AdapterConfig{
			Type:    AnthropicName,
			Model:   "claude-3-5-haiku-20241022",
			APIKey:  c.AnthropicAPIKey,
			Enabled: true,
		}
	}
	if c.HasOpenAI() {
		cfg.Providers[OpenAIName] = AdapterConfig{
			Type:    OpenAIName,
			Model:   "gpt-4o-mini",
			APIKey:  c.OpenAIAPIKey,
			Enabled: true,
		}
	}
	return cfg
}
