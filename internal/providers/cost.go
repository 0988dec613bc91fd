package providers

import (
	"math"
	"strings"
	"unicode/utf8"
)

// ModelRates are USD prices per one million tokens.
type ModelRates struct {
	InputPerMillion  float64 `mapstructure:"input_per_million" yaml:"input_per_million" json:"input_per_million"`
	OutputPerMillion float64 `mapstructure:"output_per_million" yaml:"output_per_million" json:"output_per_million"`
}

// FallbackRates apply to models without configured pricing.
var FallbackRates = ModelRates{InputPerMillion: 3.00, OutputPerMillion: 15.00}

// DefaultRates returns list prices for the models the adapters ship with.
func DefaultRates() map[string]ModelRates {
	return map[string]ModelRates{
		"claude-3-5-sonnet-20241022": {3.00, 15.00},
		"claude-3-5-haiku-20241022":  {0.80, 4.00},
		"claude-3-haiku-20240307":    {0.25, 1.25},
		"claude-3-opus-20240229":     {15.00, 75.00},
		"claude-sonnet-4-20250514":   {3.00, 15.00},
		"claude-opus-4-20250514":     {15.00, 75.00},
		"gpt-4o":                     {2.50, 10.00},
		"gpt-4o-mini":                {0.15, 0.60},
		"gpt-4.1":                    {2.00, 8.00},
		"gpt-4.1-mini":               {0.40, 1.60},
	}
}

// CostCalculator prices token usage per model.
type CostCalculator struct {
	rates    map[string]ModelRates
	fallback ModelRates
}

// NewCostCalculator creates a calculator. Nil rates use DefaultRates; a zero
// fallback uses FallbackRates.
func NewCostCalculator(rates map[string]ModelRates, fallback ModelRates) *CostCalculator {
	if rates == nil {
		rates = DefaultRates()
	}
	if fallback == (ModelRates{}) {
		fallback = FallbackRates
	}
	normalized := make(map[string]ModelRates, len(rates))
	for model, r := range rates {
		normalized[strings.ToLower(model)] = r
	}
	return &CostCalculator{rates: normalized, fallback: fallback}
}

// Rates returns the pricing used for model and whether it was configured.
func (c *CostCalculator) Rates(model string) (ModelRates, bool) {
	r, ok := c.rates[strings.ToLower(model)]
	if !ok {
		return c.fallback, false
	}
	return r, true
}

// Calculate returns the USD cost of a call, rounded to 6 decimal places.
func (c *CostCalculator) Calculate(inputTokens, outputTokens int, model string) float64 {
	r, _ := c.Rates(model)
	cost := float64(max(inputTokens, 0))/1e6*r.InputPerMillion +
		float64(max(outputTokens, 0))/1e6*r.OutputPerMillion
	return math.Round(cost*1e6) / 1e6
}

// CountTokens estimates tokens as ceil(characters / 4). It is an estimate,
// not a tokenizer; model is accepted for future per-model estimators.
func CountTokens(text, model string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
