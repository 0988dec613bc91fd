// Package providers defines the language-model adapter contract, the error
// taxonomy shared by the provider-call path, and the concrete adapters.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Adapter translates an internal Request into one provider call.
type Adapter interface {
	// Name returns the adapter identifier (e.g., "anthropic").
	Name() string

	// Execute validates req, calls the provider and maps the response.
	Execute(ctx context.Context, req *Request) (*Response, error)

	// ExecuteBatch runs requests sequentially; the first failure aborts the batch.
	ExecuteBatch(ctx context.Context, reqs []*Request) ([]*Response, error)

	// ValidateConnection performs a minimal request. Results are cached briefly.
	ValidateConnection(ctx context.Context) bool

	// SupportedModels lists the models Execute accepts.
	SupportedModels() []string
}

// Request is a provider-neutral completion request.
type Request struct {
	// Required
	Content string `json:"content"`

	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model selection (uses adapter default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters (adapter defaults when zero/nil)
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Provider-specific passthrough (e.g. "top_p", "stop_sequences")
	Options map[string]any `json:"options,omitempty"`

	// Request tracking
	RequestID string            `json:"request_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Usage reports token usage as returned by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
	TotalTokens  int `json:"total_tokens" yaml:"total_tokens"`
}

// Response is the provider-neutral result of one call.
type Response struct {
	Content string `json:"content" yaml:"content"`

	// Provider info
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`

	// Token counts
	InputTokens  int   `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int   `json:"output_tokens" yaml:"output_tokens"`
	Usage        Usage `json:"usage" yaml:"usage"`

	// Cost and timing
	CostUSD       float64       `json:"cost_usd" yaml:"cost_usd"`
	ExecutionTime time.Duration `json:"execution_time" yaml:"execution_time"`

	StopReason string `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`

	RequestID string         `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// StopReasonError marks a response the provider itself flagged as failed.
const StopReasonError = "error"

// Success reports whether the response carries usable content.
func (r *Response) Success() bool {
	return r != nil && r.Content != "" && r.StopReason != StopReasonError
}

// Err returns nil for a successful response and a non-retryable
// *ProviderError describing why it is unusable otherwise.
func (r *Response) Err() error {
	if r.Success() {
		return nil
	}
	if r == nil {
		return &ProviderError{StatusCode: http.StatusOK, Body: "nil response"}
	}
	return &ProviderError{
		Provider:   r.Provider,
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf("unusable response: stop_reason=%q content_length=%d", r.StopReason, len(r.Content)),
	}
}

// TotalTokens returns input plus output tokens.
func (r *Response) TotalTokens() int {
	if r == nil {
		return 0
	}
	return r.InputTokens + r.OutputTokens
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 {
	return &v
}
