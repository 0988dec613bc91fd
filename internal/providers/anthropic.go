package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	AnthropicName       = "anthropic"
	AnthropicBaseURL    = "https://api.anthropic.com"
	AnthropicAPIVersion = "2023-06-01"
)

// AnthropicModels are the models the adapter accepts by default.
var AnthropicModels = []string{
	"claude-3-5-sonnet-20241022",
	"claude-3-5-haiku-20241022",
	"claude-3-opus-20240229",
	"claude-sonnet-4-20250514",
	"claude-opus-4-20250514",
}

// AnthropicConfig holds configuration for the Anthropic adapter.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Models       []string
	MaxTokens    int
	Temperature  *float64
	Timeout      time.Duration
	ConnCacheTTL time.Duration
	Costs        *CostCalculator
	HTTPClient   *http.Client
}

// AnthropicAdapter implements Adapter using the Messages API.
type AnthropicAdapter struct {
	adapterBase
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter(cfg AnthropicConfig) *AnthropicAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = AnthropicBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = AnthropicModels
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = cfg.Models[0]
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &AnthropicAdapter{
		adapterBase: newAdapterBase(AnthropicName, cfg.DefaultModel, cfg.Models, cfg.MaxTokens, cfg.Temperature, cfg.Costs, cfg.ConnCacheTTL),
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		client:      client,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	Temperature   float64            `json:"temperature"`
	System        string             `json:"system,omitempty"`
	Messages      []anthropicMessage `json:"messages"`
	TopP          *float64           `json:"top_p,omitempty"`
	TopK          *int               `json:"top_k,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Content    []anthropicContentBlock `json:"content"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Execute sends one Messages API request.
func (a *AnthropicAdapter) Execute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	r, err := a.validate(req)
	if err != nil {
		return nil, err
	}

	body := anthropicRequest{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
		System:      req.SystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Content}},
	}
	applyAnthropicOptions(&body, req.Options)

	raw, err := a.post(ctx, "/v1/messages", body)
	if err != nil {
		a.logger.Debug("anthropic request failed", "request_id", r.requestID, "model", r.model, "error", err)
		return nil, err
	}

	if err := validateResponsePayload(compileAnthropicSchema, AnthropicName, raw); err != nil {
		return nil, err
	}
	var ar anthropicResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, &ProviderError{Provider: AnthropicName, StatusCode: http.StatusOK, Body: "failed to decode response: " + err.Error()}
	}

	var text strings.Builder
	for _, block := range ar.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	model := ar.Model
	if model == "" {
		model = r.model
	}
	in, out := ar.Usage.InputTokens, ar.Usage.OutputTokens

	resp := &Response{
		Content:       text.String(),
		Provider:      AnthropicName,
		Model:         model,
		InputTokens:   in,
		OutputTokens:  out,
		Usage:         Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
		CostUSD:       a.CalculateCost(in, out, model),
		ExecutionTime: time.Since(start),
		StopReason:    ar.StopReason,
		RequestID:     r.requestID,
		Metadata:      map[string]any{"message_id": ar.ID},
	}

	a.logger.Debug("anthropic request complete",
		"request_id", r.requestID,
		"model", model,
		"input_tokens", in,
		"output_tokens", out,
		"cost_usd", resp.CostUSD,
		"duration", resp.ExecutionTime,
	)
	return resp, nil
}

// ExecuteBatch runs requests sequentially and aborts on the first error.
func (a *AnthropicAdapter) ExecuteBatch(ctx context.Context, reqs []*Request) ([]*Response, error) {
	return a.executeBatch(ctx, reqs, a.Execute)
}

// ValidateConnection sends a one-token request. The result is cached.
func (a *AnthropicAdapter) ValidateConnection(ctx context.Context) bool {
	return a.validateConnection(ctx, func(ctx context.Context) error {
		_, err := a.post(ctx, "/v1/messages", anthropicRequest{
			Model:     a.defaultModel,
			MaxTokens: 1,
			Messages:  []anthropicMessage{{Role: "user", Content: "ping"}},
		})
		return err
	})
}

// post sends body to path and returns the raw 2xx body.
func (a *AnthropicAdapter) post(ctx context.Context, path string, body any) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", AnthropicAPIVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &ConnectionError{Provider: AnthropicName, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Provider: AnthropicName, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(AnthropicName, resp.StatusCode, resp.Header, string(respBody))
	}
	return respBody, nil
}

func applyAnthropicOptions(body *anthropicRequest, opts map[string]any) {
	if v, ok := opts["top_p"].(float64); ok {
		body.TopP = &v
	}
	switch v := opts["top_k"].(type) {
	case int:
		body.TopK = &v
	case float64:
		k := int(v)
		body.TopK = &k
	}
	switch v := opts["stop_sequences"].(type) {
	case []string:
		body.StopSequences = v
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok {
				body.StopSequences = append(body.StopSequences, str)
			}
		}
	}
}
