package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const OpenAIName = "openai"

// OpenAIModels are the chat models the adapter accepts by default.
var OpenAIModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1",
	"gpt-4.1-mini",
}

// OpenAIConfig holds configuration for the OpenAI chat adapter.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // Optional (tests)
	DefaultModel string
	Models       []string
	MaxTokens    int
	Temperature  *float64
	Timeout      time.Duration
	ConnCacheTTL time.Duration
	Costs        *CostCalculator
	HTTPClient   *http.Client // Optional (tests)
}

// OpenAIAdapter implements Adapter using the official OpenAI SDK.
type OpenAIAdapter struct {
	adapterBase
	client openai.Client
}

// NewOpenAIAdapter creates a new OpenAI adapter. SDK retries are disabled;
// retry policy belongs to the retry handler.
func NewOpenAIAdapter(cfg OpenAIConfig) *OpenAIAdapter {
	if len(cfg.Models) == 0 {
		cfg.Models = OpenAIModels
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = cfg.Models[0]
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIAdapter{
		adapterBase: newAdapterBase(OpenAIName, cfg.DefaultModel, cfg.Models, cfg.MaxTokens, cfg.Temperature, cfg.Costs, cfg.ConnCacheTTL),
		client:      openai.NewClient(opts...),
	}
}

// Execute sends one chat completion request.
func (a *OpenAIAdapter) Execute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	r, err := a.validate(req)
	if err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Content))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(r.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(r.maxTokens)),
		Temperature:         openai.Float(r.temperature),
	}
	if v, ok := req.Options["top_p"].(float64); ok {
		params.TopP = openai.Float(v)
	}

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		mapped := mapOpenAIError(err)
		a.logger.Debug("openai request failed", "request_id", r.requestID, "model", r.model, "error", mapped)
		return nil, mapped
	}
	if len(completion.Choices) == 0 {
		return nil, &ProviderError{Provider: OpenAIName, StatusCode: http.StatusOK, Body: "no choices in response"}
	}

	model := completion.Model
	if model == "" {
		model = r.model
	}
	in := int(completion.Usage.PromptTokens)
	out := int(completion.Usage.CompletionTokens)
	choice := completion.Choices[0]

	resp := &Response{
		Content:       choice.Message.Content,
		Provider:      OpenAIName,
		Model:         model,
		InputTokens:   in,
		OutputTokens:  out,
		Usage:         Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
		CostUSD:       a.CalculateCost(in, out, model),
		ExecutionTime: time.Since(start),
		StopReason:    choice.FinishReason,
		RequestID:     r.requestID,
		Metadata:      map[string]any{"completion_id": completion.ID},
	}

	a.logger.Debug("openai request complete",
		"request_id", r.requestID,
		"model", model,
		"input_tokens", in,
		"output_tokens", out,
		"cost_usd", resp.CostUSD,
	)
	return resp, nil
}

// ExecuteBatch runs requests sequentially and aborts on the first error.
func (a *OpenAIAdapter) ExecuteBatch(ctx context.Context, reqs []*Request) ([]*Response, error) {
	return a.executeBatch(ctx, reqs, a.Execute)
}

// ValidateConnection retrieves the default model. The result is cached.
func (a *OpenAIAdapter) ValidateConnection(ctx context.Context) bool {
	return a.validateConnection(ctx, func(ctx context.Context) error {
		_, err := a.client.Models.Get(ctx, a.defaultModel)
		return mapOpenAIError(err)
	})
}

func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		} else {
			header = http.Header{}
		}
		body := apiErr.Message
		if body == "" {
			body = fmt.Sprintf("status %d", apiErr.StatusCode)
		}
		return statusError(OpenAIName, apiErr.StatusCode, header, body)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &ConnectionError{Provider: OpenAIName, Err: err}
}

var (
	_ Adapter = (*OpenAIAdapter)(nil)
	_ Adapter = (*AnthropicAdapter)(nil)
)
