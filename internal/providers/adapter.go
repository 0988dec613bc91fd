package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxTokens          = 4096
	DefaultTemperature        = 0.3
	DefaultTimeout            = 120 * time.Second
	DefaultConnectionCacheTTL = 5 * time.Minute
)

// adapterBase holds the behavior shared by every HTTP adapter: request
// validation, fail-fast batching and the cached connection check.
type adapterBase struct {
	name         string
	defaultModel string
	models       []string
	maxTokens    int
	temperature  float64
	costs        *CostCalculator
	logger       *slog.Logger

	connTTL       time.Duration
	connMu        sync.Mutex
	connOK        bool
	connCheckedAt time.Time
	now           func() time.Time
}

func newAdapterBase(name, defaultModel string, models []string, maxTokens int, temperature *float64, costs *CostCalculator, connTTL time.Duration) adapterBase {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temp := DefaultTemperature
	if temperature != nil {
		temp = *temperature
	}
	if costs == nil {
		costs = NewCostCalculator(nil, ModelRates{})
	}
	if connTTL <= 0 {
		connTTL = DefaultConnectionCacheTTL
	}
	return adapterBase{
		name:         name,
		defaultModel: defaultModel,
		models:       models,
		maxTokens:    maxTokens,
		temperature:  temp,
		costs:        costs,
		logger:       slog.Default(),
		connTTL:      connTTL,
		now:          time.Now,
	}
}

// resolved is a validated request with defaults applied.
type resolved struct {
	requestID   string
	model       string
	maxTokens   int
	temperature float64
}

// validate checks req and fills adapter defaults.
func (b *adapterBase) validate(req *Request) (resolved, error) {
	if req == nil {
		return resolved{}, &ValidationError{Message: "request is required"}
	}
	if strings.TrimSpace(req.Content) == "" {
		return resolved{}, &ValidationError{Field: "content", Message: "content is required"}
	}

	r := resolved{
		requestID:   req.RequestID,
		model:       req.Model,
		maxTokens:   req.MaxTokens,
		temperature: b.temperature,
	}
	if r.requestID == "" {
		r.requestID = uuid.New().String()
	}
	if r.model == "" {
		r.model = b.defaultModel
	}
	if len(b.models) > 0 && !slices.Contains(b.models, r.model) {
		return resolved{}, &ValidationError{
			Field:   "model",
			Message: fmt.Sprintf("%q is not supported by %s", r.model, b.name),
			Err:     ErrUnsupportedModel,
		}
	}
	if req.Temperature != nil {
		r.temperature = *req.Temperature
	}
	if r.temperature < 0 || r.temperature > 1 {
		return resolved{}, &ValidationError{Field: "temperature", Message: fmt.Sprintf("%v is outside [0,1]", r.temperature)}
	}
	if r.maxTokens < 0 {
		return resolved{}, &ValidationError{Field: "max_tokens", Message: fmt.Sprintf("%d must be positive", r.maxTokens)}
	}
	if r.maxTokens == 0 {
		r.maxTokens = b.maxTokens
	}
	return r, nil
}

// executeBatch runs reqs in order and stops at the first failure.
func (b *adapterBase) executeBatch(ctx context.Context, reqs []*Request, exec func(context.Context, *Request) (*Response, error)) ([]*Response, error) {
	out := make([]*Response, 0, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := exec(ctx, req)
		if err != nil {
			b.logger.Warn("batch aborted", "provider", b.name, "index", i, "size", len(reqs), "error", err)
			return nil, fmt.Errorf("batch request %d of %d: %w", i+1, len(reqs), err)
		}
		out = append(out, resp)
	}
	return out, nil
}

// validateConnection runs check at most once per connTTL.
func (b *adapterBase) validateConnection(ctx context.Context, check func(context.Context) error) bool {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if !b.connCheckedAt.IsZero() && b.now().Sub(b.connCheckedAt) < b.connTTL {
		return b.connOK
	}

	err := check(ctx)
	b.connOK = err == nil
	b.connCheckedAt = b.now()
	if err != nil {
		b.logger.Warn("provider connection check failed", "provider", b.name, "error", err)
	}
	return b.connOK
}

// SupportedModels lists the models the adapter accepts.
func (b *adapterBase) SupportedModels() []string {
	return slices.Clone(b.models)
}

// Name returns the adapter identifier.
func (b *adapterBase) Name() string {
	return b.name
}

// DefaultModel returns the model used when a request names none.
func (b *adapterBase) DefaultModel() string {
	return b.defaultModel
}

// SetLogger sets the logger for the adapter.
func (b *adapterBase) SetLogger(logger *slog.Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// CalculateCost prices a call with the adapter's rates.
func (b *adapterBase) CalculateCost(inputTokens, outputTokens int, model string) float64 {
	return b.costs.Calculate(inputTokens, outputTokens, model)
}

// CountTokens estimates tokens for text.
func (b *adapterBase) CountTokens(text, model string) int {
	return CountTokens(text, model)
}

// statusError maps a non-2xx HTTP status to the error taxonomy.
func statusError(provider string, status int, header http.Header, body string) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", provider, ErrInvalidCredentials)
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:   provider,
			Message:    "provider rate limit exceeded",
			RetryAfter: parseRetryAfter(header.Get("Retry-After")),
		}
	default:
		return &ProviderError{Provider: provider, StatusCode: status, Body: body}
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
