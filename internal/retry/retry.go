// Package retry re-runs provider calls on transient failures with
// exponential backoff, honoring provider retry-after hints.
package retry

import (
	"context"
	"log/slog"
	"time"

	retrygo "github.com/avast/retry-go/v4"

	"github.com/jackzampolin/docket/internal/providers"
)

// Config controls the retry policy.
type Config struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay" json:"max_delay"`
	// HonorRetryAfter uses a RateLimitError's RetryAfter instead of the
	// computed backoff when present.
	HonorRetryAfter bool `mapstructure:"honor_retry_after" yaml:"honor_retry_after" json:"honor_retry_after"`
}

// DefaultConfig returns 3 attempts with a 1s base delay capped at 60s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		HonorRetryAfter: true,
	}
}

// Handler wraps an operation with the retry policy.
type Handler struct {
	cfg       Config
	retryable func(error) bool
	timer     retrygo.Timer
	logger    *slog.Logger
}

// New creates a handler. Non-positive fields take their defaults.
func New(cfg Config) *Handler {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	return &Handler{
		cfg:       cfg,
		retryable: providers.IsRetryable,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		h.logger = logger
	}
}

// SetRetryable replaces the classifier deciding which errors are retried.
func (h *Handler) SetRetryable(fn func(error) bool) {
	if fn != nil {
		h.retryable = fn
	}
}

// Config returns the effective policy.
func (h *Handler) Config() Config { return h.cfg }

// Delay returns the sleep before retry number attempt (1-based) after err:
// BaseDelay * 2^(attempt-1), or the error's retry-after hint, capped at MaxDelay.
func (h *Handler) Delay(attempt int, err error) time.Duration {
	if h.cfg.HonorRetryAfter {
		if d := providers.RetryAfter(err); d > 0 {
			return min(d, h.cfg.MaxDelay)
		}
	}
	shift := min(max(attempt-1, 0), 30)
	d := h.cfg.BaseDelay << shift
	if d <= 0 || d > h.cfg.MaxDelay {
		return h.cfg.MaxDelay
	}
	return d
}

func (h *Handler) options(ctx context.Context) []retrygo.Option {
	opts := []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(uint(h.cfg.MaxAttempts)),
		retrygo.MaxDelay(h.cfg.MaxDelay),
		retrygo.DelayType(func(n uint, err error, _ *retrygo.Config) time.Duration {
			return h.Delay(int(n)+1, err)
		}),
		retrygo.RetryIf(h.retryable),
		retrygo.LastErrorOnly(true),
		retrygo.OnRetry(func(n uint, err error) {
			h.logger.Warn("retrying after error",
				"attempt", n+1,
				"max_attempts", h.cfg.MaxAttempts,
				"kind", providers.Kind(err),
				"delay", h.Delay(int(n)+1, err),
				"error", err,
			)
		}),
	}
	if h.timer != nil {
		opts = append(opts, retrygo.WithTimer(h.timer))
	}
	return opts
}

// Do runs op until it succeeds, fails with a non-retryable error, runs out
// of attempts, or ctx is done. The last error is returned unwrapped.
func (h *Handler) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return retrygo.Do(func() error { return op(ctx) }, h.options(ctx)...)
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, h *Handler, op func(ctx context.Context) (T, error)) (T, error) {
	return retrygo.DoWithData(func() (T, error) { return op(ctx) }, h.options(ctx)...)
}
