// Package ratelimit enforces per-provider request and token quotas over
// fixed minute and hour windows. Counters live in a store.Store so every
// worker sharing the store shares one quota.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/store"
)

const (
	MsgRequestLimit = "Request rate limit exceeded"
	MsgTokenLimit   = "Token rate limit exceeded"
)

// Limits are the quotas for one provider. Zero fields take the default;
// negative fields disable that dimension.
type Limits struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	TokensPerMinute   int `mapstructure:"tokens_per_minute" yaml:"tokens_per_minute" json:"tokens_per_minute"`
	TokensPerHour     int `mapstructure:"tokens_per_hour" yaml:"tokens_per_hour" json:"tokens_per_hour"`
}

// DefaultLimits returns the quotas used when a provider has none configured.
func DefaultLimits() Limits {
	return Limits{
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
		TokensPerMinute:   40000,
		TokensPerHour:     400000,
	}
}

// withDefaults fills zero fields from def.
func (l Limits) withDefaults(def Limits) Limits {
	if l.RequestsPerMinute == 0 {
		l.RequestsPerMinute = def.RequestsPerMinute
	}
	if l.RequestsPerHour == 0 {
		l.RequestsPerHour = def.RequestsPerHour
	}
	if l.TokensPerMinute == 0 {
		l.TokensPerMinute = def.TokensPerMinute
	}
	if l.TokensPerHour == 0 {
		l.TokensPerHour = def.TokensPerHour
	}
	return l
}

// Config maps provider names to limits. Default applies to providers
// without an entry and to unset fields of those with one.
type Config struct {
	Default   Limits            `mapstructure:"default" yaml:"default" json:"default"`
	Providers map[string]Limits `mapstructure:"providers" yaml:"providers" json:"providers"`
}

// DefaultConfig returns a Config with DefaultLimits and no overrides.
func DefaultConfig() Config {
	return Config{Default: DefaultLimits()}
}

// Limits resolves the effective limits for provider.
func (c Config) Limits(provider string) Limits {
	def := c.Default.withDefaults(DefaultLimits())
	if l, ok := c.Providers[provider]; ok {
		return l.withDefaults(def)
	}
	return def
}

type kind string

const (
	kindRequests kind = "requests"
	kindTokens   kind = "tokens"
)

type window struct {
	name   string
	length time.Duration
}

var (
	minute = window{name: "minute", length: time.Minute}
	hour   = window{name: "hour", length: time.Hour}
)

// Limiter tracks the four quota windows of one provider.
type Limiter struct {
	provider string
	limits   Limits
	store    store.Store
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a limiter for provider with explicit limits.
func New(provider string, limits Limits, st store.Store) *Limiter {
	return &Limiter{
		provider: provider,
		limits:   limits.withDefaults(DefaultLimits()),
		store:    st,
		now:      time.Now,
		logger:   slog.Default(),
	}
}

// ForProvider creates a limiter using the limits configured for name.
func ForProvider(name string, cfg Config, st store.Store) *Limiter {
	return New(name, cfg.Limits(name), st)
}

// SetLogger sets the logger for the limiter.
func (l *Limiter) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetClock replaces the time source.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Provider returns the provider name.
func (l *Limiter) Provider() string { return l.provider }

// Limits returns the effective limits.
func (l *Limiter) Limits() Limits { return l.limits }

// Reservation records what CheckAndReserve counted so the caller can
// reconcile it later. The window keys pin it to the windows it was made in.
type Reservation struct {
	Tokens    int
	minuteKey string
	hourKey   string
}

// key returns ratelimit:{provider}:{kind}:{window}:{bucket}.
func (l *Limiter) key(k kind, w window, now time.Time) string {
	bucket := now.UnixNano() / int64(w.length)
	return fmt.Sprintf("ratelimit:%s:%s:%s:%d", l.provider, k, w.name, bucket)
}

// untilReset returns the time left in the window containing now.
func untilReset(w window, now time.Time) time.Duration {
	length := int64(w.length)
	next := (now.UnixNano()/length + 1) * length
	return time.Duration(next - now.UnixNano())
}

func (l *Limiter) exceeded(msg string, w window, now time.Time) error {
	return &providers.RateLimitError{
		Provider:   l.provider,
		Message:    msg,
		RetryAfter: untilReset(w, now),
	}
}

// CheckAndReserve counts one request and estimatedTokens against the
// current windows. Every counter is incremented before it is checked, so
// concurrent callers sharing a store can never both take the last slot.
// Request counters stay incremented on rejection; a rejected token
// reservation is rolled back. Checks run request/minute, request/hour,
// token/minute, token/hour and stop at the first violation.
func (l *Limiter) CheckAndReserve(ctx context.Context, estimatedTokens int) (Reservation, error) {
	now := l.now()
	estimatedTokens = max(estimatedTokens, 0)

	reqMin, err := l.store.IncrBy(ctx, l.key(kindRequests, minute, now), 1, minute.length)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to count request: %w", err)
	}
	reqHour, err := l.store.IncrBy(ctx, l.key(kindRequests, hour, now), 1, hour.length)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to count request: %w", err)
	}

	if l.limits.RequestsPerMinute > 0 && reqMin > int64(l.limits.RequestsPerMinute) {
		return Reservation{}, l.exceeded(MsgRequestLimit, minute, now)
	}
	if l.limits.RequestsPerHour > 0 && reqHour > int64(l.limits.RequestsPerHour) {
		return Reservation{}, l.exceeded(MsgRequestLimit, hour, now)
	}

	minKey := l.key(kindTokens, minute, now)
	hourKey := l.key(kindTokens, hour, now)
	est := int64(estimatedTokens)

	tokMin, err := l.store.IncrBy(ctx, minKey, est, minute.length)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to reserve tokens: %w", err)
	}
	if l.limits.TokensPerMinute > 0 && tokMin > int64(l.limits.TokensPerMinute) {
		l.rollback(ctx, est, minute, minKey)
		return Reservation{}, l.exceeded(MsgTokenLimit, minute, now)
	}

	tokHour, err := l.store.IncrBy(ctx, hourKey, est, hour.length)
	if err != nil {
		l.rollback(ctx, est, minute, minKey)
		return Reservation{}, fmt.Errorf("failed to reserve tokens: %w", err)
	}
	if l.limits.TokensPerHour > 0 && tokHour > int64(l.limits.TokensPerHour) {
		l.rollback(ctx, est, minute, minKey)
		l.rollback(ctx, est, hour, hourKey)
		return Reservation{}, l.exceeded(MsgTokenLimit, hour, now)
	}

	return Reservation{Tokens: estimatedTokens, minuteKey: minKey, hourKey: hourKey}, nil
}

// rollback takes back tokens a rejected reservation just added to key.
func (l *Limiter) rollback(ctx context.Context, tokens int64, w window, key string) {
	if err := l.adjust(ctx, key, -tokens, w); err != nil {
		l.logger.Warn("failed to roll back token reservation",
			"provider", l.provider, "window", w.name, "tokens", tokens, "error", err)
	}
}

// RecordUsage reconciles res with the tokens the provider actually billed.
// A zero Reservation records actualTokens in full. Windows that rolled over
// since the reservation are left alone. Failures are logged, never returned.
func (l *Limiter) RecordUsage(ctx context.Context, res Reservation, actualTokens int) {
	now := l.now()
	actualTokens = max(actualTokens, 0)

	for _, w := range []window{minute, hour} {
		current := l.key(kindTokens, w, now)
		reserved := res.minuteKey
		if w == hour {
			reserved = res.hourKey
		}

		delta := int64(actualTokens)
		if reserved != "" {
			if reserved != current {
				continue
			}
			delta -= int64(res.Tokens)
		}
		if err := l.adjust(ctx, current, delta, w); err != nil {
			l.logger.Warn("failed to record token usage",
				"provider", l.provider, "window", w.name, "delta", delta, "error", err)
		}
	}
}

// Release returns the tokens held by res, for calls that failed terminally.
func (l *Limiter) Release(ctx context.Context, res Reservation) {
	if res.Tokens == 0 {
		return
	}
	l.RecordUsage(ctx, res, 0)
}

// adjust adds delta to key without driving it below zero.
func (l *Limiter) adjust(ctx context.Context, key string, delta int64, w window) error {
	if delta == 0 {
		return nil
	}
	if delta < 0 {
		cur, err := l.store.Counter(ctx, key)
		if err != nil {
			return err
		}
		delta = max(delta, -cur)
		if delta == 0 {
			return nil
		}
	}
	_, err := l.store.IncrBy(ctx, key, delta, w.length)
	return err
}

// WindowUsage reports one quota window.
type WindowUsage struct {
	Used      int64 `json:"used" yaml:"used"`
	Limit     int   `json:"limit" yaml:"limit"`
	Remaining int64 `json:"remaining" yaml:"remaining"`
}

// DimensionUsage reports the minute and hour windows of one dimension.
type DimensionUsage struct {
	PerMinute WindowUsage `json:"per_minute" yaml:"per_minute"`
	PerHour   WindowUsage `json:"per_hour" yaml:"per_hour"`
}

// UsageStats is a snapshot of the current windows.
type UsageStats struct {
	Provider string         `json:"provider" yaml:"provider"`
	Requests DimensionUsage `json:"requests" yaml:"requests"`
	Tokens   DimensionUsage `json:"tokens" yaml:"tokens"`
}

// UsageStats reads the current windows. Remaining never goes below zero.
func (l *Limiter) UsageStats(ctx context.Context) (UsageStats, error) {
	now := l.now()
	stats := UsageStats{Provider: l.provider}

	fields := []struct {
		dst   *WindowUsage
		k     kind
		w     window
		limit int
	}{
		{&stats.Requests.PerMinute, kindRequests, minute, l.limits.RequestsPerMinute},
		{&stats.Requests.PerHour, kindRequests, hour, l.limits.RequestsPerHour},
		{&stats.Tokens.PerMinute, kindTokens, minute, l.limits.TokensPerMinute},
		{&stats.Tokens.PerHour, kindTokens, hour, l.limits.TokensPerHour},
	}
	for _, f := range fields {
		used, err := l.store.Counter(ctx, l.key(f.k, f.w, now))
		if err != nil {
			return UsageStats{}, fmt.Errorf("failed to read %s/%s counter: %w", f.k, f.w.name, err)
		}
		*f.dst = WindowUsage{
			Used:      used,
			Limit:     f.limit,
			Remaining: max(0, int64(f.limit)-used),
		}
	}
	return stats, nil
}

// Reset zeroes the current windows.
func (l *Limiter) Reset(ctx context.Context) error {
	now := l.now()
	keys := []string{
		l.key(kindRequests, minute, now),
		l.key(kindRequests, hour, now),
		l.key(kindTokens, minute, now),
		l.key(kindTokens, hour, now),
	}
	if err := l.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to reset %s limits: %w", l.provider, err)
	}
	l.logger.Debug("rate limits reset", "provider", l.provider)
	return nil
}
