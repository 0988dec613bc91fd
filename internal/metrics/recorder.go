package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/store"
)

const (
	hourLayout = "2006-01-02T15"
	dayLayout  = "2006-01-02"

	hourlyPrefix = "metrics:hourly:"
	dailyPrefix  = "metrics:daily:"
	failuresKey  = "metrics:failures"
)

// Config bounds what the recorder keeps.
type Config struct {
	// HourlyCapacity caps per-hour entries; the oldest are dropped.
	HourlyCapacity int `mapstructure:"hourly_capacity" yaml:"hourly_capacity" json:"hourly_capacity"`
	// RecentFailures caps the failure list.
	RecentFailures int `mapstructure:"recent_failures" yaml:"recent_failures" json:"recent_failures"`
	// RetentionDays is how long daily aggregates live.
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days" json:"retention_days"`
}

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{
		HourlyCapacity: 1000,
		RecentFailures: 10,
		RetentionDays:  90,
	}
}

// Recorder handles recording metrics to the store.
type Recorder struct {
	store  store.Store
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewRecorder creates a new metrics recorder. Non-positive bounds take defaults.
func NewRecorder(st store.Store, cfg Config) *Recorder {
	def := DefaultConfig()
	if cfg.HourlyCapacity <= 0 {
		cfg.HourlyCapacity = def.HourlyCapacity
	}
	if cfg.RecentFailures <= 0 {
		cfg.RecentFailures = def.RecentFailures
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = def.RetentionDays
	}
	return &Recorder{store: st, cfg: cfg, now: time.Now, logger: slog.Default()}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetClock replaces the time source.
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

// RecordTranslation records a completed provider call with its tokens and
// cost. A response that Success reports as unusable is recorded as failed.
func (r *Recorder) RecordTranslation(ctx context.Context, resp *providers.Response, documentType, operationType string) error {
	if resp == nil {
		return fmt.Errorf("nil provider response")
	}
	m := Metric{
		DocumentType:  documentType,
		OperationType: operationType,
		RequestID:     resp.RequestID,

		Provider: resp.Provider,
		Model:    resp.Model,

		CostUSD:      resp.CostUSD,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		TotalTokens:  resp.TotalTokens(),

		ExecutionSeconds: resp.ExecutionTime.Seconds(),
		Success:          resp.Success(),
	}
	if err := resp.Err(); err != nil {
		m.ErrorType = providers.Kind(err)
		m.ErrorMessage = err.Error()
	}
	return r.Record(ctx, m)
}

// RecordFailure records a failed provider call.
func (r *Recorder) RecordFailure(ctx context.Context, callErr error, documentType, operationType string) error {
	if callErr == nil {
		return fmt.Errorf("nil error")
	}
	m := Metric{
		DocumentType:  documentType,
		OperationType: operationType,
		Provider:      providerOf(callErr),
		Success:       false,
		ErrorType:     providers.Kind(callErr),
		ErrorMessage:  callErr.Error(),
	}
	return r.Record(ctx, m)
}

// Record stores m in the hourly buffer and the daily aggregate, and in the
// recent failure list when it failed.
func (r *Recorder) Record(ctx context.Context, m Metric) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = r.now()
	}
	m.Timestamp = m.Timestamp.UTC()

	err := updateJSON(ctx, r.store, hourlyPrefix+m.Timestamp.Format(hourLayout), 48*time.Hour, func(entries *[]Metric) {
		*entries = append(*entries, m)
		if over := len(*entries) - r.cfg.HourlyCapacity; over > 0 {
			*entries = (*entries)[over:]
		}
	})
	if err != nil {
		return fmt.Errorf("failed to record hourly metric: %w", err)
	}

	day := m.Timestamp.Format(dayLayout)
	retention := time.Duration(r.cfg.RetentionDays) * 24 * time.Hour
	err = updateJSON(ctx, r.store, dailyPrefix+day, retention, func(d *Daily) {
		d.Date = day
		d.add(m)
	})
	if err != nil {
		return fmt.Errorf("failed to record daily metric: %w", err)
	}

	if !m.Success {
		f := Failure{
			Timestamp:     m.Timestamp,
			Provider:      m.Provider,
			ErrorType:     m.ErrorType,
			ErrorMessage:  m.ErrorMessage,
			DocumentType:  m.DocumentType,
			OperationType: m.OperationType,
		}
		err = updateJSON(ctx, r.store, failuresKey, 0, func(list *[]Failure) {
			*list = append([]Failure{f}, *list...)
			if len(*list) > r.cfg.RecentFailures {
				*list = (*list)[:r.cfg.RecentFailures]
			}
		})
		if err != nil {
			return fmt.Errorf("failed to record failure: %w", err)
		}
	}

	r.logger.Debug("recorded metric",
		"provider", m.Provider,
		"model", m.Model,
		"success", m.Success,
		"tokens", m.TotalTokens,
		"cost_usd", m.CostUSD,
	)
	return nil
}

// updateJSON decodes the blob at key into T, applies fn and writes it back
// atomically.
func updateJSON[T any](ctx context.Context, st store.Store, key string, ttl time.Duration, fn func(*T)) error {
	return st.Update(ctx, key, ttl, func(old []byte) ([]byte, error) {
		var v T
		if len(old) > 0 {
			if err := json.Unmarshal(old, &v); err != nil {
				return nil, fmt.Errorf("corrupt metrics record %s: %w", key, err)
			}
		}
		fn(&v)
		return json.Marshal(v)
	})
}

// getJSON decodes the blob at key into T. Missing keys yield the zero value.
func getJSON[T any](ctx context.Context, st store.Store, key string) (T, bool, error) {
	var v T
	raw, ok, err := st.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("corrupt metrics record %s: %w", key, err)
	}
	return v, true, nil
}

// providerOf extracts the provider name carried by typed provider errors.
func providerOf(err error) string {
	var (
		connErr *providers.ConnectionError
		rateErr *providers.RateLimitError
		provErr *providers.ProviderError
	)
	switch {
	case errors.As(err, &connErr):
		return connErr.Provider
	case errors.As(err, &rateErr):
		return rateErr.Provider
	case errors.As(err, &provErr):
		return provErr.Provider
	}
	return ""
}
