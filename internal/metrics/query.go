package metrics

import (
	"context"
	"fmt"
	"time"
)

// Totals sums daily aggregates over a period.
type Totals struct {
	TotalRequests      int     `json:"total_requests" yaml:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests" yaml:"successful_requests"`
	FailedRequests     int     `json:"failed_requests" yaml:"failed_requests"`
	SuccessRate        float64 `json:"success_rate" yaml:"success_rate"`
	InputTokens        int     `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens       int     `json:"output_tokens" yaml:"output_tokens"`
	TotalTokens        int     `json:"total_tokens" yaml:"total_tokens"`
	TotalCostUSD       float64 `json:"total_cost_usd" yaml:"total_cost_usd"`
	AvgCostUSD         float64 `json:"avg_cost_usd" yaml:"avg_cost_usd"`
}

// Stats covers the last Days days, oldest first.
type Stats struct {
	Days           int       `json:"days" yaml:"days"`
	Start          string    `json:"start" yaml:"start"`
	End            string    `json:"end" yaml:"end"`
	Totals         Totals    `json:"totals" yaml:"totals"`
	Daily          []Daily   `json:"daily" yaml:"daily"`
	RecentFailures []Failure `json:"recent_failures" yaml:"recent_failures"`
}

// Stats aggregates the daily records of the last days days, including
// today. Days without activity are omitted from the breakdown.
func (r *Recorder) Stats(ctx context.Context, days int) (*Stats, error) {
	if days <= 0 {
		days = 1
	}
	today := r.now().UTC()
	start := today.AddDate(0, 0, -(days - 1))

	s := &Stats{
		Days:  days,
		Start: start.Format(dayLayout),
		End:   today.Format(dayLayout),
		Daily: []Daily{},
	}
	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d).Format(dayLayout)
		agg, ok, err := getJSON[Daily](ctx, r.store, dailyPrefix+day)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", day, err)
		}
		if !ok {
			continue
		}
		s.Daily = append(s.Daily, agg)
		s.Totals.add(agg)
	}
	s.Totals.finish()

	failures, _, err := getJSON[[]Failure](ctx, r.store, failuresKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent failures: %w", err)
	}
	if failures == nil {
		failures = []Failure{}
	}
	s.RecentFailures = failures
	return s, nil
}

func (t *Totals) add(d Daily) {
	t.TotalRequests += d.TotalRequests
	t.SuccessfulRequests += d.SuccessfulRequests
	t.FailedRequests += d.FailedRequests
	t.InputTokens += d.InputTokens
	t.OutputTokens += d.OutputTokens
	t.TotalTokens += d.TotalTokens
	t.TotalCostUSD += d.TotalCostUSD
}

func (t *Totals) finish() {
	if t.TotalRequests > 0 {
		t.SuccessRate = float64(t.SuccessfulRequests) / float64(t.TotalRequests)
	}
	if t.SuccessfulRequests > 0 {
		t.AvgCostUSD = t.TotalCostUSD / float64(t.SuccessfulRequests)
	}
}

// Usage is a snapshot of the current hour and day.
type Usage struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Hour      Hourly    `json:"current_hour" yaml:"current_hour"`
	Day       Daily     `json:"current_day" yaml:"current_day"`
}

// CurrentUsage returns the current hour and day snapshots.
func (r *Recorder) CurrentUsage(ctx context.Context) (*Usage, error) {
	now := r.now().UTC()

	entries, _, err := getJSON[[]Metric](ctx, r.store, hourlyPrefix+now.Format(hourLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to read current hour: %w", err)
	}
	day, _, err := getJSON[Daily](ctx, r.store, dailyPrefix+now.Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to read current day: %w", err)
	}
	if day.Date == "" {
		day.Date = now.Format(dayLayout)
	}

	return &Usage{
		Timestamp: now,
		Hour:      summarizeHour(now.Format(hourLayout), entries),
		Day:       day,
	}, nil
}

// HourMetrics returns the raw entries recorded in the hour containing t.
func (r *Recorder) HourMetrics(ctx context.Context, t time.Time) ([]Metric, error) {
	entries, _, err := getJSON[[]Metric](ctx, r.store, hourlyPrefix+t.UTC().Format(hourLayout))
	return entries, err
}
