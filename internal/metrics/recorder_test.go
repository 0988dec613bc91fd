package metrics

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackzampolin/docket/internal/providers"
	"github.com/jackzampolin/docket/internal/store"
)

func newRecorder(t *testing.T, cfg Config) (*Recorder, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)
	st := store.NewMemory()
	st.SetClock(func() time.Time { return now })
	r := NewRecorder(st, cfg)
	r.SetClock(func() time.Time { return now })
	return r, &now
}

func response(model string, in, out int, cost float64, secs float64) *providers.Response {
	return &providers.Response{
		Provider:      "anthropic",
		Model:         model,
		InputTokens:   in,
		OutputTokens:  out,
		CostUSD:       cost,
		ExecutionTime: time.Duration(secs * float64(time.Second)),
		Content:       "translated",
		StopReason:    "end_turn",
	}
}

func TestRecordTranslation(t *testing.T) {
	ctx := context.Background()
	r, _ := newRecorder(t, DefaultConfig())

	if err := r.RecordTranslation(ctx, response("claude-a", 100, 50, 0.01, 2), "contract", "translate"); err != nil {
		t.Fatalf("RecordTranslation() error = %v", err)
	}
	if err := r.RecordTranslation(ctx, response("claude-b", 200, 100, 0.02, 4), "lease", "translate"); err != nil {
		t.Fatal(err)
	}

	usage, err := r.CurrentUsage(ctx)
	if err != nil {
		t.Fatalf("CurrentUsage() error = %v", err)
	}
	day := usage.Day
	if day.Date != "2025-06-10" {
		t.Errorf("Date = %q", day.Date)
	}
	if day.TotalRequests != 2 || day.SuccessfulRequests != 2 || day.FailedRequests != 0 {
		t.Errorf("requests = %d/%d/%d", day.TotalRequests, day.SuccessfulRequests, day.FailedRequests)
	}
	if day.InputTokens != 300 || day.OutputTokens != 150 || day.TotalTokens != 450 {
		t.Errorf("tokens = %d/%d/%d", day.InputTokens, day.OutputTokens, day.TotalTokens)
	}
	if day.AvgExecutionSeconds != 3 {
		t.Errorf("AvgExecutionSeconds = %v, want 3", day.AvgExecutionSeconds)
	}
	if len(day.Models) != 2 || day.Models[0] != "claude-a" {
		t.Errorf("Models = %v", day.Models)
	}
	if len(day.DocumentTypes) != 2 || len(day.OperationTypes) != 1 {
		t.Errorf("DocumentTypes = %v, OperationTypes = %v", day.DocumentTypes, day.OperationTypes)
	}

	if usage.Hour.Hour != "2025-06-10T14" || usage.Hour.Requests != 2 {
		t.Errorf("hour = %+v", usage.Hour)
	}
	if usage.Hour.LatencyP50 != 3 || usage.Hour.LatencyMax != 4 {
		t.Errorf("latency p50=%v max=%v", usage.Hour.LatencyP50, usage.Hour.LatencyMax)
	}

	if err := r.RecordTranslation(ctx, nil, "", ""); err == nil {
		t.Error("expected error for nil response")
	}
}

func TestRecordTranslation_UnusableResponse(t *testing.T) {
	ctx := context.Background()
	r, _ := newRecorder(t, DefaultConfig())

	empty := response("claude-a", 120, 0, 0.01, 1)
	empty.Content = ""
	stopped := response("claude-a", 80, 10, 0.01, 1)
	stopped.StopReason = providers.StopReasonError
	for _, resp := range []*providers.Response{empty, stopped} {
		if err := r.RecordTranslation(ctx, resp, "contract", "translate"); err != nil {
			t.Fatalf("RecordTranslation() error = %v", err)
		}
	}

	stats, err := r.Stats(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Totals.SuccessfulRequests != 0 || stats.Totals.FailedRequests != 2 {
		t.Errorf("totals = %+v", stats.Totals)
	}
	// Unusable responses are still billed.
	if stats.Totals.InputTokens != 200 {
		t.Errorf("InputTokens = %d, want 200", stats.Totals.InputTokens)
	}
	if len(stats.RecentFailures) != 2 {
		t.Fatalf("RecentFailures = %d, want 2", len(stats.RecentFailures))
	}
	for _, f := range stats.RecentFailures {
		if f.ErrorType != providers.KindProvider || f.Provider != "anthropic" {
			t.Errorf("failure = %+v", f)
		}
	}
}

func TestRecordFailure(t *testing.T) {
	ctx := context.Background()
	r, now := newRecorder(t, Config{RecentFailures: 3})

	for i := 0; i < 5; i++ {
		*now = now.Add(time.Second)
		err := &providers.RateLimitError{Provider: "anthropic", Message: fmt.Sprintf("limit %d", i)}
		if err := r.RecordFailure(ctx, fmt.Errorf("call: %w", err), "contract", "translate"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	stats, err := r.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if len(stats.RecentFailures) != 3 {
		t.Fatalf("RecentFailures = %d, want 3", len(stats.RecentFailures))
	}
	first := stats.RecentFailures[0]
	if first.ErrorType != providers.KindRateLimit || first.Provider != "anthropic" {
		t.Errorf("first failure = %+v", first)
	}
	if first.ErrorMessage != "call: anthropic: limit 4" {
		t.Errorf("most recent first, got %q", first.ErrorMessage)
	}
	if stats.Totals.FailedRequests != 5 || stats.Totals.SuccessRate != 0 {
		t.Errorf("totals = %+v", stats.Totals)
	}

	if err := r.RecordFailure(ctx, nil, "", ""); err == nil {
		t.Error("expected error for nil failure")
	}
}

func TestHourlyCapacity(t *testing.T) {
	ctx := context.Background()
	r, now := newRecorder(t, Config{HourlyCapacity: 3})

	for i := 1; i <= 5; i++ {
		r.RecordTranslation(ctx, response("m", i, 0, 0, 1), "", "")
	}
	entries, err := r.HourMetrics(ctx, *now)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].InputTokens != 3 {
		t.Errorf("oldest kept = %d, want 3", entries[0].InputTokens)
	}

	// The daily aggregate keeps everything.
	usage, _ := r.CurrentUsage(ctx)
	if usage.Day.TotalRequests != 5 {
		t.Errorf("daily TotalRequests = %d, want 5", usage.Day.TotalRequests)
	}
}

func TestStatsAcrossDays(t *testing.T) {
	ctx := context.Background()
	r, now := newRecorder(t, DefaultConfig())

	r.RecordTranslation(ctx, response("m", 10, 10, 1.0, 1), "", "")
	*now = now.AddDate(0, 0, 1)
	r.RecordTranslation(ctx, response("m", 10, 10, 2.0, 1), "", "")
	r.RecordFailure(ctx, errors.New("boom"), "", "")
	*now = now.AddDate(0, 0, 2)
	r.RecordTranslation(ctx, response("m", 10, 10, 4.0, 1), "", "")

	stats, err := r.Stats(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Start != "2025-06-11" || stats.End != "2025-06-13" {
		t.Errorf("period = %s..%s", stats.Start, stats.End)
	}
	if len(stats.Daily) != 2 {
		t.Fatalf("Daily = %d, want 2 (empty day omitted, first day out of range)", len(stats.Daily))
	}
	if stats.Totals.TotalCostUSD != 6 || stats.Totals.TotalRequests != 3 {
		t.Errorf("totals = %+v", stats.Totals)
	}
	if stats.Totals.AvgCostUSD != 3 {
		t.Errorf("AvgCostUSD = %v, want 3", stats.Totals.AvgCostUSD)
	}
	if stats.RecentFailures[0].ErrorType != providers.KindUnknown {
		t.Errorf("ErrorType = %q", stats.RecentFailures[0].ErrorType)
	}
}

func TestRecorderSQLite(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer st.Close()

	r := NewRecorder(st, DefaultConfig())
	for i := 0; i < 3; i++ {
		if err := r.RecordTranslation(ctx, response("m", 1, 1, 0.5, 1), "contract", "translate"); err != nil {
			t.Fatal(err)
		}
	}
	usage, err := r.CurrentUsage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if usage.Day.TotalRequests != 3 || usage.Day.TotalCostUSD != 1.5 {
		t.Errorf("day = %+v", usage.Day)
	}
}

func TestPercentile(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 2.5},
		{100, 4},
	}
	for _, tt := range tests {
		if got := percentile(vals, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if percentile(nil, 50) != 0 {
		t.Error("empty percentile")
	}
}
