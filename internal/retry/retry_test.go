package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/docket/internal/providers"
)

// recordingTimer fires immediately and records requested sleeps.
type recordingTimer struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordingTimer) After(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func newTestHandler(cfg Config) (*Handler, *recordingTimer) {
	h := New(cfg)
	timer := &recordingTimer{}
	h.timer = timer
	return h, timer
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	h, timer := newTestHandler(Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute})

	calls := 0
	connErr := &providers.ConnectionError{Provider: "anthropic", Err: errors.New("reset")}
	err := h.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return connErr
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if err != connErr {
		t.Errorf("err = %v, want the original connection error", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(timer.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", timer.sleeps, want)
	}
	for i := range want {
		if timer.sleeps[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, timer.sleeps[i], want[i])
		}
	}
}

func TestDo_NonRetryableReturnsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", &providers.ValidationError{Field: "content", Message: "content is required"}},
		{"unsupported model", providers.ErrUnsupportedModel},
		{"bad request", &providers.ProviderError{StatusCode: 400}},
		{"parsing", &providers.ParsingError{Message: "no anchors"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, timer := newTestHandler(DefaultConfig())
			calls := 0
			err := h.Do(context.Background(), func(ctx context.Context) error {
				calls++
				return tt.err
			})
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
			if len(timer.sleeps) != 0 {
				t.Errorf("slept %v", timer.sleeps)
			}
		})
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	h, _ := newTestHandler(DefaultConfig())
	calls := 0
	err := h.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return &providers.ProviderError{StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_HonorsRetryAfter(t *testing.T) {
	h, timer := newTestHandler(Config{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 30 * time.Second, HonorRetryAfter: true})
	h.Do(context.Background(), func(ctx context.Context) error {
		return &providers.RateLimitError{Provider: "anthropic", RetryAfter: 7 * time.Second}
	})
	if len(timer.sleeps) != 1 || timer.sleeps[0] != 7*time.Second {
		t.Errorf("sleeps = %v, want [7s]", timer.sleeps)
	}
}

func TestDelay(t *testing.T) {
	h := New(Config{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 10 * time.Second, HonorRetryAfter: true})
	plain := errors.New("x")

	tests := []struct {
		attempt int
		err     error
		want    time.Duration
	}{
		{1, plain, time.Second},
		{2, plain, 2 * time.Second},
		{3, plain, 4 * time.Second},
		{4, plain, 8 * time.Second},
		{5, plain, 10 * time.Second},
		{60, plain, 10 * time.Second},
		{1, &providers.RateLimitError{RetryAfter: 3 * time.Second}, 3 * time.Second},
		{1, &providers.RateLimitError{RetryAfter: time.Hour}, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := h.Delay(tt.attempt, tt.err); got != tt.want {
			t.Errorf("Delay(%d, %v) = %v, want %v", tt.attempt, tt.err, got, tt.want)
		}
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	h := New(Config{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- h.Do(ctx, func(ctx context.Context) error {
			calls++
			return &providers.ConnectionError{Provider: "p", Err: errors.New("down")}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoValue(t *testing.T) {
	h, _ := newTestHandler(DefaultConfig())
	calls := 0
	got, err := DoValue(context.Background(), h, func(ctx context.Context) (*providers.Response, error) {
		calls++
		if calls == 1 {
			return nil, &providers.RateLimitError{Provider: "p"}
		}
		return &providers.Response{Content: "done"}, nil
	})
	if err != nil {
		t.Fatalf("DoValue() error = %v", err)
	}
	if got.Content != "done" || calls != 2 {
		t.Errorf("got %q after %d calls", got.Content, calls)
	}
}
