package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func anthropicOK(text ...string) map[string]any {
	blocks := make([]map[string]any, 0, len(text)+1)
	for _, t := range text {
		blocks = append(blocks, map[string]any{"type": "text", "text": t})
	}
	blocks = append(blocks, map[string]any{"type": "tool_use", "id": "ignored"})
	return map[string]any{
		"id":          "msg_123",
		"model":       "claude-3-5-sonnet-20241022",
		"stop_reason": "end_turn",
		"content":     blocks,
		"usage":       map[string]int{"input_tokens": 1000, "output_tokens": 500},
	}
}

func TestAnthropicAdapter_Execute(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		var payload map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/messages" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if got := r.Header.Get("x-api-key"); got != "test-key" {
				t.Errorf("x-api-key = %q", got)
			}
			if got := r.Header.Get("anthropic-version"); got != AnthropicAPIVersion {
				t.Errorf("anthropic-version = %q", got)
			}
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Errorf("unmarshal body: %v", err)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(anthropicOK("Hello, ", "world"))
		}))
		defer server.Close()

		a := NewAnthropicAdapter(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL})
		resp, err := a.Execute(context.Background(), &Request{
			Content:      "translate this",
			SystemPrompt: "you are a translator",
			Options:      map[string]any{"top_p": 0.9},
		})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		if resp.Content != "Hello, world" {
			t.Errorf("Content = %q, want %q", resp.Content, "Hello, world")
		}
		if resp.InputTokens != 1000 || resp.OutputTokens != 500 || resp.Usage.TotalTokens != 1500 {
			t.Errorf("tokens = %d/%d/%d", resp.InputTokens, resp.OutputTokens, resp.Usage.TotalTokens)
		}
		if resp.CostUSD != 0.0105 {
			t.Errorf("CostUSD = %v, want 0.0105", resp.CostUSD)
		}
		if resp.Provider != AnthropicName {
			t.Errorf("Provider = %q", resp.Provider)
		}
		if resp.RequestID == "" {
			t.Error("expected generated request id")
		}
		if !resp.Success() {
			t.Error("Success() = false")
		}

		if payload["system"] != "you are a translator" {
			t.Errorf("system = %v", payload["system"])
		}
		if payload["max_tokens"] != float64(DefaultMaxTokens) {
			t.Errorf("max_tokens = %v", payload["max_tokens"])
		}
		if payload["temperature"] != DefaultTemperature {
			t.Errorf("temperature = %v", payload["temperature"])
		}
		if payload["top_p"] != 0.9 {
			t.Errorf("top_p = %v", payload["top_p"])
		}
	})

	t.Run("status mapping", func(t *testing.T) {
		tests := []struct {
			name      string
			status    int
			header    map[string]string
			check     func(t *testing.T, err error)
			retryable bool
		}{
			{
				name:   "401 invalid credentials",
				status: http.StatusUnauthorized,
				check: func(t *testing.T, err error) {
					if !errors.Is(err, ErrInvalidCredentials) {
						t.Errorf("want ErrInvalidCredentials, got %v", err)
					}
				},
			},
			{
				name:   "429 rate limit with retry-after",
				status: http.StatusTooManyRequests,
				header: map[string]string{"Retry-After": "7"},
				check: func(t *testing.T, err error) {
					var rle *RateLimitError
					if !errors.As(err, &rle) {
						t.Fatalf("want *RateLimitError, got %T", err)
					}
					if rle.RetryAfter != 7*time.Second {
						t.Errorf("RetryAfter = %v, want 7s", rle.RetryAfter)
					}
				},
				retryable: true,
			},
			{
				name:   "500 provider error",
				status: http.StatusInternalServerError,
				check: func(t *testing.T, err error) {
					var pe *ProviderError
					if !errors.As(err, &pe) || pe.StatusCode != 500 {
						t.Errorf("want ProviderError 500, got %v", err)
					}
				},
				retryable: true,
			},
			{
				name:   "400 provider error",
				status: http.StatusBadRequest,
				check: func(t *testing.T, err error) {
					var pe *ProviderError
					if !errors.As(err, &pe) || pe.Body != `{"error":"bad"}` {
						t.Errorf("want ProviderError with body, got %v", err)
					}
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					for k, v := range tt.header {
						w.Header().Set(k, v)
					}
					w.WriteHeader(tt.status)
					w.Write([]byte(`{"error":"bad"}`))
				}))
				defer server.Close()

				a := NewAnthropicAdapter(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
				_, err := a.Execute(context.Background(), &Request{Content: "x"})
				if err == nil {
					t.Fatal("expected error")
				}
				tt.check(t, err)
				if IsRetryable(err) != tt.retryable {
					t.Errorf("IsRetryable = %v, want %v", IsRetryable(err), tt.retryable)
				}
			})
		}
	})

	t.Run("unexpected response shape", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"content":"not-an-array"}`))
		}))
		defer server.Close()

		a := NewAnthropicAdapter(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
		_, err := a.Execute(context.Background(), &Request{Content: "x"})
		var pe *ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("want *ProviderError, got %v", err)
		}
		if IsRetryable(err) {
			t.Error("schema violation should not be retryable")
		}
	})

	t.Run("connection error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		a := NewAnthropicAdapter(AnthropicConfig{APIKey: "k", BaseURL: url})
		_, err := a.Execute(context.Background(), &Request{Content: "x"})
		var ce *ConnectionError
		if !errors.As(err, &ce) {
			t.Fatalf("want *ConnectionError, got %v", err)
		}
		if !IsRetryable(err) {
			t.Error("connection errors should be retryable")
		}
	})

	t.Run("timeout is a connection error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		a := NewAnthropicAdapter(AnthropicConfig{APIKey: "k", BaseURL: server.URL, Timeout: 20 * time.Millisecond})
		_, err := a.Execute(context.Background(), &Request{Content: "x"})
		if Kind(err) != KindConnection {
			t.Errorf("Kind = %q, want %q (err %v)", Kind(err), KindConnection, err)
		}
	})
}

func TestAnthropicAdapter_Validation(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	a := NewAnthropicAdapter(AnthropicConfig{APIKey: "k", BaseURL: server.URL})

	tests := []struct {
		name string
		req  *Request
	}{
		{"nil request", nil},
		{"empty content", &Request{Content: "   "}},
		{"unsupported model", &Request{Content: "x", Model: "gpt-2"}},
		{"temperature too high", &Request{Content: "x", Temperature: Float(1.5)}},
		{"negative max tokens", &Request{Content: "x", MaxTokens: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Execute(context.Background(), tt.req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("want *ValidationError, got %v", err)
			}
			if IsRetryable(err) {
				t.Error("validation errors must not be retryable")
			}
		})
	}

	if hits.Load() != 0 {
		t.Errorf("server received %d requests, want 0", hits.Load())
	}
}

func TestAnthropicAdapter_ExecuteBatchFailFast(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(anthropicOK("ok"))
	}))
	defer server.Close()

	a := NewAnthropicAdapter(AnthropicConfig{APIKey: "k", BaseURL: server.URL})
	reqs := []*Request{{Content: "a"}, {Content: "b"}, {Content: "c"}}

	resps, err := a.ExecuteBatch(context.Background(), reqs)
	if err == nil {
		t.Fatal("expected batch error")
	}
	if resps != nil {
		t.Errorf("expected no partial results, got %d", len(resps))
	}
	if hits.Load() != 2 {
		t.Errorf("server received %d requests, want 2", hits.Load())
	}
}

func TestAnthropicAdapter_ValidateConnectionCached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(anthropicOK("pong"))
	}))
	defer server.Close()

	a := NewAnthropicAdapter(AnthropicConfig{APIKey: "k", BaseURL: server.URL, ConnCacheTTL: time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	if !a.ValidateConnection(context.Background()) {
		t.Fatal("ValidateConnection() = false")
	}
	if !a.ValidateConnection(context.Background()) {
		t.Fatal("cached ValidateConnection() = false")
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1 (cached)", hits.Load())
	}

	now = now.Add(2 * time.Minute)
	a.ValidateConnection(context.Background())
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2 after TTL", hits.Load())
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"garbage", 0},
		{"-3", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > 31*time.Second {
		t.Errorf("parseRetryAfter(http-date) = %v", got)
	}
}

// TestAnthropicIntegration runs a real call against the Anthropic API.
// Requires ANTHROPIC_API_KEY to be set.
func TestAnthropicIntegration(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.HasAnthropic() {
		t.Skip("ANTHROPIC_API_KEY not set - skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := NewAnthropicAdapter(AnthropicConfig{APIKey: cfg.AnthropicAPIKey, DefaultModel: "claude-3-5-haiku-20241022"})
	resp, err := a.Execute(ctx, &Request{Content: "Say 'hello' and nothing else.", MaxTokens: 10, Temperature: Float(0)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Content == "" {
		t.Error("expected content")
	}
	t.Logf("Response: %s (cost $%.6f)", resp.Content, resp.CostUSD)
}
