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

func TestOpenAIAdapter_Execute(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization: %s", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "Bonjour"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 2000, "completion_tokens": 1000, "total_tokens": 3000},
		})
	}))
	defer server.Close()

	a := NewOpenAIAdapter(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL})
	resp, err := a.Execute(context.Background(), &Request{Content: "Hello", SystemPrompt: "translate"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if resp.Content != "Bonjour" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.InputTokens != 2000 || resp.OutputTokens != 1000 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	// gpt-4o: 2.50 in, 10.00 out per million
	if resp.CostUSD != 0.015 {
		t.Errorf("CostUSD = %v, want 0.015", resp.CostUSD)
	}
	if resp.StopReason != "stop" {
		t.Errorf("StopReason = %q", resp.StopReason)
	}

	msgs, _ := payload["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if payload["max_completion_tokens"] != float64(DefaultMaxTokens) {
		t.Errorf("max_completion_tokens = %v", payload["max_completion_tokens"])
	}
}

func TestOpenAIAdapter_Errors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
		}))
		defer server.Close()

		a := NewOpenAIAdapter(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
		_, err := a.Execute(context.Background(), &Request{Content: "x"})

		var rle *RateLimitError
		if !errors.As(err, &rle) {
			t.Fatalf("want *RateLimitError, got %v", err)
		}
		if rle.RetryAfter != 3*time.Second {
			t.Errorf("RetryAfter = %v, want 3s", rle.RetryAfter)
		}
		if hits.Load() != 1 {
			t.Errorf("hits = %d, SDK retries should be disabled", hits.Load())
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key"}}`))
		}))
		defer server.Close()

		a := NewOpenAIAdapter(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
		_, err := a.Execute(context.Background(), &Request{Content: "x"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("want ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unsupported model", func(t *testing.T) {
		a := NewOpenAIAdapter(OpenAIConfig{APIKey: "k", BaseURL: "http://127.0.0.1:0"})
		_, err := a.Execute(context.Background(), &Request{Content: "x", Model: "claude-3-opus-20240229"})
		if !errors.Is(err, ErrUnsupportedModel) {
			t.Errorf("want ErrUnsupportedModel, got %v", err)
		}
	})
}
