package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", &ValidationError{Message: "x"}, false},
		{"parsing", &ParsingError{Message: "x"}, false},
		{"credentials", fmt.Errorf("wrap: %w", ErrInvalidCredentials), false},
		{"connection", &ConnectionError{Provider: "p", Err: errors.New("reset")}, true},
		{"rate limit", &RateLimitError{Provider: "p"}, true},
		{"wrapped rate limit", fmt.Errorf("call: %w", &RateLimitError{Provider: "p"}), true},
		{"503", &ProviderError{StatusCode: 503}, true},
		{"529 overloaded", &ProviderError{StatusCode: 529}, true},
		{"408", &ProviderError{StatusCode: 408}, true},
		{"400", &ProviderError{StatusCode: 400}, false},
		{"404", &ProviderError{StatusCode: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestKindAndRetryAfter(t *testing.T) {
	rle := &RateLimitError{Provider: "anthropic", Message: "Token rate limit exceeded", RetryAfter: 12 * time.Second}
	if Kind(rle) != KindRateLimit {
		t.Errorf("Kind = %q", Kind(rle))
	}
	if RetryAfter(fmt.Errorf("x: %w", rle)) != 12*time.Second {
		t.Errorf("RetryAfter = %v", RetryAfter(rle))
	}
	if RetryAfter(errors.New("x")) != 0 {
		t.Error("RetryAfter of plain error should be 0")
	}
	if Kind(&ParsingError{}) != KindParsing {
		t.Error("parsing kind")
	}
	if Kind(fmt.Errorf("a: %w", ErrInvalidCredentials)) != KindAuth {
		t.Error("auth kind")
	}
	if Kind(nil) != "" {
		t.Error("nil kind")
	}
}

func TestErrorMessages(t *testing.T) {
	pe := &ParsingError{Message: "missing anchors", TextSize: 120, AnchorCount: 2, Missing: []string{"a"}}
	want := "parsing failed: missing anchors (text size 120, anchors found 2, missing 1)"
	if pe.Error() != want {
		t.Errorf("Error() = %q, want %q", pe.Error(), want)
	}

	ve := &ValidationError{Field: "content", Message: "content is required"}
	if ve.Error() != "validation failed for content: content is required" {
		t.Errorf("Error() = %q", ve.Error())
	}
}
