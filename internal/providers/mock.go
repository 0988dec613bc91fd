package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockAdapter is a deterministic Adapter for tests and offline runs.
// With no ResponseFunc it echoes the request content.
type MockAdapter struct {
	// Configurable behavior
	Latency      time.Duration
	FailAfter    int   // Fail every request after the first N (0 = never)
	Err          error // Returned instead of a response when non-nil
	ResponseFunc func(req *Request) string
	Model        string
	Connected    bool

	costs *CostCalculator

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []*Request
}

// NewMockAdapter creates a mock adapter with sensible defaults.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		Model:     "mock-model",
		Connected: true,
		costs:     NewCostCalculator(nil, ModelRates{}),
	}
}

// Name returns the adapter identifier.
func (m *MockAdapter) Name() string {
	return MockName
}

// SupportedModels returns the single mock model.
func (m *MockAdapter) SupportedModels() []string {
	return []string{m.Model}
}

// ValidateConnection reports the Connected field.
func (m *MockAdapter) ValidateConnection(ctx context.Context) bool {
	return m.Connected
}

// Execute records req and returns a canned response.
func (m *MockAdapter) Execute(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	count := m.requestCount.Add(1)

	if req == nil || req.Content == "" {
		return nil, &ValidationError{Field: "content", Message: "content is required"}
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if m.FailAfter > 0 && int(count) > m.FailAfter {
		return nil, &ProviderError{Provider: MockName, StatusCode: 500, Body: fmt.Sprintf("mock failure after %d requests", m.FailAfter)}
	}

	content := req.Content
	if m.ResponseFunc != nil {
		content = m.ResponseFunc(req)
	}

	in := CountTokens(req.SystemPrompt+req.Content, m.Model)
	out := CountTokens(content, m.Model)
	requestID := req.RequestID
	if requestID == "" {
		requestID = fmt.Sprintf("mock-%d", count)
	}

	return &Response{
		Content:       content,
		Provider:      MockName,
		Model:         m.Model,
		InputTokens:   in,
		OutputTokens:  out,
		Usage:         Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
		CostUSD:       m.costs.Calculate(in, out, m.Model),
		ExecutionTime: time.Since(start),
		StopReason:    "end_turn",
		RequestID:     requestID,
	}, nil
}

// ExecuteBatch runs requests sequentially and aborts on the first error.
func (m *MockAdapter) ExecuteBatch(ctx context.Context, reqs []*Request) ([]*Response, error) {
	out := make([]*Response, 0, len(reqs))
	for i, req := range reqs {
		resp, err := m.Execute(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("batch request %d of %d: %w", i+1, len(reqs), err)
		}
		out = append(out, resp)
	}
	return out, nil
}

// RequestCount returns the number of Execute calls.
func (m *MockAdapter) RequestCount() int64 {
	return m.requestCount.Load()
}

// Requests returns the requests received so far.
func (m *MockAdapter) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Request(nil), m.requests...)
}

// Reset clears the request log.
func (m *MockAdapter) Reset() {
	m.requestCount.Store(0)
	m.mu.Lock()
	m.requests = nil
	m.mu.Unlock()
}

var _ Adapter = (*MockAdapter)(nil)
