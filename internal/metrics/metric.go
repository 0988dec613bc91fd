// Package metrics tracks provider usage and cost per call, per hour and per
// day. Records live in a store.Store so every worker writes to one ledger.
package metrics

import (
	"slices"
	"time"
)

// Metric is one recorded provider call, successful or not.
type Metric struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Attribution
	DocumentType  string `json:"document_type,omitempty" yaml:"document_type,omitempty"`
	OperationType string `json:"operation_type,omitempty" yaml:"operation_type,omitempty"`
	RequestID     string `json:"request_id,omitempty" yaml:"request_id,omitempty"`

	// Provider info
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`

	// Cost and tokens
	CostUSD      float64 `json:"cost_usd,omitempty" yaml:"cost_usd,omitempty"`
	InputTokens  int     `json:"input_tokens,omitempty" yaml:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty" yaml:"output_tokens,omitempty"`
	TotalTokens  int     `json:"total_tokens,omitempty" yaml:"total_tokens,omitempty"`

	ExecutionSeconds float64 `json:"execution_seconds,omitempty" yaml:"execution_seconds,omitempty"`

	// Status
	Success      bool   `json:"success" yaml:"success"`
	ErrorType    string `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Daily aggregates one UTC day of metrics.
type Daily struct {
	Date string `json:"date" yaml:"date"`

	TotalRequests      int `json:"total_requests" yaml:"total_requests"`
	SuccessfulRequests int `json:"successful_requests" yaml:"successful_requests"`
	FailedRequests     int `json:"failed_requests" yaml:"failed_requests"`

	InputTokens  int     `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int     `json:"output_tokens" yaml:"output_tokens"`
	TotalTokens  int     `json:"total_tokens" yaml:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd" yaml:"total_cost_usd"`

	// Running mean over successful calls.
	AvgExecutionSeconds float64 `json:"avg_execution_seconds" yaml:"avg_execution_seconds"`

	Models         []string `json:"models" yaml:"models"`
	DocumentTypes  []string `json:"document_types" yaml:"document_types"`
	OperationTypes []string `json:"operation_types" yaml:"operation_types"`
}

// add folds m into the aggregate.
func (d *Daily) add(m Metric) {
	d.TotalRequests++
	// Tokens and cost are billed whether or not the response was usable.
	d.InputTokens += m.InputTokens
	d.OutputTokens += m.OutputTokens
	d.TotalTokens += m.TotalTokens
	d.TotalCostUSD += m.CostUSD
	if !m.Success {
		d.FailedRequests++
	} else {
		d.SuccessfulRequests++
		n := float64(d.SuccessfulRequests)
		d.AvgExecutionSeconds += (m.ExecutionSeconds - d.AvgExecutionSeconds) / n
	}
	d.Models = addDistinct(d.Models, m.Model)
	d.DocumentTypes = addDistinct(d.DocumentTypes, m.DocumentType)
	d.OperationTypes = addDistinct(d.OperationTypes, m.OperationType)
}

// addDistinct inserts v into the sorted set s.
func addDistinct(s []string, v string) []string {
	if v == "" {
		return s
	}
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}

// Failure is a recent failed call, kept for diagnosis.
type Failure struct {
	Timestamp     time.Time `json:"timestamp" yaml:"timestamp"`
	Provider      string    `json:"provider,omitempty" yaml:"provider,omitempty"`
	ErrorType     string    `json:"error_type" yaml:"error_type"`
	ErrorMessage  string    `json:"error_message" yaml:"error_message"`
	DocumentType  string    `json:"document_type,omitempty" yaml:"document_type,omitempty"`
	OperationType string    `json:"operation_type,omitempty" yaml:"operation_type,omitempty"`
}
