package metrics

import "sort"

// Hourly summarizes the entries buffered for one hour.
type Hourly struct {
	Hour string `json:"hour" yaml:"hour"`

	Requests   int `json:"requests" yaml:"requests"`
	Successful int `json:"successful" yaml:"successful"`
	Failed     int `json:"failed" yaml:"failed"`

	TotalTokens  int     `json:"total_tokens" yaml:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd" yaml:"total_cost_usd"`

	// Latency percentiles over successful calls (seconds)
	LatencyP50 float64 `json:"latency_p50" yaml:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95" yaml:"latency_p95"`
	LatencyMax float64 `json:"latency_max" yaml:"latency_max"`

	CostByModel map[string]float64 `json:"cost_by_model,omitempty" yaml:"cost_by_model,omitempty"`
}

func summarizeHour(hour string, entries []Metric) Hourly {
	h := Hourly{Hour: hour, Requests: len(entries)}

	var latencies []float64
	for _, m := range entries {
		h.TotalTokens += m.TotalTokens
		h.TotalCostUSD += m.CostUSD
		if m.Model != "" {
			if h.CostByModel == nil {
				h.CostByModel = make(map[string]float64)
			}
			h.CostByModel[m.Model] += m.CostUSD
		}
		if !m.Success {
			h.Failed++
			continue
		}
		h.Successful++
		if m.ExecutionSeconds > 0 {
			latencies = append(latencies, m.ExecutionSeconds)
		}
	}

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		h.LatencyMax = latencies[len(latencies)-1]
		h.LatencyP50 = percentile(latencies, 50)
		h.LatencyP95 = percentile(latencies, 95)
	}
	return h
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
