package monitor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// latencies kept per outcome; older samples are dropped
const maxLatencySamples = 1024

type requestBuffer struct {
	mutex sync.Mutex

	successLatencies []float64
	failureLatencies []float64

	requestCount   int64
	explicitErrors int64 // 4xx
	implicitErrors int64 // 5xx
	policyErrors   int64 // 401, 403, 429
	maxConcurrent  int64
	maxGoroutines  int

	concurrent int64
}

var requestMetrics = &requestBuffer{}

type LatencySummary struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
}

type RequestSummary struct {
	RequestCount   int64          `json:"request_count"`
	ExplicitErrors int64          `json:"explicit_errors"`
	ImplicitErrors int64          `json:"implicit_errors"`
	PolicyErrors   int64          `json:"policy_errors"`
	ErrorRate      float64        `json:"error_rate"` // percent
	Concurrent     int64          `json:"concurrent"`
	MaxConcurrent  int64          `json:"max_concurrent"`
	MaxGoroutines  int            `json:"max_goroutines"`
	Success        LatencySummary `json:"success_latency"`
	Failure        LatencySummary `json:"failure_latency"`
}

func IncrementConcurrent() {
	current := atomic.AddInt64(&requestMetrics.concurrent, 1)
	requestMetrics.mutex.Lock()
	if current > requestMetrics.maxConcurrent {
		requestMetrics.maxConcurrent = current
	}
	requestMetrics.mutex.Unlock()
}

func DecrementConcurrent() {
	atomic.AddInt64(&requestMetrics.concurrent, -1)
}

func RecordRequest(latency time.Duration, statusCode int) {
	requestMetrics.record(latency, statusCode)
}

// Summary returns the figures collected since start or the last Reset.
func Summary() RequestSummary {
	return requestMetrics.summary()
}

func Reset() {
	requestMetrics.mutex.Lock()
	defer requestMetrics.mutex.Unlock()
	concurrent := atomic.LoadInt64(&requestMetrics.concurrent)
	requestMetrics.successLatencies = nil
	requestMetrics.failureLatencies = nil
	requestMetrics.requestCount = 0
	requestMetrics.explicitErrors = 0
	requestMetrics.implicitErrors = 0
	requestMetrics.policyErrors = 0
	requestMetrics.maxConcurrent = concurrent
	requestMetrics.maxGoroutines = 0
}

func (b *requestBuffer) record(latency time.Duration, statusCode int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	latencyMs := float64(latency.Milliseconds())
	switch classifyStatus(statusCode) {
	case "success":
		b.successLatencies = appendBounded(b.successLatencies, latencyMs)
	case "explicit_error":
		b.explicitErrors++
		b.failureLatencies = appendBounded(b.failureLatencies, latencyMs)
	case "implicit_error":
		b.implicitErrors++
		b.failureLatencies = appendBounded(b.failureLatencies, latencyMs)
	case "policy_error":
		b.policyErrors++
		b.failureLatencies = appendBounded(b.failureLatencies, latencyMs)
	}
	b.requestCount++
}

func (b *requestBuffer) sample(stats RuntimeStats) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if stats.Goroutines > b.maxGoroutines {
		b.maxGoroutines = stats.Goroutines
	}
}

func (b *requestBuffer) summary() RequestSummary {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	summary := RequestSummary{
		RequestCount:   b.requestCount,
		ExplicitErrors: b.explicitErrors,
		ImplicitErrors: b.implicitErrors,
		PolicyErrors:   b.policyErrors,
		Concurrent:     atomic.LoadInt64(&b.concurrent),
		MaxConcurrent:  b.maxConcurrent,
		MaxGoroutines:  b.maxGoroutines,
		Success:        summarizeLatencies(b.successLatencies),
		Failure:        summarizeLatencies(b.failureLatencies),
	}
	if b.requestCount > 0 {
		totalErrors := b.explicitErrors + b.implicitErrors + b.policyErrors
		summary.ErrorRate = float64(totalErrors) / float64(b.requestCount) * 100
	}
	return summary
}

func appendBounded(values []float64, v float64) []float64 {
	if len(values) >= maxLatencySamples {
		values = values[1:]
	}
	return append(values, v)
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 400:
		return "success"
	case statusCode == 401 || statusCode == 403 || statusCode == 429:
		return "policy_error"
	case statusCode >= 400 && statusCode < 500:
		return "explicit_error"
	case statusCode >= 500:
		return "implicit_error"
	default:
		return "unknown"
	}
}

func summarizeLatencies(latencies []float64) LatencySummary {
	if len(latencies) == 0 {
		return LatencySummary{}
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	return LatencySummary{
		Count: len(sorted),
		Avg:   calculateAverage(sorted),
		P50:   calculatePercentile(sorted, 0.50),
		P95:   calculatePercentile(sorted, 0.95),
		P99:   calculatePercentile(sorted, 0.99),
		Max:   sorted[len(sorted)-1],
	}
}

func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func calculatePercentile(sortedValues []float64, percentile float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	index := int(float64(len(sortedValues)) * percentile)
	if index >= len(sortedValues) {
		index = len(sortedValues) - 1
	}
	return sortedValues[index]
}
