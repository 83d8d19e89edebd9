package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordRequestClassifiesStatus(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	RecordRequest(10*time.Millisecond, 200)
	RecordRequest(30*time.Millisecond, 200)
	RecordRequest(5*time.Millisecond, 400)
	RecordRequest(5*time.Millisecond, 401)
	RecordRequest(5*time.Millisecond, 429)
	RecordRequest(50*time.Millisecond, 502)

	summary := Summary()
	assert.EqualValues(t, 6, summary.RequestCount)
	assert.EqualValues(t, 1, summary.ExplicitErrors)
	assert.EqualValues(t, 2, summary.PolicyErrors)
	assert.EqualValues(t, 1, summary.ImplicitErrors)
	assert.InDelta(t, 66.67, summary.ErrorRate, 0.01)

	assert.Equal(t, 2, summary.Success.Count)
	assert.Equal(t, 20.0, summary.Success.Avg)
	assert.Equal(t, 30.0, summary.Success.Max)
	assert.Equal(t, 4, summary.Failure.Count)
	assert.Equal(t, 50.0, summary.Failure.Max)
}

func TestConcurrentTracking(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	IncrementConcurrent()
	IncrementConcurrent()
	DecrementConcurrent()

	summary := Summary()
	assert.EqualValues(t, 1, summary.Concurrent)
	assert.EqualValues(t, 2, summary.MaxConcurrent)
	DecrementConcurrent()
}

func TestCalculatePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 6.0, calculatePercentile(sorted, 0.50))
	assert.Equal(t, 10.0, calculatePercentile(sorted, 0.99))
	assert.Equal(t, 0.0, calculatePercentile(nil, 0.5))
}

func TestReadRuntimeStats(t *testing.T) {
	stats := ReadRuntimeStats()
	assert.Positive(t, stats.Goroutines)
}
