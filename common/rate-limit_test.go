package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryRateLimiterRequest(t *testing.T) {
	var limiter InMemoryRateLimiter
	limiter.Init(0)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Request("client-a", 3, 60), "request %d should pass", i)
	}
	assert.False(t, limiter.Request("client-a", 3, 60))

	// keys are independent
	assert.True(t, limiter.Request("client-b", 3, 60))
}

func TestInMemoryRateLimiterZeroDurationAlwaysRefills(t *testing.T) {
	var limiter InMemoryRateLimiter
	limiter.Init(0)

	assert.True(t, limiter.Request("k", 1, 0))
	assert.True(t, limiter.Request("k", 1, 0))
}
