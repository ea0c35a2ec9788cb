// internal/dispatch/scheduler_test.go
package dispatch

import (
	"testing"
	"time"

	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestNextDelay_UniformWithinRange(t *testing.T) {
	s := NewScheduler(nil, config.DispatchConfig{
		MinDelayMinutes: 20,
		MaxDelayMinutes: 40,
	}, nil, logger.NewNoOpLogger())

	// Drive the jitter through its extremes.
	s.randIntn = func(n int) int {
		assert.Equal(t, 21, n)
		return 0
	}
	assert.Equal(t, 20*time.Minute, s.NextDelay())

	s.randIntn = func(n int) int { return n - 1 }
	assert.Equal(t, 40*time.Minute, s.NextDelay())

	s.randIntn = func(n int) int { return 7 }
	assert.Equal(t, 27*time.Minute, s.NextDelay())
}

func TestNextDelay_DegenerateRange(t *testing.T) {
	s := NewScheduler(nil, config.DispatchConfig{
		MinDelayMinutes: 30,
		MaxDelayMinutes: 30,
	}, nil, logger.NewNoOpLogger())

	s.randIntn = func(n int) int {
		t.Fatal("randIntn must not be called for a fixed delay")
		return 0
	}
	assert.Equal(t, 30*time.Minute, s.NextDelay())
}
