package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckSystemReportsRuntimeStats(t *testing.T) {
	health := CheckSystem()

	assert.NotNil(t, health)
	assert.Contains(t, []Status{StatusHealthy, StatusDegraded, StatusUnhealthy}, health.Status)
	assert.Greater(t, health.GoRoutines, 0)
}

func TestSystemStatusDegradesOnGoroutineCount(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	for i := 0; i < GoroutinesThresholdHealthy; i++ {
		go func() { <-release }()
	}

	health := CheckSystem()
	assert.GreaterOrEqual(t, health.GoRoutines, GoroutinesThresholdHealthy)
	assert.NotEqual(t, StatusHealthy, health.Status)
}
