package pacing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVariableInterval(t *testing.T) {
	tests := []struct {
		name        string
		order       int
		workerCount int
		min, max    int
		want        int
	}{
		{"single worker ignores order", 0, 1, 50, 200, 50},
		{"single worker any order", 7, 1, 50, 200, 50},
		{"four workers order 0", 0, 4, 50, 200, 50},
		{"four workers order 1", 1, 4, 50, 200, 100},
		{"four workers order 2", 2, 4, 50, 200, 150},
		{"four workers order 3", 3, 4, 50, 200, 200},
		{"rounds half up", 1, 3, 0, 1, 1},
		{"rounds down", 1, 4, 0, 1, 0},
		{"equal bounds", 2, 5, 80, 80, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VariableInterval(tt.order, tt.workerCount, tt.min, tt.max))
		})
	}
}

func TestPolicyInterval(t *testing.T) {
	fixed := Policy{Fixed: time.Second, Order: 3, WorkerCount: 4, Min: 50 * time.Millisecond, Max: 200 * time.Millisecond}
	assert.Equal(t, time.Second, fixed.Interval())

	vary := fixed
	vary.Vary = true
	assert.Equal(t, 200*time.Millisecond, vary.Interval())

	vary.Order = 1
	assert.Equal(t, 100*time.Millisecond, vary.Interval())
}
