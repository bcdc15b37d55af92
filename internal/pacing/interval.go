// Package pacing computes how long a worker waits between submissions.
package pacing

import (
	"math"
	"time"
)

// VariableInterval spreads pacing linearly across workers: order 0 gets minMs,
// order workerCount-1 gets maxMs, and orders in between are evenly spaced.
// The result is rounded to the nearest millisecond. With a single worker it is
// always minMs.
func VariableInterval(order, workerCount, minMs, maxMs int) int {
	if workerCount == 1 {
		return minMs
	}
	step := float64(maxMs-minMs) / float64(workerCount-1)
	return int(math.Round(float64(minMs) + float64(order)*step))
}

// Policy picks the pause after each submission for one worker.
type Policy struct {
	Fixed       time.Duration
	Vary        bool
	Order       int
	WorkerCount int
	Min         time.Duration
	Max         time.Duration
}

// Interval returns the fixed interval, or the variable one keyed on Order when Vary is set.
func (p Policy) Interval() time.Duration {
	if !p.Vary {
		return p.Fixed
	}
	ms := VariableInterval(p.Order, p.WorkerCount, int(p.Min.Milliseconds()), int(p.Max.Milliseconds()))
	return time.Duration(ms) * time.Millisecond
}
