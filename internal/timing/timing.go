// Package timing provides a running-statistics tracker for the
// watchdog's duty-cycle phase drift, grounded on the teacher's
// self-contained statistics-helper shape in internal/anomaly/entropy.go
// and on the mutex-guarded Update/Value/Reset idiom from
// internal/escalation/pressure.go's Accumulator.
//
// Formula: Welford's online algorithm for mean and variance, avoiding
// the numerical instability of the naive sum-of-squares approach over
// a long-running watchdog loop.
//
//	mean_{n}   = mean_{n-1} + (x_n - mean_{n-1}) / n
//	M2_{n}     = M2_{n-1} + (x_n - mean_{n-1}) * (x_n - mean_{n})
//	variance   = M2_n / n        (population variance)
package timing

import (
	"math"
	"sync"
)

// DriftTracker accumulates per-cycle phase-drift samples (seconds between
// the intended and actual advance timestamp) using Welford's algorithm.
// internal/watchdog does not call it; drift is neither logged nor
// exported as a metric.
type DriftTracker struct {
	mu    sync.Mutex
	count int
	mean  float64
	m2    float64
}

// NewDriftTracker returns an empty tracker.
func NewDriftTracker() *DriftTracker {
	return &DriftTracker{}
}

// Observe records one drift sample (seconds, signed — positive means the
// phase advanced late).
func (t *DriftTracker) Observe(sample float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	delta := sample - t.mean
	t.mean += delta / float64(t.count)
	delta2 := sample - t.mean
	t.m2 += delta * delta2
}

// Count returns the number of samples observed.
func (t *DriftTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Mean returns the running mean drift in seconds. 0 if no samples yet.
func (t *DriftTracker) Mean() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mean
}

// Variance returns the running population variance. 0 if fewer than one
// sample has been observed.
func (t *DriftTracker) Variance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.m2 / float64(t.count)
}

// StdDev returns the running population standard deviation in seconds.
func (t *DriftTracker) StdDev() float64 {
	return math.Sqrt(t.Variance())
}

// Reset clears the tracker back to its zero state.
func (t *DriftTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count = 0
	t.mean = 0
	t.m2 = 0
}
