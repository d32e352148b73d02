package controller

import "time"

// buildReport sums every worker's recorded iterations and turns them into
// the diagnostic GFLOPS/bandwidth estimate spec.md §7 requires ("always
// printed after workers join... diagnostic estimates, not measurements").
func (c *Controller) buildReport(elapsed time.Duration) Report {
	p := c.selection.Entry.Config.Payload

	var totalIterations uint64
	for _, h := range c.workers {
		totalIterations += h.w.Iterations()
	}

	seconds := elapsed.Seconds()
	var gflops, bandwidth float64
	if seconds > 0 {
		totalFlops := float64(totalIterations) * float64(p.FlopsPerIteration())
		totalBytes := float64(totalIterations) * float64(p.BytesPerIteration())
		gflops = totalFlops / seconds / 1e9
		bandwidth = totalBytes / seconds
	}

	return Report{
		Platform:           c.selection.Entry.Config.Name,
		Threads:            len(c.workers),
		TotalIterations:    totalIterations,
		Elapsed:            elapsed,
		EstimatedGFLOPS:    gflops,
		EstimatedBandwidth: bandwidth,
	}
}
