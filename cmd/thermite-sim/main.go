// Package main — cmd/thermite-sim/main.go
//
// thermite-sim is a safe-by-construction smoke harness: it drives the
// real engine (internal/controller) for a short, low-intensity dry run
// and reports whether the worker pool actually made forward progress,
// without ever asking the operator to commit to a full-power,
// unbounded stress run first.
//
// Unlike thermite's main entrypoint, thermite-sim always runs with a
// bounded --seconds timeout and defaults to a conservative load
// percentage, so it is suitable for CI and first-run validation on
// unfamiliar hardware.
//
// Output: one CSV row per poll interval to stdout (elapsed_seconds,
// iterations, iterations_per_second). Summary: pass/fail verdict to
// stderr, derived from whether the run completed without error and
// iterations advanced monotonically throughout.
//
// Usage:
//
//	thermite-sim [flags]
//	thermite-sim -seconds 3 -threads 2 -load 20 -function 0
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/thermite/internal/controller"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── Flags ─────────────────────────────────────────────────────────────────
	seconds := flag.Int("seconds", 3, "Smoke-run duration in seconds")
	threads := flag.Int("threads", 1, "Worker thread count")
	loadPercent := flag.Int("load", 20, "Duty cycle load percentage (0-100); kept low by default")
	periodMicros := flag.Int("period", 100000, "Duty cycle period in microseconds")
	functionID := flag.Int("function", 0, "Explicit function id (0 = auto-select)")
	pollMillis := flag.Int("poll", 500, "Status poll interval in milliseconds")
	flag.Parse()

	if *seconds <= 0 {
		fmt.Fprintln(os.Stderr, "ERROR: -seconds must be > 0")
		return 1
	}

	log := zap.NewNop()

	opts := controller.Options{
		FunctionID:       *functionID,
		AllowUnavailable: true,
		Threads:          *threads,
		Period:           time.Duration(*periodMicros) * time.Microsecond,
		Load:             time.Duration(*periodMicros) * time.Duration(*loadPercent) / 100 * time.Microsecond,
		Timeout:          time.Duration(*seconds) * time.Second,
		Logger:           log,
	}

	ctrl, err := controller.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: engine construction failed: %v\n", err)
		return controller.ExitCode(err)
	}

	sel := ctrl.Selection()
	fmt.Fprintf(os.Stderr, "platform=%s function=%s threads=%d timeout=%ds\n",
		sel.Entry.Config.Name, sel.Entry.FunctionName, *threads, *seconds)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ── Poll loop: samples Status() while Run executes in parallel ────────────
	w := csv.NewWriter(os.Stdout)
	_ = w.Write([]string{"elapsed_seconds", "iterations", "iterations_per_second"})
	samples := make(chan StatusSample, 1)
	pollDone := make(chan struct{})
	go pollStatus(ctx, ctrl, time.Duration(*pollMillis)*time.Millisecond, samples, pollDone)

	monotonicCh := make(chan bool, 1)
	start := time.Now()
	go func() {
		monotonic := true
		var last uint64
		for s := range samples {
			rate := float64(s.Iterations-last) / (float64(*pollMillis) / 1000.0)
			if s.Iterations < last {
				monotonic = false
			}
			last = s.Iterations
			_ = w.Write([]string{
				strconv.FormatFloat(time.Since(start).Seconds(), 'f', 3, 64),
				strconv.FormatUint(s.Iterations, 10),
				strconv.FormatFloat(rate, 'f', 1, 64),
			})
			w.Flush()
		}
		monotonicCh <- monotonic
	}()

	report, runErr := ctrl.Run(ctx)
	close(pollDone)
	monotonic := <-monotonicCh

	fmt.Fprintf(os.Stderr, "\n=== SMOKE RUN RESULT ===\n")
	fmt.Fprintf(os.Stderr, "total_iterations: %d\n", report.TotalIterations)
	fmt.Fprintf(os.Stderr, "elapsed:          %s\n", report.Elapsed)
	fmt.Fprintf(os.Stderr, "estimated_gflops: %.3f\n", report.EstimatedGFLOPS)

	pass := runErr == nil && report.TotalIterations > 0 && monotonic
	if pass {
		fmt.Fprintln(os.Stderr, "RESULT: PASS — worker pool made forward progress")
		return 0
	}
	fmt.Fprintf(os.Stderr, "RESULT: FAIL — err=%v monotonic=%v\n", runErr, monotonic)
	return 2
}

// StatusSample is one Status() snapshot taken during a smoke run.
type StatusSample struct {
	Iterations uint64
}

// pollStatus samples ctrl.Status() on interval until done is closed or ctx
// is cancelled, then closes out.
func pollStatus(ctx context.Context, ctrl *controller.Controller, interval time.Duration, out chan<- StatusSample, done <-chan struct{}) {
	defer close(out)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			out <- StatusSample{Iterations: ctrl.Status().Iterations}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
