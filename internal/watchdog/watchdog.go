// Package watchdog implements the single duty-cycle controller (spec
// component C8), grounded on
// firestarter/WatchdogWorker.cpp, re-architected per spec.md §9's design
// note: context.Context + signal.NotifyContext replace the original's
// SIGALRM/EINTR nanosleep dance, and golang.org/x/sys/unix.Nanosleep
// supplies the interrupt-resilient sleep primitive. Each sleep is relative
// (a duration, not an absolute wake-up time); phase drift is corrected per
// cycle by the advance term instead.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/octoreflex/thermite/internal/loadflag"
)

// ErrSleep wraps an unexpected nanosleep error (spec.md §7's SleepError),
// distinct from ordinary interruption which is retried transparently.
var ErrSleep = errors.New("watchdog: sleep failed")

// Watchdog drives flag through the HIGH/LOW duty cycle and enforces
// timeout and cancellation (spec.md §4.6).
type Watchdog struct {
	logger *zap.Logger
}

// New returns a Watchdog that logs through logger.
func New(logger *zap.Logger) *Watchdog {
	return &Watchdog{logger: logger}
}

// Run executes the watchdog loop: period P, load L (both durations,
// 0 <= L <= P), and timeout (0 means unbounded). It writes flag := Stop on
// every exit path (timeout, cancellation, or sleep error) before
// returning, so every worker observing flag unwinds (spec.md §4.6, §7).
func (w *Watchdog) Run(ctx context.Context, flag *loadflag.Flag, period, load time.Duration, timeout time.Duration) error {
	defer flag.Store(loadflag.Stop)

	// period==0 disables duty-cycle modulation (spec.md §6 --period doc).
	// Division by period is then undefined, and per spec.md §4.6 / the
	// original FIRESTARTER, the watchdog itself never writes HIGH or LOW in
	// either degenerate case (P=0,L=0 "stay LOW" or P=0,L=P "stay HIGH") —
	// it only ever waits, leaving flag at whatever controller.New seeded it
	// to (the resolution to spec.md §9's open question). Storing HIGH or
	// LOW here would clobber that seed every time load happens to be 0 or
	// nonzero, regardless of which degenerate case the caller actually
	// requested.
	if period == 0 {
		return w.waitOut(ctx, timeout)
	}
	return w.runDutyCycle(ctx, flag, period, load, timeout)
}

// waitOut blocks until ctx is done or timeout elapses (timeout==0 means
// block until ctx is done only).
func (w *Watchdog) waitOut(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		<-ctx.Done()
		return nil
	}
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(timeout):
		return nil
	}
}

// runDutyCycle implements spec.md §4.6's per-cycle phase-drift correction:
// each cycle partitions accumulated phase drift (advance) proportionally
// between the HIGH and LOW sub-intervals so that, over many cycles, total
// HIGH time tracks K*L even under scheduling jitter.
func (w *Watchdog) runDutyCycle(ctx context.Context, flag *loadflag.Flag, period, load, timeout time.Duration) error {
	start := time.Now()
	var elapsedTarget time.Duration

	for {
		if ctx.Err() != nil {
			return nil
		}
		if timeout > 0 && elapsedTarget > timeout {
			return nil
		}

		now := time.Now()
		advance := time.Duration(int64(now.Sub(start)) % int64(period))
		loadReduction := time.Duration(int64(load) * int64(advance) / int64(period))
		idleReduction := advance - loadReduction

		flag.Store(loadflag.High)
		if err := w.sleep(ctx, load-loadReduction); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		flag.Store(loadflag.Low)
		if err := w.sleep(ctx, (period-load)-idleReduction); err != nil {
			return err
		}

		elapsedTarget += period
	}
}

// sleep blocks for d using a relative, interrupt-resilient nanosleep,
// returning early (nil error) if ctx is cancelled. Negative d
// (possible when a cycle's reduction exceeds its nominal sub-interval
// under heavy drift) is treated as a no-op, matching a zero-length sleep.
func (w *Watchdog) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- nanosleepResilient(d)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		if err != nil {
			w.logger.Error("watchdog sleep failed", zap.Error(err))
			return fmt.Errorf("%w: %v", ErrSleep, err)
		}
		return nil
	}
}

// nanosleepResilient sleeps for d, reissuing the remaining interval if
// interrupted by a signal (EINTR) — the Go equivalent of the original's
// manual nanosleep retry loop (spec.md §4.6 sleep semantics). Any other
// errno aborts with that error.
func nanosleepResilient(d time.Duration) error {
	remaining := &unix.Timespec{
		Sec:  int64(d / time.Second),
		Nsec: int64(d % time.Second),
	}
	for {
		rem := &unix.Timespec{}
		err := unix.Nanosleep(remaining, rem)
		if err == nil {
			return nil
		}
		if err == unix.EINTR {
			remaining = rem
			continue
		}
		return err
	}
}
