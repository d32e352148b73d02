package watchdog

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/thermite/internal/loadflag"
)

func TestDegenerateLowStaysLowUntilStop(t *testing.T) {
	var flag loadflag.Flag
	w := New(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, &flag, 0, 0, 200*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	if got := flag.Load(); got != loadflag.Low {
		t.Fatalf("flag = %v mid-run, want Low", got)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if got := flag.Load(); got != loadflag.Stop {
		t.Fatalf("flag after Run = %v, want Stop", got)
	}
}

// TestScenarioS2DegenerateHighOnlyTwoTransitions covers S2: period=0,
// load=100%, timeout=1s — the flag transitions WAIT->HIGH once (seeded by
// the caller, exactly as controller.New seeds it before Run), STOP once,
// no LOW observed in between. The watchdog itself must never write HIGH or
// LOW for period==0 — only the deferred Store(Stop) on exit.
func TestScenarioS2DegenerateHighOnlyTwoTransitions(t *testing.T) {
	var flag loadflag.Flag
	flag.Store(loadflag.High)
	w := New(zap.NewNop())

	observedLow := false
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			if flag.Load() == loadflag.Low {
				observedLow = true
			}
		}
	}()

	err := w.Run(context.Background(), &flag, 0, time.Millisecond, 20*time.Millisecond)
	close(stop)
	if err != nil {
		t.Fatal(err)
	}
	if observedLow {
		t.Error("flag observed Low during a P=0,L=P degenerate run, want HIGH held throughout")
	}
	if got := flag.Load(); got != loadflag.Stop {
		t.Fatalf("flag = %v after Run, want Stop", got)
	}
}

// TestDegenerateHighPreservesSeedWithoutLoad covers the case the operator
// entrypoint actually produces for --period 0 --load 100: load==0 is no
// longer a reliable signal for "stay LOW" once the watchdog stops writing
// HIGH/LOW itself, so this asserts the seed survives regardless of what
// load value accompanies period==0.
func TestDegenerateHighPreservesSeedWithoutLoad(t *testing.T) {
	var flag loadflag.Flag
	flag.Store(loadflag.High)
	w := New(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, &flag, 0, 0, 200*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	if got := flag.Load(); got != loadflag.High {
		t.Fatalf("flag = %v mid-run, want High (seed preserved)", got)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if got := flag.Load(); got != loadflag.Stop {
		t.Fatalf("flag after Run = %v, want Stop", got)
	}
}

// TestScenarioS4SignalCancellationStopsPromptly covers S4: cancelling ctx
// mid-run (simulating SIGINT/SIGTERM) must return quickly and leave the
// flag at Stop.
func TestScenarioS4SignalCancellationStopsPromptly(t *testing.T) {
	var flag loadflag.Flag
	w := New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, &flag, 50*time.Millisecond, 25*time.Millisecond, 10*time.Second) }()

	time.Sleep(20 * time.Millisecond)
	cancelAt := time.Now()
	cancel()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("watchdog did not stop within 200ms of cancellation")
	}
	if elapsed := time.Since(cancelAt); elapsed > 200*time.Millisecond {
		t.Errorf("watchdog took %v to stop after cancellation", elapsed)
	}
	if got := flag.Load(); got != loadflag.Stop {
		t.Fatalf("flag = %v, want Stop", got)
	}
}

// TestDutyCycleAlignment is testable property 3: over several full
// cycles, cumulative HIGH time tracks K*L within a small per-cycle drift
// bound.
func TestDutyCycleAlignment(t *testing.T) {
	var flag loadflag.Flag
	w := New(zap.NewNop())

	period := 20 * time.Millisecond
	load := 10 * time.Millisecond

	var highTotal time.Duration
	var lastChange time.Time
	var lastVal loadflag.Value = loadflag.Low

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			v := flag.Load()
			now := time.Now()
			if v != lastVal {
				if lastVal == loadflag.High && !lastChange.IsZero() {
					highTotal += now.Sub(lastChange)
				}
				lastChange = now
				lastVal = v
			}
		}
	}()

	timeout := 10 * period
	err := w.Run(context.Background(), &flag, period, load, timeout)
	close(stop)
	if err != nil {
		t.Fatal(err)
	}

	cycles := float64(timeout) / float64(period)
	want := time.Duration(cycles * float64(load))
	epsilonPerCycle := 3 * time.Millisecond
	maxDrift := time.Duration(cycles) * epsilonPerCycle

	if highTotal < want-maxDrift || highTotal > want+maxDrift {
		t.Errorf("cumulative HIGH time = %v, want within %v of %v", highTotal, maxDrift, want)
	}
}
