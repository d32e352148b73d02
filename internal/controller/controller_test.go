package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/thermite/internal/command"
	"github.com/octoreflex/thermite/internal/loadflag"
	"github.com/octoreflex/thermite/internal/payload"
	"github.com/octoreflex/thermite/internal/platform"
	"github.com/octoreflex/thermite/internal/selector"
	"github.com/octoreflex/thermite/internal/watchdog"
)

// fakeWorker is a workerRunner that just spins observing its channel,
// counting commands instead of touching real CPU/memory — used to exercise
// Controller.Run's lifecycle without internal/worker's syscalls.
type fakeWorker struct {
	ch         *command.Channel
	iterations uint64
	mu         sync.Mutex
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{ch: command.NewChannel()}
}

func (f *fakeWorker) Channel() *command.Channel { return f.ch }
func (f *fakeWorker) Iterations() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.iterations
}
func (f *fakeWorker) PublishSettings(settings []payload.Setting) {}

func (f *fakeWorker) Run(ctx context.Context) error {
	old := command.Wait
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		cur, changed := f.ch.Observe(old)
		if !changed {
			continue
		}
		old = cur
		if cur == command.Stop {
			return nil
		}
		if cur == command.Work {
			f.mu.Lock()
			f.iterations += 100
			f.mu.Unlock()
		}
	}
}

// testCatalog returns a minimal single-platform catalog for tests that
// don't need the full DefaultCatalog.
func testCatalog() platform.Catalog {
	return platform.Catalog{Platforms: []platform.Config{{
		Name:                 "TEST",
		DataCacheBufferSizes: []int{1024, 2048, 4096},
		RAMBufferSize:        8192,
		ThreadMap:            map[int]string{1: "TEST_1T"},
		Default:              true,
		Payload:              payload.NewSSE2(),
	}}}
}

func newControllerForTest(threads int, period, load, timeout time.Duration) *Controller {
	entry := testCatalog().Entries()[0]
	c := &Controller{
		logger:    zap.NewNop(),
		selection: selector.Selection{Entry: entry},
		opts: Options{
			Threads: threads,
			Period:  period,
			Load:    load,
			Timeout: timeout,
		},
		watchdog: watchdog.New(zap.NewNop()),
	}
	for i := 0; i < threads; i++ {
		w := newFakeWorker()
		c.workers = append(c.workers, &workerHandle{w: w, channel: w.Channel()})
	}
	return c
}

func TestRunLifecycleReachesReportAfterTimeout(t *testing.T) {
	c := newControllerForTest(3, 0, time.Millisecond, 30*time.Millisecond)
	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Threads != 3 {
		t.Errorf("report.Threads = %d, want 3", report.Threads)
	}
	if report.TotalIterations == 0 {
		t.Error("expected nonzero total iterations across workers")
	}
	if report.Platform != "TEST" {
		t.Errorf("report.Platform = %q, want TEST", report.Platform)
	}
}

// TestSwitchBroadcastsToAllWorkers only exercises fakeWorker's channel
// observation, not the real doWork hot loop the load flag gates — see
// internal/worker.TestSwitchResumesRealWork for that.
func TestSwitchBroadcastsToAllWorkers(t *testing.T) {
	c := newControllerForTest(3, 0, time.Millisecond, 200*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_, _ = c.Run(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	if err := c.Switch([]payload.Setting{{Group: "L1", Weight: 2}}); err != nil {
		t.Fatalf("Switch returned error: %v", err)
	}

	<-done
}

func TestStatusReportsDuringRun(t *testing.T) {
	c := newControllerForTest(2, 0, time.Millisecond, 100*time.Millisecond)

	done := make(chan struct{})
	go func() {
		_, _ = c.Run(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	status := c.Status()
	if status.Threads != 2 {
		t.Errorf("Status().Threads = %d, want 2", status.Threads)
	}
	if status.Platform != "TEST" {
		t.Errorf("Status().Platform = %q, want TEST", status.Platform)
	}

	<-done
}

func TestRunRespectsContextCancellation(t *testing.T) {
	c := newControllerForTest(2, 20*time.Millisecond, 10*time.Millisecond, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(ctx)
		done <- err
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return within 1s of cancellation")
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := map[error]int{
		nil:               0,
		ErrFatalInit:       2,
		ErrFatalNoPayload:  3,
		ErrUnknownFunction: 4,
		ErrUnavailable:     5,
		ErrAllocFailure:    6,
		ErrSleepFailure:    7,
	}
	for err, want := range cases {
		if got := ExitCode(err); got != want {
			t.Errorf("ExitCode(%v) = %d, want %d", err, got, want)
		}
	}
}
