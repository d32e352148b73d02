// Package worker implements the per-thread worker state machine (spec
// component C6), grounded on firestarter/ThreadWorker.cpp::threadWorker
// and initThreads, using the teacher's State-enum-with-String() idiom
// (internal/escalation/state_machine.go).
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/octoreflex/thermite/internal/command"
	"github.com/octoreflex/thermite/internal/loadflag"
	"github.com/octoreflex/thermite/internal/payload"
	"github.com/octoreflex/thermite/internal/platform"
)

// ThreadRecord is the per-worker state spec.md §3 defines: a settings copy
// (mutable only via SWITCH), the aligned working buffer, counters, and the
// command handshake channel. Settings is protected by mu because the
// controller writes it (during SWITCH's pre-publication step) from outside
// the worker's own goroutine.
type ThreadRecord struct {
	ID             int
	Config         platform.Config
	ThreadsPerCore int
	CPUID          int

	mu       sync.Mutex
	Settings []payload.Setting

	Buffer     []float64
	Iterations atomic.Uint64
	StartTime  time.Time
	StopTime   time.Time

	LoadFlag     *loadflag.Flag
	PeriodMicros uint64
	Channel      *command.Channel
}

// PublishSettings installs new settings for the next SWITCH, taking the
// same mutex the worker itself avoids touching concurrently — the
// controller must call this before dispatching command.Switch (spec.md §9
// SWITCH protocol: publish before signaling).
func (r *ThreadRecord) PublishSettings(settings []payload.Setting) {
	r.mu.Lock()
	r.Settings = settings
	r.mu.Unlock()
}

func (r *ThreadRecord) settingsSnapshot() []payload.Setting {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]payload.Setting, len(r.Settings))
	copy(out, r.Settings)
	return out
}

// bufferSizeWords implements the formula resolved from
// ThreadWorker.cpp::initThreads: only the first three data-cache buffer
// sizes participate, never the full list.
func bufferSizeWords(cfg platform.Config, threadsPerCore int) int {
	sum := cfg.DataCacheBufferSizes[0] + cfg.DataCacheBufferSizes[1] + cfg.DataCacheBufferSizes[2] + cfg.RAMBufferSize
	return sum / threadsPerCore / 8
}

// Worker runs one ThreadRecord's state machine to completion.
type Worker struct {
	record  *ThreadRecord
	logger  *zap.Logger
	routine payload.Routine
}

// New constructs a Worker bound to id's logical CPU, pre-seeding the load
// flag reference and an initial settings copy. It does not start any
// goroutine; call Run to do that.
func New(id int, cfg platform.Config, threadsPerCore, cpuID int, settings []payload.Setting, flag *loadflag.Flag, periodMicros uint64, logger *zap.Logger) *Worker {
	return &Worker{
		record: &ThreadRecord{
			ID:             id,
			Config:         cfg,
			ThreadsPerCore: threadsPerCore,
			CPUID:          cpuID,
			Settings:       settings,
			LoadFlag:       flag,
			PeriodMicros:   periodMicros,
			Channel:        command.NewChannel(),
		},
		logger: logger.With(zap.Int("worker_id", id)),
	}
}

// Channel exposes the command handshake channel so the controller can
// include this worker in a command.Broadcast.
func (w *Worker) Channel() *command.Channel { return w.record.Channel }

// Record exposes the worker's ThreadRecord for reporting once it has
// stopped. Safe to read only after Run has returned.
func (w *Worker) Record() *ThreadRecord { return w.record }

// Iterations reports the worker's accumulated iteration count for the
// final performance report (spec.md §7). Safe to call concurrently with
// Run, since the counter is atomic.
func (w *Worker) Iterations() uint64 { return w.record.Iterations.Load() }

// PublishSettings installs settings for the next SWITCH this worker
// observes. Safe to call from the controller goroutine while Run executes
// in another (see ThreadRecord.PublishSettings).
func (w *Worker) PublishSettings(settings []payload.Setting) { w.record.PublishSettings(settings) }

// Run executes the state machine described in spec.md §4.4 until it
// observes command.Stop or ctx is cancelled. It returns nil on a clean
// STOP, or an error on AllocFailure / compile failure (spec.md §7), in
// which case it has already stored Stop to LoadFlag so peers unwind.
func (w *Worker) Run(ctx context.Context) error {
	old := command.Wait
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		cur, changed := w.record.Channel.Observe(old)
		if !changed {
			runtime.Gosched()
			continue
		}
		old = cur

		switch cur {
		case command.Init, command.Switch:
			if err := w.doInit(); err != nil {
				w.record.LoadFlag.Store(loadflag.Stop)
				return fmt.Errorf("worker %d: %w", w.record.ID, err)
			}
		case command.Work:
			w.doWork()
		case command.Stop:
			w.record.StopTime = time.Now()
			return nil
		case command.Wait:
			// nothing to do; loop back to Observe
		}
	}
}

// doInit pins the thread, compiles the payload against the current
// settings, allocates and initializes the working buffer (spec.md §4.4
// step 2, and step 4 for SWITCH's re-init).
func (w *Worker) doInit() error {
	if err := pinToCPU(w.record.CPUID); err != nil {
		w.logger.Warn("failed to pin worker to logical CPU", zap.Int("cpu", w.record.CPUID), zap.Error(err))
	}

	settings := w.record.settingsSnapshot()
	nWords := bufferSizeWords(w.record.Config, w.record.ThreadsPerCore)
	if nWords <= 0 {
		return fmt.Errorf("allocation failure: computed buffer size %d words", nWords)
	}

	lineCount := 64
	routine, err := w.record.Config.Payload.Compile(settings, w.record.Config.DataCacheBufferSizes, w.record.Config.RAMBufferSize, w.record.ThreadsPerCore, lineCount)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	w.routine = routine

	buf := payload.AlignedBuffer(nWords)
	if buf == nil {
		return fmt.Errorf("allocation failure: buffer of %d words", nWords)
	}
	w.record.Config.Payload.InitBuffer(buf)
	w.record.Buffer = buf
	return nil
}

// doWork runs the high-load/low-load alternation (spec.md §4.4 step 3).
// STOP is terminal; SWITCH returns control to Run so it can Observe the
// accompanying command.Switch dispatch and recompile (spec.md §9's SWITCH
// protocol routes the settings change through the command channel, with
// LoadFlag.Switch merely breaking the hot loop).
func (w *Worker) doWork() {
	w.record.StartTime = time.Now()
	for {
		w.record.Iterations.Store(w.routine.HighLoad(w.record.Buffer, w.record.LoadFlag, w.record.Iterations.Load()))
		switch w.record.LoadFlag.Load() {
		case loadflag.Stop:
			w.record.StopTime = time.Now()
			return
		case loadflag.Switch:
			return
		}

		w.routine.LowLoad(w.record.LoadFlag, w.record.PeriodMicros)
		switch w.record.LoadFlag.Load() {
		case loadflag.Stop:
			w.record.StopTime = time.Now()
			return
		case loadflag.Switch:
			return
		}
	}
}

func pinToCPU(cpuID int) error {
	if cpuID < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}
