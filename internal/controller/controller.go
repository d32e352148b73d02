package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/thermite/internal/command"
	"github.com/octoreflex/thermite/internal/loadflag"
	"github.com/octoreflex/thermite/internal/payload"
	"github.com/octoreflex/thermite/internal/platform"
	"github.com/octoreflex/thermite/internal/selector"
	"github.com/octoreflex/thermite/internal/topology"
	"github.com/octoreflex/thermite/internal/watchdog"
)

// Options configures one run of the load orchestration engine, combining
// the CLI surface (spec.md §6) with the construction-time initial-load
// choice spec.md §9's open question calls for.
type Options struct {
	FunctionID       int
	AllowUnavailable bool
	Threads          int
	Bind             []int // logical CPU ids, one per thread; -1 entries mean "don't pin"
	Period           time.Duration
	Load             time.Duration
	Timeout          time.Duration
	// InitialLoad seeds the shared flag before any worker reaches WORK,
	// mirroring ThreadWorker.cpp::initThreads's lowLoad-derived seed. It
	// only matters for the Period==0 degenerate cases; the duty-cycle loop
	// overwrites it unconditionally on its first iteration.
	InitialLoad loadflag.Value
	Logger      *zap.Logger
}

// Controller owns the probed topology, the selected platform, the worker
// pool, and the watchdog for a single run.
type Controller struct {
	opts      Options
	logger    *zap.Logger
	topo      *topology.Info
	selection selector.Selection
	flag      loadflag.Flag
	workers   []*workerHandle
	watchdog  *watchdog.Watchdog
}

type workerHandle struct {
	w       workerRunner
	channel *command.Channel
}

// workerRunner narrows internal/worker.Worker to what the controller
// needs, so this package doesn't have to import worker's concrete type
// name twice (kept as an interface for clarity, not for swapping
// implementations — there is exactly one production implementation).
type workerRunner interface {
	Run(ctx context.Context) error
	Channel() *command.Channel
	Iterations() uint64
	PublishSettings(settings []payload.Setting)
}

// Report is the final performance summary printed after every run,
// regardless of whether termination was due to timeout or signal
// (spec.md §7).
type Report struct {
	Platform          string
	Threads           int
	TotalIterations   uint64
	Elapsed           time.Duration
	EstimatedGFLOPS    float64
	EstimatedBandwidth float64 // bytes/sec
}

// newWorkerFn is overridden in tests to inject a mock worker constructor
// without pulling internal/worker (and its real CPU-pinning syscalls) into
// the controller test binary.
var newWorkerFn = defaultNewWorker

// New probes the topology, selects a platform via functionID/
// allowUnavailable, and builds a pool of opts.Threads workers. It returns
// ErrFatalInit, ErrFatalNoPayload, ErrUnknownFunction, or ErrUnavailable
// per spec.md §7 — never a partially-constructed Controller.
func New(opts Options) (*Controller, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	topo, warnings := topology.Probe()
	if topo == nil || topo.TotalThreads <= 0 {
		return nil, fmt.Errorf("%w: topology probe returned no threads", ErrFatalInit)
	}
	for _, warn := range warnings {
		logger.Warn(warn)
	}

	cat := platform.DefaultCatalog()
	host := selector.Host{
		Family:         topo.Family,
		Model:          topo.ModelID,
		ThreadsPerCore: topo.ThreadsPerCore,
		Features:       topo.Features,
	}
	sel, err := selector.SelectFunction(host, cat, opts.FunctionID, opts.AllowUnavailable)
	if err != nil {
		return nil, wrapSelectionError(err)
	}
	if sel.Warning != "" {
		logger.Warn(sel.Warning)
	}

	c := &Controller{
		opts:      opts,
		logger:    logger,
		topo:      topo,
		selection: sel,
		watchdog:  watchdog.New(logger),
	}
	c.flag.Store(opts.InitialLoad)

	threads := opts.Threads
	if threads <= 0 {
		threads = topo.TotalThreads
	}
	for i := 0; i < threads; i++ {
		cpuID := -1
		if i < len(opts.Bind) {
			cpuID = opts.Bind[i]
		}
		settings := append([]payload.Setting(nil), sel.Entry.Config.DefaultSettings...)
		w := newWorkerFn(i, sel.Entry.Config, sel.Entry.ThreadsPerCore, cpuID, settings, &c.flag, uint64(opts.Period.Microseconds()), logger)
		c.workers = append(c.workers, &workerHandle{w: w, channel: w.Channel()})
	}

	return c, nil
}

func wrapSelectionError(err error) error {
	switch {
	case errors.Is(err, selector.ErrUnknownFunctionID):
		return fmt.Errorf("%w: %v", ErrUnknownFunction, err)
	case errors.Is(err, selector.ErrUnavailablePayload):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrFatalNoPayload, err)
	}
}

// Run executes a full lifecycle: spin up workers, broadcast INIT and
// WORK, run the watchdog to completion (timeout, signal via ctx
// cancellation, or error), broadcast STOP, join, and produce the final
// report.
func (c *Controller) Run(ctx context.Context) (Report, error) {
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var wg sync.WaitGroup
	for _, h := range c.workers {
		wg.Add(1)
		go func(h *workerHandle) {
			defer wg.Done()
			if err := h.w.Run(workerCtx); err != nil {
				c.logger.Error("worker exited with error", zap.Error(err))
			}
		}(h)
	}

	channels := c.channels()
	command.Broadcast(channels, command.Init)
	command.Broadcast(channels, command.Work)

	start := time.Now()
	wdErr := c.watchdog.Run(ctx, &c.flag, c.opts.Period, c.opts.Load, c.opts.Timeout)
	elapsed := time.Since(start)

	command.Broadcast(channels, command.Stop)
	wg.Wait()

	if wdErr != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrSleepFailure, wdErr)
	}

	return c.buildReport(elapsed), nil
}

func (c *Controller) channels() []*command.Channel {
	chans := make([]*command.Channel, len(c.workers))
	for i, h := range c.workers {
		chans[i] = h.channel
	}
	return chans
}

// Topology exposes the probed host topology, used by cmd/thermite for the
// startup summary and --list-functions output.
func (c *Controller) Topology() *topology.Info { return c.topo }

// Selection exposes the chosen platform/function for CLI reporting.
func (c *Controller) Selection() selector.Selection { return c.selection }

// Status is a point-in-time snapshot of a running engine, for the operator
// control plane (internal/operator).
type Status struct {
	Platform   string
	FunctionID int
	Threads    int
	Iterations uint64
}

// Status reports the engine's current state. Safe to call concurrently
// with Run, since it only reads the (immutable after New) worker slice
// and each worker's own atomically-reported iteration count.
func (c *Controller) Status() Status {
	var total uint64
	for _, h := range c.workers {
		total += h.w.Iterations()
	}
	return Status{
		Platform:   c.selection.Entry.Config.Name,
		FunctionID: c.selection.Entry.ID,
		Threads:    len(c.workers),
		Iterations: total,
	}
}

// Switch publishes new payload settings to every worker and drives the
// SWITCH handshake (spec.md §9), grounded on Firestarter.cpp's optimizer
// callback: lock-dispatch SWITCH to every thread, set the shared load
// flag to LOAD_SWITCH to break their hot loop, await ack, then re-dispatch
// WORK so threads resume. A worker's doWork only returns to its
// command-observe step when it sees the load flag depart High/Low — the
// command channel alone is never read from inside that hot loop — so
// dispatching command.Switch without also writing loadflag.Switch would
// leave every worker spinning in doWork forever and awaitAck blocked
// permanently. Safe to call concurrently with Run, since PublishSettings
// and Broadcast both take their own locks. Returns once every worker has
// acknowledged both dispatches, not once settings have taken visible
// effect (workers must still finish doInit's recompile and resume work).
func (c *Controller) Switch(settings []payload.Setting) error {
	if len(c.workers) == 0 {
		return fmt.Errorf("%w: no workers to switch", ErrFatalNoPayload)
	}
	for _, h := range c.workers {
		h.w.PublishSettings(settings)
	}
	channels := c.channels()

	c.flag.Store(loadflag.Switch)
	command.Broadcast(channels, command.Switch)

	// Restore the flag to this run's non-duty-cycle resting level before
	// resuming work: a period>0 run's watchdog overwrites this on its very
	// next cycle regardless, but a period==0 degenerate run never writes
	// the flag again after construction (see watchdog.Run), so this is
	// what keeps a "stay LOW" run LOW and a "stay HIGH" run HIGH across a
	// mid-run SWITCH.
	c.flag.Store(c.opts.InitialLoad)
	command.Broadcast(channels, command.Work)
	return nil
}
