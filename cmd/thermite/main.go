// Package main — cmd/thermite/main.go
//
// thermite load-orchestration engine entrypoint.
//
// Startup sequence:
//  1. Parse flags; --list-functions and --version short-circuit before
//     any config or logger is built.
//  2. Load config from --config (if given) or fall back to flag-only
//     defaults.
//  3. Initialise structured logger (zap).
//  4. Construct the controller: probe topology, select platform/function,
//     build the worker pool.
//  5. Open the optional history ledger, if enabled.
//  6. Register SIGINT/SIGTERM for graceful shutdown via context
//     cancellation.
//  7. Start the Prometheus metrics server (loopback only).
//  8. Start the operator control-socket server, if enabled.
//  9. Run the engine to completion (timeout, signal, or operator stop).
// 10. Print the performance report, append it to history if enabled.
// 11. Exit with the code controller.ExitCode derives from the run error.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/octoreflex/thermite/internal/config"
	"github.com/octoreflex/thermite/internal/controller"
	"github.com/octoreflex/thermite/internal/history"
	"github.com/octoreflex/thermite/internal/loadflag"
	"github.com/octoreflex/thermite/internal/observability"
	"github.com/octoreflex/thermite/internal/operator"
	"github.com/octoreflex/thermite/internal/payload"
	"github.com/octoreflex/thermite/internal/platform"
	"github.com/octoreflex/thermite/internal/topology"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── Flags ─────────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	timeoutSec := flag.Int("timeout", 0, "Run duration in seconds (0 = run until signalled)")
	loadPercent := flag.Int("load", 100, "Duty cycle load percentage (0-100)")
	periodMicros := flag.Int("period", 0, "Duty cycle period in microseconds (0 = no period modulation)")
	threads := flag.Int("threads", 0, "Worker thread count (0 = one per logical CPU)")
	bind := flag.String("bind", "", "Comma-separated logical CPU ids to pin threads to, in order")
	functionID := flag.Int("function", 0, "Explicit function id to run (0 = auto-select)")
	allowUnavailable := flag.Bool("allow-unavailable", false, "Proceed even if the selected payload lacks required ISA features")
	listFunctions := flag.Bool("list-functions", false, "Print the available function ids and exit")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("thermite %s (commit=%s built=%s)\n", config.Version, config.GitCommit, config.BuildTime)
		return 0
	}

	cat := platform.DefaultCatalog()
	if *listFunctions {
		printFunctions(cat)
		return 0
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: config load failed: %v\n", err)
			return 1
		}
		cfg = *loaded
	}

	log, err := observability.BuildLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: logger init failed: %v\n", err)
		return 1
	}
	defer log.Sync() //nolint:errcheck

	log.Info("thermite starting",
		zap.String("version", config.Version),
		zap.String("commit", config.GitCommit),
		zap.String("built", config.BuildTime),
	)

	bindIDs, err := parseBind(*bind)
	if err != nil {
		log.Error("invalid --bind", zap.Error(err))
		return 1
	}

	opts := controller.Options{
		FunctionID:       *functionID,
		AllowUnavailable: *allowUnavailable,
		Threads:          *threads,
		Bind:             bindIDs,
		Period:           time.Duration(*periodMicros) * time.Microsecond,
		Load:             loadDuration(*loadPercent, *periodMicros),
		Timeout:          time.Duration(*timeoutSec) * time.Second,
		InitialLoad:      initialLoad(*loadPercent, *periodMicros),
		Logger:           log,
	}

	ctrl, err := controller.New(opts)
	if err != nil {
		log.Error("engine construction failed", zap.Error(err))
		return controller.ExitCode(err)
	}

	log.Info("topology probed", zap.String("summary", ctrl.Topology().Summary()))
	sel := ctrl.Selection()
	log.Info("function selected",
		zap.Int("function_id", sel.Entry.ID),
		zap.String("platform", sel.Entry.Config.Name),
		zap.String("function", sel.Entry.FunctionName),
		zap.Int("threads_per_core", sel.Entry.ThreadsPerCore),
	)

	var historyDB *history.DB
	if cfg.History.Enabled {
		historyDB, err = history.Open(cfg.History.DBPath, cfg.History.RetentionRuns)
		if err != nil {
			log.Warn("history ledger open failed — continuing without run history", zap.Error(err))
		} else {
			defer historyDB.Close() //nolint:errcheck
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics()
	go func() {
		if err := metrics.ServeMetrics(ctx, cfg.Observability.MetricsAddr); err != nil {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", cfg.Observability.MetricsAddr))

	if cfg.Operator.Enabled {
		rl := operator.NewTokenBucket(cfg.Operator.SwitchRateCapacity, cfg.Operator.SwitchRateRefill)
		defer rl.Close()
		srv := operator.NewServer(cfg.Operator.SocketPath, controller.NewOperatorAdapter(ctrl), cancel, rl, log)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				log.Error("operator server error", zap.Error(err))
			}
		}()
		log.Info("operator socket started", zap.String("path", cfg.Operator.SocketPath))
	}

	start := time.Now()
	report, runErr := ctrl.Run(ctx)
	exitCode := controller.ExitCode(runErr)

	if runErr != nil {
		log.Error("run ended with error", zap.Error(runErr))
	} else {
		log.Info("run complete",
			zap.String("platform", report.Platform),
			zap.Int("threads", report.Threads),
			zap.Uint64("total_iterations", report.TotalIterations),
			zap.Duration("elapsed", report.Elapsed),
			zap.Float64("estimated_gflops", report.EstimatedGFLOPS),
			zap.Float64("estimated_bandwidth_bytes_per_second", report.EstimatedBandwidth),
		)
		fmt.Printf("platform=%s threads=%d iterations=%d elapsed=%s gflops=%.3f bandwidth=%.3f MB/s\n",
			report.Platform, report.Threads, report.TotalIterations, report.Elapsed,
			report.EstimatedGFLOPS, report.EstimatedBandwidth/1e6)
	}

	if historyDB != nil {
		rec := history.RunRecord{
			StartedAt:          start,
			Platform:           report.Platform,
			FunctionID:         sel.Entry.ID,
			Threads:            report.Threads,
			Elapsed:            report.Elapsed,
			TotalIterations:    report.TotalIterations,
			EstimatedGFLOPS:    report.EstimatedGFLOPS,
			EstimatedBandwidth: report.EstimatedBandwidth,
			ExitCode:           exitCode,
		}
		if err := historyDB.AppendRun(rec); err != nil {
			log.Warn("failed to append run history", zap.Error(err))
		}
	}

	return exitCode
}

// parseBind parses a comma-separated logical CPU id list. Empty input
// returns a nil slice, meaning "don't pin any thread".
func parseBind(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		var id int
		if _, err := fmt.Sscanf(p, "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid CPU id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// loadDuration converts a load percentage and period into the Load
// duration the watchdog's duty-cycle loop expects.
func loadDuration(loadPercent, periodMicros int) time.Duration {
	if periodMicros <= 0 {
		return 0
	}
	return time.Duration(periodMicros) * time.Duration(loadPercent) / 100 * time.Microsecond
}

// initialLoad resolves spec.md §9's Open Question for the degenerate
// period==0 cases: stay High at load==100, Low otherwise. For period==0
// the watchdog never writes High or Low itself, so this seed holds for
// the whole run.
func initialLoad(loadPercent, periodMicros int) loadflag.Value {
	if periodMicros == 0 && loadPercent == 100 {
		return loadflag.High
	}
	return loadflag.Low
}

// printFunctions renders the --list-functions table: id, platform/function
// name, thread geometry, host availability, and the default payload
// settings string — the Go equivalent of FIRESTARTER's
// printFunctionSummary (X86/Functions.cpp).
func printFunctions(cat platform.Catalog) {
	var features map[string]bool
	if topo, _ := topology.Probe(); topo != nil {
		features = topo.Features
	}

	fmt.Println("ID\tNAME\t\tAVAILABLE\tSETTINGS")
	for _, e := range cat.Entries() {
		available := "yes"
		if features != nil && !e.Config.Payload.IsAvailable(features) {
			available = "no"
		}
		fmt.Printf("%d\t%s\t%s\t\t%s\n",
			e.ID, e.FunctionName, available, settingsString(e.Config.DefaultSettings))
	}
}

func settingsString(settings []payload.Setting) string {
	s := ""
	for i, set := range settings {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s:%d", set.Group, set.Weight)
	}
	return s
}
