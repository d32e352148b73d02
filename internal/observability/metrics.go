// Metrics for thermite's load engine.
//
// Endpoint: GET /metrics on 127.0.0.1:9091 (configurable).
// Format: Prometheus text exposition format.
// Bind: loopback only by default — this is a stress-test tool, not a
// service meant for cluster-wide scraping.
//
// Metric naming convention: thermite_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry rather
// than the default global registry, to avoid collisions in processes
// that embed thermite's engine alongside other instrumented libraries.
//
// Only RunUptimeSeconds is updated here (by ServeMetrics). No other
// thermite package writes to the remaining metrics, so they stay at their
// zero values; the field comments below describe what each one measures.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric descriptor thermite exposes.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Workers ──────────────────────────────────────────────────────────────

	// WorkerIterationsTotal counts completed HighLoad iterations, by worker.
	WorkerIterationsTotal *prometheus.CounterVec

	// WorkerStateTransitionsTotal counts command-channel observations, by
	// worker and command name.
	WorkerStateTransitionsTotal *prometheus.CounterVec

	// ActiveWorkers is the current number of worker goroutines running.
	ActiveWorkers prometheus.Gauge

	// ─── Watchdog / duty cycle ────────────────────────────────────────────────

	// DutyCyclePhase is 1 when the load flag is High, 0 when Low.
	DutyCyclePhase prometheus.Gauge

	// DutyCycleJitterSeconds records the drift between the intended and
	// actual phase-advance timestamps each cycle.
	DutyCycleJitterSeconds prometheus.Histogram

	// SleepFailuresTotal counts nanosleep calls that failed outside EINTR.
	SleepFailuresTotal prometheus.Counter

	// ─── Performance estimate ─────────────────────────────────────────────────

	// EstimatedGFLOPS is the diagnostic throughput estimate from the last
	// completed run (spec.md §7: derived from iteration counts, not measured).
	EstimatedGFLOPS prometheus.Gauge

	// EstimatedBandwidthBytesPerSecond is the diagnostic memory bandwidth
	// estimate from the last completed run.
	EstimatedBandwidthBytesPerSecond prometheus.Gauge

	// ─── Operator ─────────────────────────────────────────────────────────────

	// OperatorCommandsTotal counts accepted operator control-plane commands,
	// by command name.
	OperatorCommandsTotal *prometheus.CounterVec

	// OperatorRateLimitedTotal counts switch requests rejected by the token
	// bucket rate limiter.
	OperatorRateLimitedTotal prometheus.Counter

	// ─── Engine ───────────────────────────────────────────────────────────────

	// RunUptimeSeconds is the number of seconds since the current run started.
	RunUptimeSeconds prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates and registers every thermite Prometheus metric.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		WorkerIterationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thermite",
			Subsystem: "worker",
			Name:      "iterations_total",
			Help:      "Total HighLoad iterations completed, by worker id.",
		}, []string{"worker_id"}),

		WorkerStateTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thermite",
			Subsystem: "worker",
			Name:      "state_transitions_total",
			Help:      "Total command-channel observations, by worker id and command.",
		}, []string{"worker_id", "command"}),

		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "thermite",
			Subsystem: "worker",
			Name:      "active",
			Help:      "Current number of worker goroutines running.",
		}),

		DutyCyclePhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "thermite",
			Subsystem: "watchdog",
			Name:      "duty_cycle_phase",
			Help:      "1 when the load flag is High, 0 when Low.",
		}),

		DutyCycleJitterSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "thermite",
			Subsystem: "watchdog",
			Name:      "duty_cycle_jitter_seconds",
			Help:      "Drift between the intended and actual phase-advance timestamp each cycle.",
			Buckets:   []float64{1e-6, 1e-5, 1e-4, 1e-3, 5e-3, 1e-2, 5e-2, 1e-1},
		}),

		SleepFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermite",
			Subsystem: "watchdog",
			Name:      "sleep_failures_total",
			Help:      "Total nanosleep calls that failed for a reason other than EINTR.",
		}),

		EstimatedGFLOPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "thermite",
			Subsystem: "report",
			Name:      "estimated_gflops",
			Help:      "Diagnostic floating-point throughput estimate from the last completed run.",
		}),

		EstimatedBandwidthBytesPerSecond: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "thermite",
			Subsystem: "report",
			Name:      "estimated_bandwidth_bytes_per_second",
			Help:      "Diagnostic memory bandwidth estimate from the last completed run.",
		}),

		OperatorCommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thermite",
			Subsystem: "operator",
			Name:      "commands_total",
			Help:      "Total accepted operator control-plane commands, by command name.",
		}, []string{"command"}),

		OperatorRateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "thermite",
			Subsystem: "operator",
			Name:      "rate_limited_total",
			Help:      "Total switch requests rejected by the operator's token bucket.",
		}),

		RunUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "thermite",
			Subsystem: "engine",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the current run started.",
		}),
	}

	reg.MustRegister(
		m.WorkerIterationsTotal,
		m.WorkerStateTransitionsTotal,
		m.ActiveWorkers,
		m.DutyCyclePhase,
		m.DutyCycleJitterSeconds,
		m.SleepFailuresTotal,
		m.EstimatedGFLOPS,
		m.EstimatedBandwidthBytesPerSecond,
		m.OperatorCommandsTotal,
		m.OperatorRateLimitedTotal,
		m.RunUptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on addr. Blocks
// until ctx is cancelled or the server fails.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.RunUptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
