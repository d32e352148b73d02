package controller

import (
	"go.uber.org/zap"

	"github.com/octoreflex/thermite/internal/loadflag"
	"github.com/octoreflex/thermite/internal/payload"
	"github.com/octoreflex/thermite/internal/platform"
	"github.com/octoreflex/thermite/internal/worker"
)

// defaultNewWorker adapts worker.New to the workerRunner interface. Tests
// substitute newWorkerFn with a lightweight fake to avoid real CPU pinning
// and buffer allocation.
func defaultNewWorker(id int, cfg platform.Config, threadsPerCore, cpuID int, settings []payload.Setting, flag *loadflag.Flag, periodMicros uint64, logger *zap.Logger) workerRunner {
	return worker.New(id, cfg, threadsPerCore, cpuID, settings, flag, periodMicros, logger)
}
