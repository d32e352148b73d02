// Package payload defines the Payload ABI (spec component C3): the
// contract between the worker pool and an architecture-specific high-load
// kernel. The kernel itself — what FIRESTARTER calls the generated
// function, normally emitted by an offline code generator from an
// instruction-group mix — is out of scope; this package supplies
// reference Go implementations that satisfy the same ABI so the rest of
// the engine (selection, compilation, buffer lifecycle, the worker state
// machine) can be exercised end to end without a real JIT.
package payload

import "github.com/octoreflex/thermite/internal/loadflag"

// Setting is one (instructionGroup, weight) pair from a platform's
// payload-settings vector, e.g. {"RAM_P", 1} or {"L1_LS", 70}. The SWITCH
// protocol (spec.md §4.6, §9) mutates a per-thread copy of this slice
// between WORK epochs.
type Setting struct {
	Group  string
	Weight int
}

// Routine is a payload compiled against a specific settings vector, buffer
// layout, and thread. It is what a worker actually calls once per WORK
// epoch; recompiling (on SWITCH) produces a new Routine.
type Routine interface {
	// HighLoad runs until *flag departs from High, accumulating iterations
	// starting from the given count and returning the new total. It must
	// poll the flag at least once per inner iteration.
	HighLoad(buf []float64, flag *loadflag.Flag, iterations uint64) uint64

	// LowLoad idles until *flag leaves Low (becomes High, Switch, or
	// Stop), still polling.
	LowLoad(flag *loadflag.Flag, periodMicros uint64)
}

// Payload is the static, architecture-specific capability a PlatformConfig
// binds to. Compile produces a Routine tuned for one thread's buffer
// layout; a fresh Payload value is immutable and safely shared across
// every worker that selects the same platform.
type Payload interface {
	// Name identifies the payload in --list-functions output and logs,
	// e.g. "SSE2_32_128" or "AVX2_FMA_86_192".
	Name() string

	// IsAvailable reports whether every ISA feature this payload requires
	// is present in the host's feature map (spec.md §3, §4.2).
	IsAvailable(features map[string]bool) bool

	// Compile produces a Routine bound to the given settings and buffer
	// geometry. dataCacheBufferSizes and ramBufferSize describe the
	// platform's cache hierarchy; threadsPerCore and lineCount refine the
	// working-set split within that geometry.
	Compile(settings []Setting, dataCacheBufferSizes []int, ramBufferSize, threadsPerCore, lineCount int) (Routine, error)

	// InitBuffer fills buf with the payload's deterministic warm-up
	// sequence (spec.md §4.3).
	InitBuffer(buf []float64)

	// FlopsPerIteration and BytesPerIteration are static, architecture-level
	// attributes (spec.md §3) used to turn a raw iteration count into the
	// diagnostic GFLOPS/bandwidth estimate the performance report prints
	// (spec.md §7). They do not depend on the compiled settings.
	FlopsPerIteration() uint64
	BytesPerIteration() uint64
}
