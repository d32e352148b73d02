// Package controller wires C1-C8 together into the orchestration engine
// (topology probe -> selection -> worker pool -> watchdog), grounded on
// the teacher's numbered startup/shutdown sequence in
// cmd/octoreflex/main.go.
package controller

import "errors"

// Sentinel errors forming the error taxonomy (spec.md §7). Each is wrapped
// with %w as it propagates so callers can errors.Is against the taxonomy
// while still getting a descriptive message.
var (
	ErrFatalInit        = errors.New("controller: topology probe failed")
	ErrFatalNoPayload   = errors.New("controller: no applicable platform and no available fallback")
	ErrUnknownFunction  = errors.New("controller: unknown function id")
	ErrUnavailable      = errors.New("controller: requested payload unavailable on host")
	ErrAllocFailure     = errors.New("controller: worker buffer allocation failed")
	ErrSleepFailure     = errors.New("controller: watchdog sleep failed")
)

// ExitCode maps a controller error to the process exit code
// cmd/thermite's CLI surface documents (spec.md §6: 0 success, non-zero on
// FatalInit, FatalNoPayload, or unknown function id).
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrFatalInit):
		return 2
	case errors.Is(err, ErrFatalNoPayload):
		return 3
	case errors.Is(err, ErrUnknownFunction):
		return 4
	case errors.Is(err, ErrUnavailable):
		return 5
	case errors.Is(err, ErrAllocFailure):
		return 6
	case errors.Is(err, ErrSleepFailure):
		return 7
	default:
		return 1
	}
}
