// Package selector implements platform/payload selection (spec component
// C4), grounded line-for-line on
// firestarter/Environment/X86/Functions.cpp::selectFunction.
package selector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/octoreflex/thermite/internal/platform"
)

// Sentinel errors forming the selection slice of the error taxonomy
// (spec.md §7). internal/controller/errors.go composes these into the
// full FatalInit/FatalNoPayload/UnknownFunctionId/UnavailablePayload set.
var (
	ErrUnknownFunctionID  = errors.New("selector: unknown function id")
	ErrUnavailablePayload = errors.New("selector: payload unavailable on host")
	ErrNoPayload          = errors.New("selector: no applicable or fallback platform")
)

// Host is the subset of topology.Info the selector needs, kept narrow so
// callers (and tests) don't have to build a full Info.
type Host struct {
	Family         int
	Model          int
	ThreadsPerCore int
	Features       map[string]bool
}

// Selection is the (platform.Config, threadsPerCore, functionName) tuple
// spec.md §3 calls SelectedConfig, prior to the controller attaching a
// mutable payloadSettings copy.
type Selection struct {
	Entry   platform.Entry
	Warning string
}

// SelectFunction resolves functionID/allowUnavailable against cat exactly
// as spec.md §4.2 orders the branches: explicit id, auto-detect by
// default+threadMap, fallback, then FatalNoPayload.
func SelectFunction(host Host, cat platform.Catalog, functionID int, allowUnavailable bool) (Selection, error) {
	entries := cat.Entries()

	if functionID > 0 {
		return selectByID(host, entries, functionID, allowUnavailable)
	}
	if sel, ok := selectDefault(host, cat, entries); ok {
		return sel, nil
	}
	if sel, ok := selectFallback(host, cat); ok {
		return sel, nil
	}
	return Selection{}, fmt.Errorf("%w: no default or fallback platform matches family=%d model=%d threadsPerCore=%d",
		ErrNoPayload, host.Family, host.Model, host.ThreadsPerCore)
}

func selectByID(host Host, entries []platform.Entry, functionID int, allowUnavailable bool) (Selection, error) {
	for _, e := range entries {
		if e.ID != functionID {
			continue
		}
		if !e.Config.Payload.IsAvailable(host.Features) {
			if !allowUnavailable {
				return Selection{}, fmt.Errorf("%w: %s requires features not present on host", ErrUnavailablePayload, e.Config.Payload.Name())
			}
			return Selection{Entry: e, Warning: fmt.Sprintf("proceeding with unavailable payload %s (--allow-unavailable)", e.Config.Payload.Name())}, nil
		}
		return Selection{Entry: e}, nil
	}
	return Selection{}, fmt.Errorf("%w: %d", ErrUnknownFunctionID, functionID)
}

// selectDefault finds the first platform whose Default flag is set and
// whose ThreadMap contains host.ThreadsPerCore exactly (spec.md §4.2's
// functionId==0 branch).
func selectDefault(host Host, cat platform.Catalog, entries []platform.Entry) (Selection, bool) {
	for _, cfg := range cat.Platforms {
		if !cfg.Default {
			continue
		}
		name, ok := cfg.ThreadMap[host.ThreadsPerCore]
		if !ok {
			continue
		}
		for _, e := range entries {
			if e.Config.Name == cfg.Name && e.FunctionName == name {
				return Selection{Entry: e}, true
			}
		}
		return Selection{}, false
	}
	return Selection{}, false
}

// selectFallback iterates cat.Fallbacks for the first available platform,
// preferring an entry matching host.ThreadsPerCore and otherwise taking the
// first pair in that platform's ThreadMap (spec.md §4.2's fallback branch).
func selectFallback(host Host, cat platform.Catalog) (Selection, bool) {
	for _, cfg := range cat.Fallbacks {
		if !cfg.Payload.IsAvailable(host.Features) {
			continue
		}
		if name, ok := cfg.ThreadMap[host.ThreadsPerCore]; ok {
			return Selection{
				Entry: platform.Entry{FunctionName: name, ThreadsPerCore: host.ThreadsPerCore, Config: cfg},
				Warning: fmt.Sprintf("using fallback platform %s", cfg.Name),
			}, true
		}
		for _, tpc := range sortedThreadMapKeys(cfg.ThreadMap) {
			return Selection{
				Entry: platform.Entry{FunctionName: cfg.ThreadMap[tpc], ThreadsPerCore: tpc, Config: cfg},
				Warning: fmt.Sprintf("using fallback platform %s with threadsPerCore=%d (host has %d)", cfg.Name, tpc, host.ThreadsPerCore),
			}, true
		}
	}
	return Selection{}, false
}

func sortedThreadMapKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
