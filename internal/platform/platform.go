// Package platform implements the platform catalog (spec component C2): a
// fixed table of known CPU platforms, each binding a feature predicate, a
// default payload mix, and cache/RAM buffer sizing, grounded on
// firestarter/Environment/X86/Platform/NehalemConfig.hpp's {group,weight}
// settings shape.
package platform

import (
	"sort"

	"github.com/octoreflex/thermite/internal/payload"
)

// Config is an immutable template describing one recognized CPU platform
// (spec.md §3 PlatformConfig). The invariant DataCacheBufferSizes has at
// least 3 entries (L1, L2, L3-equivalent) is enforced by Validate, not by
// the type itself — catalogs are built once at program startup.
type Config struct {
	Name                 string
	Family               int
	Models               []int
	DataCacheBufferSizes []int
	RAMBufferSize        int
	ThreadMap            map[int]string // threadsPerCore -> function name
	Default              bool
	DefaultSettings      []payload.Setting
	Payload              payload.Payload
}

// Validate reports the first structural defect in cfg, if any.
func (cfg Config) Validate() error {
	if len(cfg.DataCacheBufferSizes) < 3 {
		return &ConfigError{Name: cfg.Name, Reason: "fewer than 3 data-cache buffer sizes"}
	}
	if cfg.RAMBufferSize <= 0 {
		return &ConfigError{Name: cfg.Name, Reason: "non-positive RAM buffer size"}
	}
	if len(cfg.ThreadMap) == 0 {
		return &ConfigError{Name: cfg.Name, Reason: "empty thread map"}
	}
	if cfg.Payload == nil {
		return &ConfigError{Name: cfg.Name, Reason: "no bound payload"}
	}
	return nil
}

// ConfigError reports a malformed platform.Config, normally a programmer
// error caught at catalog construction time rather than at runtime.
type ConfigError struct {
	Name, Reason string
}

func (e *ConfigError) Error() string {
	return "platform " + e.Name + ": " + e.Reason
}

// IsApplicable reports whether cfg matches the host described by family,
// model and features — the matching rule from spec.md §3: family matches,
// model is in cfg.Models, and the bound payload's required features are
// all present.
func (cfg Config) IsApplicable(family, model int, features map[string]bool) bool {
	if cfg.Family != family {
		return false
	}
	if !containsInt(cfg.Models, model) {
		return false
	}
	return cfg.Payload.IsAvailable(features)
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Entry is one (threadsPerCore, functionName) pair flattened out of a
// Config's ThreadMap, tagged with the Config it came from and a global
// 1-based function id assigned in catalog order (spec.md §4.2).
type Entry struct {
	ID             int
	FunctionName   string
	ThreadsPerCore int
	Config         Config
}

// Catalog is an ordered list of platform configs plus a secondary ordered
// list of generic, ISA-level fallback platforms (spec.md §4.2).
type Catalog struct {
	Platforms []Config
	Fallbacks []Config
}

// Entries flattens every platform in catalog order into the global
// 1-based function-id sequence selector.SelectFunction indexes into.
// ThreadMap iteration order is made deterministic by sorting on
// threadsPerCore, since Go map iteration order is randomized.
func (c Catalog) Entries() []Entry {
	var entries []Entry
	id := 0
	for _, cfg := range c.Platforms {
		for _, tpc := range sortedKeys(cfg.ThreadMap) {
			id++
			entries = append(entries, Entry{ID: id, FunctionName: cfg.ThreadMap[tpc], ThreadsPerCore: tpc, Config: cfg})
		}
	}
	return entries
}

func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
