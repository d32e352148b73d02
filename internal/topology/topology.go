// Package topology implements CPU topology discovery and feature detection
// (spec component C1).
//
// Probe() combines three sources, mirroring FIRESTARTER's Environment class:
//   - Linux sysfs (/sys/devices/system/cpu/...) for packages, physical
//     cores, threads per core, and the cache hierarchy.
//   - /proc/cpuinfo for the human-readable vendor/model strings.
//   - golang.org/x/sys/cpu for ISA feature flags (no cgo/asm required).
package topology

import "fmt"

// Cache describes one level of the cache hierarchy.
type Cache struct {
	Level         int
	Kind          string // "data" | "instruction" | "unified"
	SizeBytes     int
	LineSize      int
	Associativity int // -1 = fully associative, 0 = unknown
	SharingDegree int // number of logical threads sharing one instance
}

// Info is the immutable result of a topology probe.
//
// Invariant: TotalThreads == Packages * PhysicalCoresPerPackage * ThreadsPerCore.
type Info struct {
	Packages               int
	PhysicalCoresPerPackage int
	ThreadsPerCore          int
	TotalThreads            int

	Vendor   string
	Model    string
	Family   int
	ModelID  int
	Stepping int

	Features map[string]bool
	Caches   []Cache
}

// HasFeature reports whether the host CPU advertises the named ISA feature.
func (i *Info) HasFeature(name string) bool {
	return i.Features[name]
}

// Summary renders the human-readable environment dump FIRESTARTER prints at
// startup (Environment::printEnvironmentSummary), used by cmd/thermite.
func (i *Info) Summary() string {
	s := fmt.Sprintf(
		"system summary:\n"+
			"  packages:            %d\n"+
			"  cores per package:   %d\n"+
			"  threads per core:    %d\n"+
			"  total threads:       %d\n"+
			"processor characteristics:\n"+
			"  vendor:              %s\n"+
			"  model:               %s\n"+
			"  family/model/step:   %d/%d/%d\n",
		i.Packages, i.PhysicalCoresPerPackage, i.ThreadsPerCore, i.TotalThreads,
		i.Vendor, i.Model, i.Family, i.ModelID, i.Stepping)

	s += "  supported features: "
	first := true
	for name, on := range i.Features {
		if !on {
			continue
		}
		if !first {
			s += " "
		}
		s += name
		first = false
	}
	s += "\n"

	if len(i.Caches) > 0 {
		s += "  caches:\n"
		for _, c := range i.Caches {
			shared := "per thread"
			if c.SharingDegree > 1 {
				shared = fmt.Sprintf("shared among %d threads", c.SharingDegree)
			}
			s += fmt.Sprintf("    - L%d %s, %d KiB, %d B line, %s\n",
				c.Level, c.Kind, c.SizeBytes/1024, c.LineSize, shared)
		}
	}
	return s
}
