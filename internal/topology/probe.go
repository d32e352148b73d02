package topology

// ProbeOptions lets callers override the sysfs/procfs roots. Production code
// always uses Probe(); tests use ProbeWithOptions to point at fixture trees.
type ProbeOptions struct {
	CPUInfoPath string
}

// DefaultOptions targets the real kernel-exposed paths.
func DefaultOptions() ProbeOptions {
	return ProbeOptions{CPUInfoPath: "/proc/cpuinfo"}
}

// Probe discovers the host's CPU topology and ISA feature set (spec
// component C1). It never fails: a missing or malformed cpuinfo file
// degrades to empty vendor/model strings, and missing sysfs degrades to a
// runtime.NumCPU()-based single-package estimate. Topology probing is
// diagnostic input to platform selection, not a precondition for
// correctness, so spec.md does not list it among the FatalInit causes.
func Probe() (*Info, []string) {
	return ProbeWithOptions(DefaultOptions())
}

// ProbeWithOptions is Probe with an overridable cpuinfo path, for tests.
func ProbeWithOptions(opts ProbeOptions) (*Info, []string) {
	var warnings []string

	packages, coresPerPkg, threadsPerCore, total := readSysTopology()

	fields, ok := readCPUInfo(opts.CPUInfoPath)
	if !ok {
		warnings = append(warnings, "cpuinfo unavailable at "+opts.CPUInfoPath+": vendor/model left blank")
	}

	info := &Info{
		Packages:                packages,
		PhysicalCoresPerPackage: coresPerPkg,
		ThreadsPerCore:          threadsPerCore,
		TotalThreads:            total,
		Vendor:                  fields.vendor,
		Model:                   fields.model,
		Family:                  fields.family,
		ModelID:                 fields.modelID,
		Stepping:                fields.stepping,
		Features:                readFeatures(),
		Caches:                  readCaches(total),
	}
	return info, warnings
}
