package topology

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

const sysfsCPUDir = "/sys/devices/system/cpu"

var cpuDirRe = regexp.MustCompile(`^cpu(\d+)$`)

// readSysTopology derives packages / physical cores per package / threads
// per core from Linux sysfs topology files. When sysfs is unavailable (not
// running on Linux, or the directory is restricted, as in many containers)
// it falls back to a single-package, single-thread-per-core estimate built
// from runtime.NumCPU() — conservative, but never fatal: spec.md only
// requires FatalInit when topology cannot be determined at all, and
// runtime.NumCPU() is always available.
func readSysTopology() (packages, physCoresPerPackage, threadsPerCore, totalThreads int) {
	entries, err := os.ReadDir(sysfsCPUDir)
	if err != nil {
		n := runtime.NumCPU()
		return 1, n, 1, n
	}

	type coreKey struct{ pkg, core int }
	pkgSet := map[int]bool{}
	coreSet := map[coreKey]bool{}
	nThreads := 0

	for _, e := range entries {
		m := cpuDirRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		nThreads++

		topoDir := filepath.Join(sysfsCPUDir, e.Name(), "topology")
		pkg := readIntFile(filepath.Join(topoDir, "physical_package_id"), 0)
		core := readIntFile(filepath.Join(topoDir, "core_id"), 0)

		pkgSet[pkg] = true
		coreSet[coreKey{pkg, core}] = true
	}

	if nThreads == 0 {
		n := runtime.NumCPU()
		return 1, n, 1, n
	}

	packages = len(pkgSet)
	if packages == 0 {
		packages = 1
	}
	totalPhysCores := len(coreSet)
	if totalPhysCores == 0 {
		totalPhysCores = nThreads
	}
	physCoresPerPackage = totalPhysCores / packages
	if physCoresPerPackage == 0 {
		physCoresPerPackage = 1
	}
	threadsPerCore = nThreads / totalPhysCores
	if threadsPerCore == 0 {
		threadsPerCore = 1
	}
	totalThreads = nThreads
	return
}

// readCaches enumerates the cache hierarchy exposed under cpu0's cache/
// directory, in FIRESTARTER's L1D, L1I, L2, L2I, L3, L3I, L4, L5 order.
func readCaches(totalThreads int) []Cache {
	base := filepath.Join(sysfsCPUDir, "cpu0", "cache")
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil
	}

	var caches []Cache
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "index") {
			continue
		}
		dir := filepath.Join(base, e.Name())

		level := readIntFile(filepath.Join(dir, "level"), 0)
		if level == 0 {
			continue
		}
		kind := normalizeCacheType(readStringFile(filepath.Join(dir, "type")))
		size := readSizeFile(filepath.Join(dir, "size"))
		line := readIntFile(filepath.Join(dir, "coherency_line_size"), 64)
		assoc := readIntFile(filepath.Join(dir, "ways_of_associativity"), 0)
		sharing := countCPUList(readStringFile(filepath.Join(dir, "shared_cpu_list")))
		if sharing == 0 {
			sharing = 1
		}

		caches = append(caches, Cache{
			Level:         level,
			Kind:          kind,
			SizeBytes:     size,
			LineSize:      line,
			Associativity: assoc,
			SharingDegree: sharing,
		})
	}

	sort.SliceStable(caches, func(a, b int) bool {
		if caches[a].Level != caches[b].Level {
			return caches[a].Level < caches[b].Level
		}
		return caches[a].Kind < caches[b].Kind
	})
	return caches
}

func normalizeCacheType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "data":
		return "data"
	case "instruction":
		return "instruction"
	default:
		return "unified"
	}
}

func readIntFile(path string, def int) int {
	s := readStringFile(path)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func readStringFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// readSizeFile parses sysfs cache sizes like "32K" or "1536K" into bytes.
func readSizeFile(path string) int {
	s := readStringFile(path)
	if s == "" {
		return 0
	}
	mult := 1
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v * mult
}

// countCPUList counts logical CPUs in a sysfs list like "0-3" or "0,2,4-5".
func countCPUList(s string) int {
	if s == "" {
		return 0
	}
	n := 0
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, err1 := strconv.Atoi(part[:i])
			hi, err2 := strconv.Atoi(part[i+1:])
			if err1 == nil && err2 == nil && hi >= lo {
				n += hi - lo + 1
				continue
			}
		}
		n++
	}
	return n
}
