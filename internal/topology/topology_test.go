package topology

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fixtureCPUInfo = `processor	: 0
vendor_id	: GenuineIntel
cpu family	: 6
model		: 62
model name	: Intel(R) Xeon(R) CPU E5-2670 v2 @ 2.50GHz
stepping	: 4

processor	: 1
vendor_id	: GenuineIntel
cpu family	: 6
model		: 62
model name	: Intel(R) Xeon(R) CPU E5-2670 v2 @ 2.50GHz
stepping	: 4
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cpuinfo")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCPUInfoParsesFirstBlock(t *testing.T) {
	path := writeFixture(t, fixtureCPUInfo)
	fields, ok := readCPUInfo(path)
	if !ok {
		t.Fatal("readCPUInfo returned ok=false for a valid fixture")
	}
	if fields.vendor != "GenuineIntel" {
		t.Errorf("vendor = %q, want GenuineIntel", fields.vendor)
	}
	if fields.family != 6 || fields.modelID != 62 || fields.stepping != 4 {
		t.Errorf("family/model/stepping = %d/%d/%d, want 6/62/4", fields.family, fields.modelID, fields.stepping)
	}
	if fields.model != "Intel(R) Xeon(R) CPU E5-2670 v2 @ 2.50GHz" {
		t.Errorf("model = %q", fields.model)
	}
}

func TestReadCPUInfoMissingFileIsNotFatal(t *testing.T) {
	_, ok := readCPUInfo(filepath.Join(t.TempDir(), "does-not-exist"))
	if ok {
		t.Fatal("readCPUInfo should report ok=false for a missing file")
	}
}

func TestProbeWithOptionsNeverFails(t *testing.T) {
	info, warnings := ProbeWithOptions(ProbeOptions{CPUInfoPath: filepath.Join(t.TempDir(), "missing")})
	if info == nil {
		t.Fatal("Probe returned nil Info")
	}
	if info.TotalThreads <= 0 {
		t.Errorf("TotalThreads = %d, want > 0 (runtime.NumCPU fallback)", info.TotalThreads)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning about the missing cpuinfo file")
	}
}

func TestProbeWithFixtureCPUInfo(t *testing.T) {
	path := writeFixture(t, fixtureCPUInfo)
	info, warnings := ProbeWithOptions(ProbeOptions{CPUInfoPath: path})
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if info.Vendor != "GenuineIntel" {
		t.Errorf("Vendor = %q", info.Vendor)
	}
	if info.Features == nil {
		t.Error("Features map should never be nil")
	}
}

func TestInfoSummaryIncludesTopologyAndFeatures(t *testing.T) {
	info := &Info{
		Packages:                1,
		PhysicalCoresPerPackage: 4,
		ThreadsPerCore:          2,
		TotalThreads:            8,
		Vendor:                  "GenuineIntel",
		Model:                   "Test CPU",
		Family:                  6,
		ModelID:                 62,
		Stepping:                4,
		Features:                map[string]bool{"AVX2": true, "AVX512F": false},
		Caches: []Cache{
			{Level: 1, Kind: "data", SizeBytes: 32 * 1024, LineSize: 64, SharingDegree: 1},
		},
	}
	s := info.Summary()
	if !strings.Contains(s, "AVX2") {
		t.Error("Summary should mention an enabled feature")
	}
	if strings.Contains(s, "AVX512F") {
		t.Error("Summary should not mention a disabled feature")
	}
	if !strings.Contains(s, "L1 data") {
		t.Error("Summary should describe the cache hierarchy")
	}
	if !info.HasFeature("AVX2") || info.HasFeature("AVX512F") {
		t.Error("HasFeature should reflect the Features map")
	}
}
