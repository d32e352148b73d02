package topology

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
)

var (
	modelNameRe = regexp.MustCompile(`^model name\s*:\s*(.*)$`)
	vendorIDRe  = regexp.MustCompile(`^vendor_id\s*:\s*(.*)$`)
	cpuFamilyRe = regexp.MustCompile(`^cpu family\s*:\s*(\d+)$`)
	modelRe     = regexp.MustCompile(`^model\s*:\s*(\d+)$`)
	steppingRe  = regexp.MustCompile(`^stepping\s*:\s*(\d+)$`)
)

// cpuInfoFields is the subset of /proc/cpuinfo's first-processor block that
// Info needs to render its environment summary.
type cpuInfoFields struct {
	vendor, model          string
	family, modelID, stepping int
}

// readCPUInfo extracts vendor/model/family/stepping from a cpuinfo-style
// text file (normally /proc/cpuinfo), stopping at the first blank line so
// only the first logical processor's block is read — every field is
// identical across processors on any machine this tool targets. A missing
// or unreadable file is not fatal — it returns ok=false so the caller can
// emit a Warning rather than aborting (spec.md §4.1, §7).
func readCPUInfo(path string) (fields cpuInfoFields, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return cpuInfoFields{}, false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" && fields.vendor != "" {
			break
		}
		if m := modelNameRe.FindStringSubmatch(line); m != nil {
			fields.model = m[1]
		}
		if m := vendorIDRe.FindStringSubmatch(line); m != nil {
			fields.vendor = m[1]
		}
		if m := cpuFamilyRe.FindStringSubmatch(line); m != nil {
			fields.family, _ = strconv.Atoi(m[1])
		}
		if m := modelRe.FindStringSubmatch(line); m != nil {
			fields.modelID, _ = strconv.Atoi(m[1])
		}
		if m := steppingRe.FindStringSubmatch(line); m != nil {
			fields.stepping, _ = strconv.Atoi(m[1])
		}
	}
	return fields, true
}
