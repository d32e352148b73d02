package topology

import "golang.org/x/sys/cpu"

// readFeatures reports the ISA feature flags payload selection cares about
// (spec.md §4.1, §4.3). golang.org/x/sys/cpu populates these at process
// init by executing CPUID directly, so no cgo or inline asm is needed.
func readFeatures() map[string]bool {
	x := cpu.X86
	return map[string]bool{
		"MMX":     x.HasMMX,
		"SSE":     x.HasSSE,
		"SSE2":    x.HasSSE2,
		"SSE3":    x.HasSSE3,
		"SSSE3":   x.HasSSSE3,
		"SSE4.1":  x.HasSSE41,
		"SSE4.2":  x.HasSSE42,
		"AVX":     x.HasAVX,
		"AVX2":    x.HasAVX2,
		"AVX512F": x.HasAVX512F,
		"FMA3":    x.HasFMA,
		"AES":     x.HasAES,
		"BMI1":    x.HasBMI1,
		"BMI2":    x.HasBMI2,
		"ERMS":    x.HasERMS,
		"ADX":     x.HasADX,
	}
}
