package platform

import "github.com/octoreflex/thermite/internal/payload"

// DefaultCatalog returns the three demonstrative platform profiles this
// port carries instead of FIRESTARTER's full per-microarchitecture table:
// a Nehalem-like SSE2 baseline, a Sandy-Bridge-like AVX profile, and a
// Haswell-like AVX2+FMA3 profile, each with its own threadMap for 1 and 2
// threads/core (grounded on NehalemConfig.hpp).
func DefaultCatalog() Catalog {
	return Catalog{
		Platforms: []Config{
			{
				Name:                 "NHM",
				Family:               6,
				Models:               []int{26, 30, 31, 37, 44, 46},
				DataCacheBufferSizes: []int{32 * 1024, 256 * 1024, 8 * 1024 * 1024},
				RAMBufferSize:        100 * 1024 * 1024,
				ThreadMap:            map[int]string{1: "NHM_1T", 2: "NHM_2T"},
				Default:              true,
				DefaultSettings: []payload.Setting{
					{Group: "RAM_P", Weight: 1},
					{Group: "L1_LS", Weight: 70},
					{Group: "REG", Weight: 2},
				},
				Payload: payload.NewSSE2(),
			},
			{
				Name:                 "SNB",
				Family:               6,
				Models:               []int{42, 45},
				DataCacheBufferSizes: []int{32 * 1024, 256 * 1024, 8 * 1024 * 1024},
				RAMBufferSize:        128 * 1024 * 1024,
				ThreadMap:            map[int]string{1: "SNB_1T", 2: "SNB_2T"},
				DefaultSettings: []payload.Setting{
					{Group: "RAM_L", Weight: 3},
					{Group: "L2_LS", Weight: 70},
					{Group: "REG", Weight: 2},
				},
				Payload: payload.NewAVX(),
			},
			{
				Name:                 "HSW",
				Family:               6,
				Models:               []int{60, 63, 69, 70},
				DataCacheBufferSizes: []int{32 * 1024, 256 * 1024, 8 * 1024 * 1024},
				RAMBufferSize:        256 * 1024 * 1024,
				ThreadMap:            map[int]string{1: "HSW_1T", 2: "HSW_2T"},
				DefaultSettings: []payload.Setting{
					{Group: "RAM_P", Weight: 1},
					{Group: "L1_LS", Weight: 90},
					{Group: "REG", Weight: 2},
				},
				Payload: payload.NewAVX2FMA(),
			},
		},
		Fallbacks: FallbackCatalog().Platforms,
	}
}

// FallbackCatalog returns the generic, ISA-level platforms used when no
// specific platform in DefaultCatalog matches the host (spec.md §4.2's
// "fallback" list): a plain SSE2 config and a plain AVX config, each
// applicable to any family/model, since selector's fallback branch checks
// only payload availability, not family or model.
func FallbackCatalog() Catalog {
	return Catalog{
		Platforms: []Config{
			{
				Name:                 "FALLBACK_SSE2",
				DataCacheBufferSizes: []int{32 * 1024, 256 * 1024, 8 * 1024 * 1024},
				RAMBufferSize:        100 * 1024 * 1024,
				ThreadMap:            map[int]string{1: "FALLBACK_SSE2_1T", 2: "FALLBACK_SSE2_2T"},
				DefaultSettings: []payload.Setting{
					{Group: "L1_LS", Weight: 1},
				},
				Payload: payload.NewSSE2(),
			},
			{
				Name:                 "FALLBACK_AVX",
				DataCacheBufferSizes: []int{32 * 1024, 256 * 1024, 8 * 1024 * 1024},
				RAMBufferSize:        100 * 1024 * 1024,
				ThreadMap:            map[int]string{1: "FALLBACK_AVX_1T", 2: "FALLBACK_AVX_2T"},
				DefaultSettings: []payload.Setting{
					{Group: "L1_LS", Weight: 1},
				},
				Payload: payload.NewAVX(),
			},
		},
	}
}
