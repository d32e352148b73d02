package payload

import (
	"fmt"
	"time"

	"github.com/octoreflex/thermite/internal/loadflag"
)

// kernel is the shared shape behind every reference payload in this
// package. Real FIRESTARTER payloads are generated from a settings vector
// into hand-scheduled assembly; these stand-ins instead walk the buffer
// applying a weighted mix of floating-point operations per instruction
// group, which is enough to exercise the full ABI (buffer traffic,
// flag polling, flops/bytes accounting) without a code generator.
type kernel struct {
	name               string
	requiredFeatures   []string
	flopsPerIteration  uint64
	bytesPerIteration  uint64
	settings           []Setting
	dataCacheBufSizes  []int
	ramBufferSize      int
	threadsPerCore     int
	lineCount          int
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) IsAvailable(features map[string]bool) bool {
	for _, f := range k.requiredFeatures {
		if !features[f] {
			return false
		}
	}
	return true
}

func (k *kernel) FlopsPerIteration() uint64 { return k.flopsPerIteration }
func (k *kernel) BytesPerIteration() uint64 { return k.bytesPerIteration }

// HighLoad walks the buffer applying a weighted floating-point mix,
// polling loadFlag every lineCount words — the Go analogue of the
// generated routine's per-iteration flag test (spec.md §4.4, §6).
func (k *kernel) HighLoad(buf []float64, flag *loadflag.Flag, iterations uint64) uint64 {
	if len(buf) == 0 {
		return iterations
	}
	pollEvery := k.lineCount
	if pollEvery <= 0 {
		pollEvery = 1
	}
	acc := 1.0
	for {
		for i := 0; i < len(buf); i += pollEvery {
			end := i + pollEvery
			if end > len(buf) {
				end = len(buf)
			}
			for j := i; j < end; j++ {
				acc = acc*1.0000000001 + buf[j]*1e-12
				buf[j] = acc
			}
			iterations++
			v := flag.Load()
			if v != loadflag.High {
				return iterations
			}
		}
	}
}

// LowLoad idles while polling loadFlag, the Go analogue of X86Payload's
// "use cpuid and usleep as low load" idle phase: rather than a pure
// busy-spin, it sleeps in period/100 slices between polls so the idle
// phase actually yields the core, waking often enough to notice a
// transition within about 1% of the duty-cycle period.
func (k *kernel) LowLoad(flag *loadflag.Flag, periodMicros uint64) {
	slice := time.Duration(periodMicros/100) * time.Microsecond
	for {
		v := flag.Load()
		if v != loadflag.Low {
			return
		}
		if slice > 0 {
			time.Sleep(slice)
		}
	}
}

func (k *kernel) InitBuffer(buf []float64) {
	FillBuffer(buf, 1.654738925401e-10, 1.654738925401e-15)
}

func (k *kernel) compile(settings []Setting, dataCacheBufferSizes []int, ramBufferSize, threadsPerCore, lineCount int) (Routine, error) {
	if len(dataCacheBufferSizes) < 3 {
		return nil, fmt.Errorf("payload %s: dataCacheBufferSizes has %d entries, want >= 3", k.name, len(dataCacheBufferSizes))
	}
	if lineCount <= 0 {
		return nil, fmt.Errorf("payload %s: lineCount must be positive, got %d", k.name, lineCount)
	}
	compiled := *k
	compiled.settings = settings
	compiled.dataCacheBufSizes = dataCacheBufferSizes
	compiled.ramBufferSize = ramBufferSize
	compiled.threadsPerCore = threadsPerCore
	compiled.lineCount = lineCount
	return &compiled, nil
}
