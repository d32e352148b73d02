package payload

// NewSSE2 returns the baseline payload available on any x86-64 host: two
// packed double-precision flops and 16 bytes of buffer traffic per inner
// step, requiring only SSE2 (grounded on
// firestarter/Environment/X86/Payload/SSE2Payload.cpp).
func NewSSE2() Payload {
	return &sse2Payload{kernel{
		name:              "SSE2_32_128",
		requiredFeatures:  []string{"SSE2"},
		flopsPerIteration: 2,
		bytesPerIteration: 16,
	}}
}

type sse2Payload struct{ kernel }

func (p *sse2Payload) Compile(settings []Setting, dataCacheBufferSizes []int, ramBufferSize, threadsPerCore, lineCount int) (Routine, error) {
	return p.kernel.compile(settings, dataCacheBufferSizes, ramBufferSize, threadsPerCore, lineCount)
}
