package payload

// NewAVX2FMA returns the widest reference payload: fused multiply-add over
// 256-bit registers, eight packed double-precision flops and 32 bytes of
// buffer traffic per inner step, requiring AVX2 and FMA3, modeled on a
// Haswell-class platform profile.
func NewAVX2FMA() Payload {
	return &avx2FmaPayload{kernel{
		name:              "AVX2_FMA_86_192",
		requiredFeatures:  []string{"AVX2", "FMA3"},
		flopsPerIteration: 8,
		bytesPerIteration: 32,
	}}
}

type avx2FmaPayload struct{ kernel }

func (p *avx2FmaPayload) Compile(settings []Setting, dataCacheBufferSizes []int, ramBufferSize, threadsPerCore, lineCount int) (Routine, error) {
	return p.kernel.compile(settings, dataCacheBufferSizes, ramBufferSize, threadsPerCore, lineCount)
}
