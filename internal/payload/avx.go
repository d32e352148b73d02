package payload

// NewAVX returns the 256-bit-wide payload requiring AVX: four packed
// double-precision flops and 32 bytes of buffer traffic per inner step,
// modeled on a Sandy-Bridge-class platform profile.
func NewAVX() Payload {
	return &avxPayload{kernel{
		name:              "AVX_32_256",
		requiredFeatures:  []string{"AVX"},
		flopsPerIteration: 4,
		bytesPerIteration: 32,
	}}
}

type avxPayload struct{ kernel }

func (p *avxPayload) Compile(settings []Setting, dataCacheBufferSizes []int, ramBufferSize, threadsPerCore, lineCount int) (Routine, error) {
	return p.kernel.compile(settings, dataCacheBufferSizes, ramBufferSize, threadsPerCore, lineCount)
}
