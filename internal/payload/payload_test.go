package payload

import (
	"testing"
	"unsafe"

	"github.com/octoreflex/thermite/internal/loadflag"
)

func TestAlignedBufferIs64ByteAligned(t *testing.T) {
	for _, n := range []int{1, 7, 128, 4096} {
		buf := AlignedBuffer(n)
		if len(buf) != n {
			t.Fatalf("AlignedBuffer(%d) len = %d", n, len(buf))
		}
		if addr := uintptr(unsafe.Pointer(&buf[0])); addr%64 != 0 {
			t.Fatalf("AlignedBuffer(%d) starts at %#x, not 64-byte aligned", n, addr)
		}
	}
}

func TestFillBufferRoundTrip(t *testing.T) {
	buf1 := make([]float64, 2500)
	buf2 := make([]float64, 2500)
	FillBuffer(buf1, 1.654738925401e-10, 1.654738925401e-15)
	FillBuffer(buf2, 1.654738925401e-10, 1.654738925401e-15)
	for i := range buf1 {
		if buf1[i] != buf2[i] {
			t.Fatalf("index %d: %v != %v, want identical reinitialization", i, buf1[i], buf2[i])
		}
	}
	if buf1[0] != 1.654738925401e-10 {
		t.Errorf("buf[0] = %v, want firstValue", buf1[0])
	}
}

func TestFillBufferRepeatsBlockPattern(t *testing.T) {
	buf := make([]float64, blockWords+5)
	FillBuffer(buf, 1.654738925401e-10, 1.654738925401e-15)
	for i := 0; i < 5; i++ {
		if buf[i] != buf[blockWords+i] {
			t.Errorf("remainder word %d does not repeat block pattern: %v != %v", i, buf[i], buf[blockWords+i])
		}
	}
}

func TestSSE2Availability(t *testing.T) {
	p := NewSSE2()
	if !p.IsAvailable(map[string]bool{"SSE2": true}) {
		t.Error("SSE2 payload should be available when SSE2 is present")
	}
	if p.IsAvailable(map[string]bool{"SSE2": false}) {
		t.Error("SSE2 payload should be unavailable without SSE2")
	}
}

func TestAVX2FMARequiresBothFeatures(t *testing.T) {
	p := NewAVX2FMA()
	if p.IsAvailable(map[string]bool{"AVX2": true, "FMA3": false}) {
		t.Error("AVX2_FMA payload should require FMA3 too")
	}
	if !p.IsAvailable(map[string]bool{"AVX2": true, "FMA3": true}) {
		t.Error("AVX2_FMA payload should be available when both features are present")
	}
}

func TestCompileRejectsTooFewCacheBuffers(t *testing.T) {
	p := NewAVX()
	_, err := p.Compile(nil, []int{32 * 1024, 256 * 1024}, 8*1024*1024, 1, 64)
	if err == nil {
		t.Fatal("Compile should reject fewer than 3 data-cache buffer sizes")
	}
}

func TestHighLoadExitsWhenFlagLeavesHigh(t *testing.T) {
	p := NewSSE2()
	routine, err := p.Compile(nil, []int{32 * 1024, 256 * 1024, 8 * 1024 * 1024}, 64 * 1024 * 1024, 1, 64)
	if err != nil {
		t.Fatal(err)
	}
	buf := AlignedBuffer(1024)
	p.InitBuffer(buf)

	var flag loadflag.Flag
	flag.Store(loadflag.High)

	done := make(chan uint64)
	go func() {
		done <- routine.HighLoad(buf, &flag, 0)
	}()

	flag.Store(loadflag.Stop)
	iterations := <-done
	if iterations == 0 {
		t.Error("expected at least one iteration before the flag flipped")
	}
}

func TestLowLoadReturnsOnHighOrStop(t *testing.T) {
	p := NewAVX()
	routine, _ := p.Compile(nil, []int{32 * 1024, 256 * 1024, 8 * 1024 * 1024}, 64 * 1024 * 1024, 1, 64)

	var flag loadflag.Flag
	flag.Store(loadflag.Low)
	done := make(chan struct{})
	go func() {
		routine.LowLoad(&flag, 1000)
		close(done)
	}()
	flag.Store(loadflag.Stop)
	<-done
}
