package loadflag

import (
	"sync"
	"testing"
)

func TestStoreLoadRoundTrip(t *testing.T) {
	var f Flag
	if got := f.Load(); got != Low {
		t.Fatalf("zero value = %v, want Low", got)
	}
	for _, v := range []Value{High, Low, Switch, High, Stop} {
		f.Store(v)
		if got := f.Load(); got != v {
			t.Fatalf("Load() = %v, want %v", got, v)
		}
	}
}

func TestStopIsTerminalUnderConcurrentReaders(t *testing.T) {
	var f Flag
	f.Store(High)

	var wg sync.WaitGroup
	stopSeen := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if f.Load() == Stop {
					select {
					case stopSeen <- struct{}{}:
					default:
					}
					return
				}
			}
		}()
	}

	f.Store(Stop)
	<-stopSeen
	wg.Wait()

	if got := f.Load(); got != Stop {
		t.Fatalf("Load() after Stop = %v, want Stop", got)
	}
}

func TestValueString(t *testing.T) {
	cases := map[Value]string{Low: "LOW", High: "HIGH", Stop: "STOP", Switch: "SWITCH", Value(99): "UNKNOWN"}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Errorf("Value(%d).String() = %q, want %q", v, got, want)
		}
	}
}
