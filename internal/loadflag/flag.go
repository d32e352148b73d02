// Package loadflag implements the process-global shared word that drives
// every worker's inner loop (spec component C5).
//
// The generated high-load routine treats the flag's address as a plain
// volatile read: it tests "== 0" to enter the low-load branch and "!= 1" to
// exit the high-load loop. That contract only holds because every writer
// (the watchdog's duty cycle, plus the controller's construction-time seed
// and its SWITCH writes) uses a sequentially-consistent atomic store,
// which Go's memory model guarantees is visible to any goroutine that loads
// it afterwards — the equivalent of the original's explicit mfence.
//
// Values are monotonic in practice (LOW/HIGH/SWITCH may alternate, but STOP
// is terminal): once Store(Stop) is called no further write should occur.
package loadflag

import "sync/atomic"

// Value is one of Low, High, Stop, Switch.
type Value uint64

const (
	// Low signals the idle phase. DO NOT CHANGE: generated code tests "== 0".
	Low Value = 0
	// High signals the active phase. DO NOT CHANGE: generated code tests "!= 1" to exit.
	High Value = 1
	// Stop requests immediate, terminal worker exit.
	Stop Value = 2
	// Switch requests a payload-settings retune (see the SWITCH protocol).
	Switch Value = 3
)

func (v Value) String() string {
	switch v {
	case Low:
		return "LOW"
	case High:
		return "HIGH"
	case Stop:
		return "STOP"
	case Switch:
		return "SWITCH"
	default:
		return "UNKNOWN"
	}
}

// Flag is the shared atomic word. Zero value is Low.
type Flag struct {
	word atomic.Uint64
}

// Store writes v. Written by the watchdog and, outside the duty cycle, by
// the controller; the atomic store is the full fence spec.md requires.
func (f *Flag) Store(v Value) {
	f.word.Store(uint64(v))
}

// Load reads the current value. Safe for concurrent readers.
func (f *Flag) Load() Value {
	return Value(f.word.Load())
}

// Ptr exposes the address for code that needs the Payload ABI's raw pointer
// semantics. The reference payloads in internal/payload do not use it;
// they poll through Load().
func (f *Flag) Ptr() *atomic.Uint64 {
	return &f.word
}
