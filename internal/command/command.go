// Package command implements the controller-to-worker command channel
// (spec component C7): a two-phase mutex handshake with no condition
// variable, grounded on
// firestarter/ThreadWorker.cpp::signalThreads plus the teacher's
// mutex-guarded-struct convention ("all fields protected by mu").
package command

import "sync"

// Command is one of the five worker states a controller can dispatch
// (spec.md §4.4).
type Command int

const (
	Wait Command = iota
	Init
	Work
	Switch
	Stop
)

func (c Command) String() string {
	switch c {
	case Wait:
		return "WAIT"
	case Init:
		return "INIT"
	case Work:
		return "WORK"
	case Switch:
		return "SWITCH"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Channel is one worker's side of the command handshake. All fields are
// protected by mu.
type Channel struct {
	mu   sync.Mutex
	comm Command
	ack  bool
}

// NewChannel returns a Channel whose initial command is Wait.
func NewChannel() *Channel {
	return &Channel{comm: Wait}
}

// awaitAck polls ack until the worker has set it, then clears it under the
// same mutex so the worker cannot double-acknowledge the next command
// (spec.md §4.5 step 3).
func (c *Channel) awaitAck() {
	for {
		c.mu.Lock()
		if c.ack {
			c.ack = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// Observe is the worker's side of step 1: read comm under the mutex; if it
// differs from old, acknowledge it and return the new command. The caller
// loops calling Observe (yielding between calls) until the command
// changes.
func (c *Channel) Observe(old Command) (current Command, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.comm == old {
		return old, false
	}
	c.ack = true
	return c.comm, true
}

// Broadcast sends cmd to every channel using the lock-all/set-all/
// unlock-all/await-all protocol ThreadWorker.cpp::signalThreads uses: every
// worker's mutex is acquired before any comm is written, so no worker can
// observe its new command until the whole set has been dispatched — then
// every channel's ack is awaited (spec.md §4.5 steps 1-3).
func Broadcast(channels []*Channel, cmd Command) {
	for _, ch := range channels {
		ch.mu.Lock()
	}
	for _, ch := range channels {
		ch.comm = cmd
		ch.mu.Unlock()
	}
	for _, ch := range channels {
		ch.awaitAck()
	}
}
