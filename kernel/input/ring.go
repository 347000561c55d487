// Package input implements the PS/2-keyboard-to-line-buffer pipeline:
// a lock-free single-producer/single-consumer scancode ring, a
// modifier-latch translator FSM, and the blocking line-read consumer
// API. Grounded on a keyboard device model's pre-populated scancode
// buffer for the scan-code-to-character translation shape, generalized
// from a host-side trapped-IO handler into a producer that runs inside
// the keyboard IRQ itself.
package input

import (
	"fmt"
	"sync/atomic"

	"github.com/rgudkoff/rodnix/kernel/errs"
)

// ScancodeEntry is one slot of the scancode ring: a raw scancode byte
// (already split from the pressed bit) plus its press/release state.
type ScancodeEntry struct {
	Code    uint8
	Pressed bool
}

// ScancodeRing is the fixed power-of-two-capacity, single-producer
// (IRQ) / single-consumer (kernel thread) ring: head/tail are
// monotonically increasing modulo capacity via a bitwise mask, and a
// full ring drops the newest datum rather than overwriting the oldest.
//
// head/tail are plain atomics rather than a mutex: there is exactly one
// writer (the IRQ handler, via Push) and exactly one reader (the
// consumer thread, via Pop), so no lock is needed -- only the
// acquire/release ordering that makes a written slot visible to the
// reader before the new tail is.
type ScancodeRing struct {
	buf  []ScancodeEntry
	mask uint32
	head atomic.Uint32
	tail atomic.Uint32
}

// NewScancodeRing allocates a ring of the given capacity, which must be
// a power of two.
func NewScancodeRing(capacity int) (*ScancodeRing, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("input: scancode ring capacity %d not a power of two: %w", capacity, errs.InvalidArg)
	}
	return &ScancodeRing{buf: make([]ScancodeEntry, capacity), mask: uint32(capacity - 1)}, nil
}

// Push appends e to the ring. If the ring is full the datum is dropped
// silently and Push returns false, which is better than the producer
// (an IRQ handler) blocking.
func (r *ScancodeRing) Push(e ScancodeEntry) bool {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail-head >= uint32(len(r.buf)) {
		return false
	}
	r.buf[tail&r.mask] = e
	r.tail.Store(tail + 1) // release: publish the slot before advancing tail
	return true
}

// Pop removes and returns the oldest entry, or false if the ring is
// empty.
func (r *ScancodeRing) Pop() (ScancodeEntry, bool) {
	head := r.head.Load()
	tail := r.tail.Load() // acquire: observe any slot Push published
	if head == tail {
		return ScancodeEntry{}, false
	}
	e := r.buf[head&r.mask]
	r.head.Store(head + 1)
	return e, true
}

// Len reports the number of entries currently queued.
func (r *ScancodeRing) Len() int {
	return int(r.tail.Load() - r.head.Load())
}
