package input

import (
	"fmt"
	"sync"

	"github.com/rgudkoff/rodnix/kernel/errs"
)

// byteRing is the fixed power-of-two translated-character buffer, with
// the same producer/consumer discipline as ScancodeRing but guarded by
// a mutex instead of atomics, since the translator also mutates
// modifier state under the same lock. Always accessed with
// Translator's mutex already held, so it needs no atomics of its own.
type byteRing struct {
	buf        []byte
	head, tail uint32
	mask       uint32
}

func newByteRing(capacity int) (*byteRing, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("input: input buffer capacity %d not a power of two: %w", capacity, errs.InvalidArg)
	}
	return &byteRing{buf: make([]byte, capacity), mask: uint32(capacity - 1)}, nil
}

func (b *byteRing) push(c byte) bool {
	if b.tail-b.head >= uint32(len(b.buf)) {
		return false
	}
	b.buf[b.tail&b.mask] = c
	b.tail++
	return true
}

func (b *byteRing) pop() (byte, bool) {
	if b.head == b.tail {
		return 0, false
	}
	c := b.buf[b.head&b.mask]
	b.head++
	return c, true
}

func (b *byteRing) empty() bool { return b.head == b.tail }

// Translator is the keyboard FSM: modifier latches plus the
// scan-code-to-character mapping, all guarded by one mutex because
// the translator mutates both the latches and the output buffer
// together.
type Translator struct {
	mu sync.Mutex

	shift, ctrl, alt, capslock, numlock, scrolllock bool
	extended                                        bool

	out *byteRing
}

// NewTranslator builds a translator whose output buffer holds
// bufCapacity characters (must be a power of two).
func NewTranslator(bufCapacity int) (*Translator, error) {
	out, err := newByteRing(bufCapacity)
	if err != nil {
		return nil, err
	}
	return &Translator{out: out}, nil
}

// Process consumes one scancode entry, updating modifier latches or
// appending a translated character to the output buffer.
func (t *Translator) Process(e ScancodeEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.Code == extendedPrefix {
		t.extended = true
		return
	}
	wasExtended := t.extended
	t.extended = false

	switch e.Code {
	case scLeftShift, scRightShift:
		t.shift = e.Pressed
		return
	case scCtrl:
		t.ctrl = e.Pressed
		return
	case scAlt:
		t.alt = e.Pressed
		return
	case scCapsLock:
		if e.Pressed {
			t.capslock = !t.capslock
		}
		return
	case scNumLock:
		if e.Pressed {
			t.numlock = !t.numlock
		}
		return
	case scScrollLock:
		if e.Pressed {
			t.scrolllock = !t.scrolllock
		}
		return
	}

	if !e.Pressed || wasExtended || e.Code >= 128 {
		return
	}

	var ch byte
	switch e.Code {
	case scEnter:
		ch = '\n'
	case scBackspace:
		ch = '\b'
	case scTab:
		ch = '\t'
	case scEsc:
		ch = 0x1B
	default:
		if t.shift {
			ch = shiftedTable[e.Code]
		} else {
			ch = normalTable[e.Code]
		}
		if t.capslock {
			switch {
			case !t.shift && isLower(ch):
				ch = ch - 'a' + 'A'
			case t.shift && isUpper(ch):
				ch = ch - 'A' + 'a'
			}
		}
	}
	if ch == 0 {
		return
	}
	t.out.push(ch) // full buffer drops silently
}

// HasChar reports whether the output buffer currently holds at least
// one translated character.
func (t *Translator) HasChar() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.out.empty()
}

// ReadChar pops and returns one translated character.
func (t *Translator) ReadChar() (byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.pop()
}

// ShiftDown reports the live state of the shift latch, for tests that
// pressing then releasing shift leaves the latch false.
func (t *Translator) ShiftDown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shift
}

// CapsLockOn reports the live state of the capslock latch.
func (t *Translator) CapsLockOn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.capslock
}
