// Package errs defines the kernel-wide error taxonomy. Every public entry
// point in the kernel packages returns one of these sentinels (wrapped with
// fmt.Errorf("...: %w", ...) for context) rather than an ad-hoc error
// string, so callers can branch on the kind with errors.Is.
package errs

import "errors"

var (
	// InvalidArg means a caller-supplied argument is out of range or
	// otherwise malformed (e.g. an IDT vector outside 0-255).
	InvalidArg = errors.New("invalid argument")

	// OutOfMemory means the physical memory manager has no page left to
	// satisfy an allocation.
	OutOfMemory = errors.New("out of memory")

	// Resource means a fixed-capacity table (Fabric buses, drivers,
	// devices, services, IRQ handlers) is full.
	Resource = errors.New("resource exhausted")

	// NotPresent means a lookup, translate, or unmap missed: the entry
	// being asked about does not exist.
	NotPresent = errors.New("not present")

	// Busy is reserved for future use; nothing in the kernel core
	// returns it yet.
	Busy = errors.New("busy")

	// HardwareAbsent means required hardware (LAPIC, IO-APIC) was not
	// detected during init.
	HardwareAbsent = errors.New("hardware absent")
)
