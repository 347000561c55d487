package arch

// GPRegisters is the general-purpose register file a low-level vector
// stub pushes before calling the dispatcher. Field order follows the
// push order a real stub would use; nothing in this package depends on
// it beyond being a stable struct.
type GPRegisters struct {
	RAX, RBX, RCX, RDX uint64
	RSI, RDI, RBP      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64
}

// InterruptContext is the architecture-neutral view of a trapped frame
// the dispatcher operates on: vector, error code, PC, SP, and flags
// extracted from the raw stub frame.
type InterruptContext struct {
	Regs      GPRegisters
	Vector    uint8
	ErrorCode uint64
	RIP       uint64
	CS        uint64
	RFLAGS    uint64
	RSP       uint64
	SS        uint64
	// CR2 is only meaningful when Vector == 14 (page fault); the
	// dispatcher reads it lazily via CR2Reader rather than unconditionally,
	// since reading CR2 on every exception is wasted work.
	CR2 uint64
}

// CR2Reader abstracts the single privileged read the dispatcher needs
// (MOV RAX, CR2) so the dispatcher itself stays testable without real
// hardware: tests provide a stub. interrupts.New installs a stub that
// returns 0, and kernel.Boot does not replace it.
type CR2Reader func() uint64
