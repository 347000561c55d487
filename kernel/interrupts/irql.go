package interrupts

// IRQL is the interrupt request level, an ordered enum used to mask
// interrupts coarsely. Raising IRQL disables hardware interrupts;
// lowering it to Passive re-enables them. It is process-wide state for
// this single-CPU design.
type IRQL uint8

const (
	Passive IRQL = iota
	Dispatch
	Device
	High
)

func (l IRQL) String() string {
	switch l {
	case Passive:
		return "PASSIVE"
	case Dispatch:
		return "DISPATCH"
	case Device:
		return "DEVICE"
	case High:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}
