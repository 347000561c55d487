package fabric

import (
	"fmt"
	"reflect"

	"github.com/rgudkoff/rodnix/kernel/arch"
	"github.com/rgudkoff/rodnix/kernel/errs"
)

// IRQHandlerFunc is a driver-registered IRQ callback, invoked by the
// multiplexer's trampoline with the vector it fired on and the
// caller-supplied arg.
type IRQHandlerFunc func(vector int, arg any)

// RequestIRQ claims a free slot in the IRQ-handler table and, if this
// is the first claim for vector, registers the multiplexer's
// trampoline with the interrupt subsystem. Capacity exhaustion fails
// with errs.Resource.
func (r *Registry) RequestIRQ(vector int, handler IRQHandlerFunc, arg any) error {
	r.irqMu.Lock()
	defer r.irqMu.Unlock()

	firstForVector := true
	freeIdx := -1
	for i := range r.irqSlots {
		if !r.irqSlots[i].active {
			if freeIdx == -1 {
				freeIdx = i
			}
			continue
		}
		if r.irqSlots[i].vector == vector {
			firstForVector = false
		}
	}
	if freeIdx == -1 {
		return fmt.Errorf("fabric: irq handler table full: %w", errs.Resource)
	}

	r.irqSlots[freeIdx] = irqHandlerSlot{vector: vector, handler: handler, arg: arg, active: true}
	r.irqCount++

	if firstForVector {
		r.installTrampoline(vector)
	}
	return nil
}

// FreeIRQ clears the first active slot matching (vector, handler) and
// shifts the later slots down one place, so the active slots stay a
// prefix of the table in insertion order.
func (r *Registry) FreeIRQ(vector int, handler IRQHandlerFunc) error {
	r.irqMu.Lock()
	defer r.irqMu.Unlock()

	target := reflect.ValueOf(handler).Pointer()
	for i := range r.irqSlots {
		slot := &r.irqSlots[i]
		if slot.active && slot.vector == vector && reflect.ValueOf(slot.handler).Pointer() == target {
			copy(r.irqSlots[i:], r.irqSlots[i+1:])
			r.irqSlots[len(r.irqSlots)-1] = irqHandlerSlot{}
			r.irqCount--
			return nil
		}
	}
	return fmt.Errorf("fabric: no matching irq handler for vector %d: %w", vector, errs.NotPresent)
}

// Dispatch is the multiplexer's trampoline: it iterates the handler
// table in insertion order and invokes every active entry whose vector
// matches, ignoring ctx beyond confirming the vector. It
// satisfies kernel/interrupts.HandlerFunc's shape so it can be
// registered directly with a Controller.
func (r *Registry) Dispatch(ctx *arch.InterruptContext) {
	vector := int(ctx.Vector)

	r.irqMu.Lock()
	var slots []irqHandlerSlot
	for i := range r.irqSlots {
		if r.irqSlots[i].active && r.irqSlots[i].vector == vector {
			slots = append(slots, r.irqSlots[i])
		}
	}
	r.irqMu.Unlock()

	for _, s := range slots {
		s.handler(vector, s.arg)
	}
}
