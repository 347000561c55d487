// Package nic drives an NE2000/DP8390-compatible network interface
// over its 32-byte I/O window, published as a Fabric "net" service.
// Models the same DP8390 register set and ring-buffer page layout a
// virtualized NE2000 models from the host side of a trap; here the
// Device issues the port reads and writes itself, as the real driver
// that would run in ring 0.
package nic

import "fmt"

const (
	basePort = 0x300

	regCR    = 0x00
	regPSTART = 0x01
	regPSTOP  = 0x02
	regBNRY   = 0x03
	regTPSR   = 0x04
	regTBCR0  = 0x05
	regTBCR1  = 0x06
	regISR    = 0x07
	regRBCR0  = 0x0A
	regRBCR1  = 0x0B
	regRCR    = 0x0C
	regTCR    = 0x0D
	regDCR    = 0x0E
	regIMR    = 0x0F

	regPAR0 = 0x01 // page 1
	regCURR = 0x07 // page 1

	asicData  = 0x10
	asicReset = 0x1F

	crStop  = 0x01
	crStart = 0x02
	crTXP   = 0x04
	crRD2   = 0x20 // abort/complete remote DMA
	crPage0 = 0x00
	crPage1 = 0x40

	isrPRX = 0x01
	isrPTX = 0x02
	isrRDC = 0x40
	isrRST = 0x80

	dcrByteModeFIFO8 = 0x20 // WTS=0 (byte), FT1=1 (8-byte FIFO threshold)

	txPageStart  = 0x40 // first ring page reserved for TX
	rxPageStart  = 0x46 // RX ring begins after the TX buffer
	rxPageStop   = 0x80

	irqLine = 9
)

// Ports is the byte-grained I/O primitive the driver needs.
type Ports interface {
	Outb(port uint16, val byte)
	Inb(port uint16) byte
}

// Device models one NE2000-compatible adapter.
type Device struct {
	ports Ports
	mac   [6]byte
}

// New returns an uninitialised Device.
func New(ports Ports) *Device {
	return &Device{ports: ports}
}

func (d *Device) reg(r uint16) uint16     { return basePort + r }
func (d *Device) out(r uint16, v byte)    { d.ports.Outb(d.reg(r), v) }
func (d *Device) in(r uint16) byte        { return d.ports.Inb(d.reg(r)) }

// Reset issues the ASIC reset cycle: write-then-read the reset port,
// then wait for ISR_RST.
func (d *Device) Reset() {
	v := d.ports.Inb(d.reg(asicReset))
	d.ports.Outb(d.reg(asicReset), v)
	for d.in(regISR)&isrRST == 0 {
	}
	d.out(regISR, isrRST)
}

// Init programs the ring-buffer boundaries, stops remote DMA, selects
// byte-mode FIFO, installs mac into PAR0-5 (page 1), and starts the
// card.
func (d *Device) Init(mac [6]byte) {
	d.mac = mac

	d.out(regCR, crPage0|crRD2|crStop)
	d.out(regDCR, dcrByteModeFIFO8)
	d.out(regRBCR0, 0)
	d.out(regRBCR1, 0)
	d.out(regRCR, 0) // accept only matching unicast by default
	d.out(regTCR, 0)
	d.out(regTPSR, txPageStart)
	d.out(regPSTART, rxPageStart)
	d.out(regBNRY, rxPageStart)
	d.out(regPSTOP, rxPageStop)
	d.out(regISR, 0xFF) // clear all pending flags
	d.out(regIMR, isrPRX|isrPTX)

	d.out(regCR, crPage1|crRD2|crStop)
	for i, b := range mac {
		d.out(regPAR0+uint16(i), b)
	}
	d.out(regCURR, rxPageStart+1)

	d.out(regCR, crPage0|crRD2|crStart)
}

// MAC returns the station address programmed by Init.
func (d *Device) MAC() [6]byte { return d.mac }

// IRQLine is the PIC line this adapter raises.
func IRQLine() uint8 { return irqLine }

// SendFrame programs remote DMA to copy data into the TX buffer page,
// then sets TXP to transmit it. Empty frames and frames longer than
// 0xFF*256 (65280) bytes are rejected; no other length check is made
// against the size of the TX buffer pages.
func (d *Device) SendFrame(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("nic: empty frame")
	}
	if len(data) > 0xFF*256 {
		return fmt.Errorf("nic: frame too large for the transmit buffer")
	}

	d.out(regRBCR0, byte(len(data)))
	d.out(regRBCR1, byte(len(data)>>8))
	d.out(regCR, crPage0|0x08|crStart) // RD0=remote write
	for _, b := range data {
		d.ports.Outb(d.reg(asicData), b)
	}
	for d.in(regISR)&isrRDC == 0 {
	}
	d.out(regISR, isrRDC)

	d.out(regTBCR0, byte(len(data)))
	d.out(regTBCR1, byte(len(data)>>8))
	d.out(regCR, crPage0|crRD2|crStart|crTXP)
	for d.in(regISR)&isrPTX == 0 {
	}
	d.out(regISR, isrPTX)
	return nil
}

// TryReceiveFrame drains one frame from the ring buffer if ISR_PRX is
// set, else reports false. frameLen bytes are read via remote DMA from
// rxPageStart, matching the simplified single-descriptor ring this
// driver maintains.
func (d *Device) TryReceiveFrame(frameLen int) ([]byte, bool) {
	if d.in(regISR)&isrPRX == 0 {
		return nil, false
	}
	d.out(regISR, isrPRX)

	d.out(regRBCR0, byte(frameLen))
	d.out(regRBCR1, byte(frameLen>>8))
	d.out(regCR, crPage0|0x10|crStart) // RD1=remote read
	buf := make([]byte, frameLen)
	for i := range buf {
		buf[i] = d.ports.Inb(d.reg(asicData))
	}
	for d.in(regISR)&isrRDC == 0 {
	}
	d.out(regISR, isrRDC)
	return buf, true
}

// Ops is the "net" service's operation table.
type Ops struct {
	MAC  [6]byte
	Send func(data []byte) error
	Recv func(frameLen int) ([]byte, bool)
}

// ServiceOps builds the Ops table backing this Device.
func (d *Device) ServiceOps() Ops {
	return Ops{MAC: d.mac, Send: d.SendFrame, Recv: d.TryReceiveFrame}
}
