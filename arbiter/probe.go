package arbiter

import (
	"time"
)

// Probe drives stimulus into an arbiter and samples its outputs.
// All levels are logical ("true = asserted"); implementations handle
// any electrical inversion.
type Probe interface {
	// SetReqA drives requester A's request line.
	SetReqA(asserted bool)
	// SetReqB drives requester B's request line.
	SetReqB(asserted bool)
	// SetBusActive drives the BUS_ACTIVE release gate.
	SetBusActive(active bool)
	// PulseReset pulses the arbiter MCU's reset line.
	PulseReset()
	// Sample reads every observable output line at once.
	Sample() Snapshot
}

// PinDriver is the raw digital I/O surface a GpioProbe runs on.
type PinDriver interface {
	// PinMode configures a pin as an output (true) or input (false).
	PinMode(pin int, output bool)
	// DigitalWrite drives an output pin.
	DigitalWrite(pin int, high bool)
	// DigitalRead samples an input pin.
	DigitalRead(pin int) bool
}

// Pinout assigns the arbiter's logical signals to pin numbers.
// Pin numbers are configuration, not semantics.
type Pinout struct {
	ReqA      int // REQ_A_OUT, driven, active-low on the wire.
	ReqB      int // REQ_B_OUT, driven, active-low on the wire.
	OwnerA    int // OWNER_A_IN
	OwnerB    int // OWNER_B_IN
	PrevA     int // PREV_A_IN
	PrevB     int // PREV_B_IN
	IrqA      int // IRQ_A_IN
	IrqB      int // IRQ_B_IN
	Sel       int // SEL_IN
	OE        int // OE_IN, active-low on the wire.
	BusActive int // BUS_ACTIVE, driven.
	Reset     int // TINY_RST, driven, active-low pulse.
}

// DefaultPinout is the stock wiring between the RP2040 header and the
// arbiter MCU.
func DefaultPinout() Pinout {
	return Pinout{
		ReqA:      2,
		ReqB:      3,
		OwnerA:    4,
		OwnerB:    5,
		PrevA:     6,
		PrevB:     7,
		IrqA:      8,
		IrqB:      9,
		Sel:       10,
		OE:        11,
		BusActive: 12,
		Reset:     13,
	}
}

// GpioProbe implements Probe over raw digital I/O against a Pinout,
// handling the active-low request, output-enable and reset electrical
// polarity.
type GpioProbe struct {
	Pins      Pinout
	Drv       PinDriver
	ResetHold time.Duration // Reset pulse width; defaults to 2ms.
}

var _ Probe = (*GpioProbe)(nil)

// Init configures pin directions and deasserts every driven line.
func (gp *GpioProbe) Init() {
	outs := []int{gp.Pins.ReqA, gp.Pins.ReqB, gp.Pins.BusActive, gp.Pins.Reset}
	ins := []int{
		gp.Pins.OwnerA, gp.Pins.OwnerB,
		gp.Pins.PrevA, gp.Pins.PrevB,
		gp.Pins.IrqA, gp.Pins.IrqB,
		gp.Pins.Sel, gp.Pins.OE,
	}

	for _, pin := range outs {
		gp.Drv.PinMode(pin, true)
	}
	for _, pin := range ins {
		gp.Drv.PinMode(pin, false)
	}

	gp.SetReqA(false)
	gp.SetReqB(false)
	gp.SetBusActive(false)
	gp.Drv.DigitalWrite(gp.Pins.Reset, true)
}

// SetReqA drives REQ_A_OUT; asserted is electrical low.
func (gp *GpioProbe) SetReqA(asserted bool) {
	gp.Drv.DigitalWrite(gp.Pins.ReqA, !asserted)
}

// SetReqB drives REQ_B_OUT; asserted is electrical low.
func (gp *GpioProbe) SetReqB(asserted bool) {
	gp.Drv.DigitalWrite(gp.Pins.ReqB, !asserted)
}

// SetBusActive drives BUS_ACTIVE; active-high on the wire.
func (gp *GpioProbe) SetBusActive(active bool) {
	gp.Drv.DigitalWrite(gp.Pins.BusActive, active)
}

// PulseReset holds TINY_RST low for ResetHold.
func (gp *GpioProbe) PulseReset() {
	hold := gp.ResetHold
	if hold == 0 {
		hold = 2 * time.Millisecond
	}

	gp.Drv.DigitalWrite(gp.Pins.Reset, false)
	time.Sleep(hold)
	gp.Drv.DigitalWrite(gp.Pins.Reset, true)
}

// Sample reads all output lines. OE is active-low on the wire.
func (gp *GpioProbe) Sample() Snapshot {
	return Snapshot{
		OwnerA: gp.Drv.DigitalRead(gp.Pins.OwnerA),
		OwnerB: gp.Drv.DigitalRead(gp.Pins.OwnerB),
		PrevA:  gp.Drv.DigitalRead(gp.Pins.PrevA),
		PrevB:  gp.Drv.DigitalRead(gp.Pins.PrevB),
		Sel:    gp.Drv.DigitalRead(gp.Pins.Sel),
		OE:     !gp.Drv.DigitalRead(gp.Pins.OE),
		IrqA:   gp.Drv.DigitalRead(gp.Pins.IrqA),
		IrqB:   gp.Drv.DigitalRead(gp.Pins.IrqB),
	}
}
