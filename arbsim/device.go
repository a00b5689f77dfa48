// Package arbsim is a behavioral, wire-level model of the arbiter MCU
// firmware. It implements arbiter.Probe, so the conformance harness can
// run against it without hardware, and it supports fault injection so
// the harness's failure paths stay testable.
//
// The model evaluates one owner transition per Sample() call, after the
// sample is taken. A polling harness therefore observes each transition
// of a multi-step sequence (such as an immediate A->NONE->B handoff) on
// consecutive samples, the way a real polled device exposes them.
package arbsim

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ezrec/coproc/arbiter"
)

// Fault selects an injected misbehavior.
type Fault int

const (
	FAULT_NONE            = Fault(0) // Behave per the reference model.
	FAULT_STUCK_OWNER     = Fault(1) // Never release once granted.
	FAULT_DROP_IRQ        = Fault(2) // Suppress all IRQ pulses.
	FAULT_BAD_PREV        = Fault(3) // Report both prev flags asserted.
	FAULT_IGNORE_BUS_GATE = Fault(4) // Release even while BUS_ACTIVE is held.
)

// Config tunes the simulated firmware.
type Config struct {
	PulseWidth time.Duration // IRQ pulse width. Defaults to 1ms.
	MaxHold    time.Duration // Forced-release hold timer. 0 disables the feature.
	Fault      Fault         // Injected misbehavior, FAULT_NONE for a healthy device.
}

// Device is a simulated arbiter. The zero value is not usable; build
// one with NewDevice.
type Device struct {
	mu  sync.Mutex
	cfg Config

	in    arbiter.Inputs
	owner arbiter.Owner
	prev  arbiter.Owner
	sel   bool

	grantAt   time.Time
	irqAUntil time.Time
	irqBUntil time.Time
}

var _ arbiter.Probe = (*Device)(nil)

// NewDevice validates cfg and returns a powered-on device in the idle
// state with prev=B, so requester A wins the first contested tie.
func NewDevice(cfg Config) (dev *Device, err error) {
	if cfg.PulseWidth < 0 {
		err = errors.Errorf("pulse width %v is negative", cfg.PulseWidth)
		return
	}
	if cfg.PulseWidth == 0 {
		cfg.PulseWidth = time.Millisecond
	}
	if cfg.MaxHold < 0 {
		err = errors.Errorf("max hold %v is negative", cfg.MaxHold)
		return
	}
	if cfg.Fault < FAULT_NONE || cfg.Fault > FAULT_IGNORE_BUS_GATE {
		err = errors.Wrap(errors.Errorf("%d", cfg.Fault), "unknown fault")
		return
	}

	dev = &Device{cfg: cfg}
	dev.powerOn()

	return
}

func (dev *Device) powerOn() {
	dev.in = arbiter.Inputs{}
	dev.owner = arbiter.OWNER_NONE
	dev.prev = arbiter.OWNER_B
	dev.sel = false
	dev.irqAUntil = time.Time{}
	dev.irqBUntil = time.Time{}
}

// SetReqA drives requester A's request line.
func (dev *Device) SetReqA(asserted bool) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.in.ReqA = asserted
}

// SetReqB drives requester B's request line.
func (dev *Device) SetReqB(asserted bool) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.in.ReqB = asserted
}

// SetBusActive drives the BUS_ACTIVE release gate.
func (dev *Device) SetBusActive(active bool) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.in.BusActive = active
}

// PulseReset returns the device to its power-on state.
func (dev *Device) PulseReset() {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.powerOn()
}

// Sample reads the output lines, then evaluates one firmware step with
// the current stimulus.
func (dev *Device) Sample() (snap arbiter.Snapshot) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	now := time.Now()
	snap = dev.snapshot(now)
	dev.step(now)

	return
}

func (dev *Device) snapshot(now time.Time) arbiter.Snapshot {
	snap := arbiter.Snapshot{
		OwnerA: dev.owner == arbiter.OWNER_A,
		OwnerB: dev.owner == arbiter.OWNER_B,
		PrevA:  dev.prev == arbiter.OWNER_A,
		PrevB:  dev.prev == arbiter.OWNER_B,
		Sel:    dev.sel,
		OE:     dev.owner != arbiter.OWNER_NONE,
		IrqA:   now.Before(dev.irqAUntil),
		IrqB:   now.Before(dev.irqBUntil),
	}

	if dev.cfg.Fault == FAULT_BAD_PREV {
		snap.PrevA = true
		snap.PrevB = true
	}

	return snap
}

func (dev *Device) step(now time.Time) {
	// Forced release: the hold timer fires even against BUS_ACTIVE.
	if dev.cfg.MaxHold > 0 && dev.owner != arbiter.OWNER_NONE &&
		now.Sub(dev.grantAt) >= dev.cfg.MaxHold {
		dev.pulse(dev.owner, now)
		dev.owner = arbiter.OWNER_NONE
		return
	}

	if dev.cfg.Fault == FAULT_STUCK_OWNER && dev.owner != arbiter.OWNER_NONE {
		return
	}

	in := dev.in
	if dev.cfg.Fault == FAULT_IGNORE_BUS_GATE {
		in.BusActive = false
	}

	next := arbiter.Predict(dev.owner, dev.prev, in)
	if next == dev.owner {
		return
	}

	if dev.owner != arbiter.OWNER_NONE {
		// Release edge.
		dev.pulse(dev.owner, now)
	}
	if next != arbiter.OWNER_NONE {
		// Grant edge.
		dev.pulse(next, now)
		dev.prev = next
		dev.sel = next == arbiter.OWNER_B
		dev.grantAt = now
	}

	dev.owner = next
}

func (dev *Device) pulse(who arbiter.Owner, now time.Time) {
	if dev.cfg.Fault == FAULT_DROP_IRQ {
		return
	}

	until := now.Add(dev.cfg.PulseWidth)
	switch who {
	case arbiter.OWNER_A:
		dev.irqAUntil = until
	case arbiter.OWNER_B:
		dev.irqBUntil = until
	}
}
