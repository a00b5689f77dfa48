// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package isp talks AVR in-system programming: a bit-banged SPI port,
// a probe speaking the 4-byte ISP instruction set, and an STK500v1
// server so a stock host-side programmer can drive the probe.
package isp

import (
	"time"

	"github.com/ezrec/coproc/arbiter"
)

// Port is the electrical side of an ISP session.
type Port interface {
	// SetReset asserts (true) or releases (false) the target reset.
	SetReset(active bool)
	// Exchange clocks one byte out and returns the byte clocked in.
	Exchange(out byte) (in byte)
	// PulseClock issues one bare SCK pulse, used to resynchronize the
	// target's SPI state between programming-enable attempts.
	PulseClock()
}

// BitBangPort drives an ISP session over four GPIO lines. Reset is
// active-low at the pin.
type BitBangPort struct {
	Drv arbiter.PinDriver

	Reset int
	Mosi  int
	Miso  int
	Sck   int

	HalfPeriod time.Duration // SCK half-period; 0 selects 4us.
}

func (bp *BitBangPort) halfPeriod() time.Duration {
	if bp.HalfPeriod > 0 {
		return bp.HalfPeriod
	}
	return 4 * time.Microsecond
}

// Init configures pin directions and parks the port with reset
// released and the clock idle low.
func (bp *BitBangPort) Init() {
	bp.Drv.PinMode(bp.Reset, true)
	bp.Drv.PinMode(bp.Mosi, true)
	bp.Drv.PinMode(bp.Sck, true)
	bp.Drv.PinMode(bp.Miso, false)

	bp.Drv.DigitalWrite(bp.Reset, true)
	bp.Drv.DigitalWrite(bp.Sck, false)
}

// SetReset asserts or releases the target reset line.
func (bp *BitBangPort) SetReset(active bool) {
	bp.Drv.DigitalWrite(bp.Reset, !active)
}

// Exchange shifts one byte, MSB first, sampling MISO on the rising SCK
// edge.
func (bp *BitBangPort) Exchange(out byte) (in byte) {
	for bit := 7; bit >= 0; bit-- {
		bp.Drv.DigitalWrite(bp.Mosi, (out>>bit)&1 != 0)
		time.Sleep(bp.halfPeriod())

		bp.Drv.DigitalWrite(bp.Sck, true)
		if bp.Drv.DigitalRead(bp.Miso) {
			in |= 1 << bit
		}
		time.Sleep(bp.halfPeriod())

		bp.Drv.DigitalWrite(bp.Sck, false)
	}

	return
}

// PulseClock issues a single SCK pulse.
func (bp *BitBangPort) PulseClock() {
	bp.Drv.DigitalWrite(bp.Sck, true)
	time.Sleep(bp.halfPeriod())
	bp.Drv.DigitalWrite(bp.Sck, false)
	time.Sleep(bp.halfPeriod())
}
