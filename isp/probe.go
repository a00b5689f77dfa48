// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package isp

import (
	"log"
	"time"
)

const (
	ENTER_ATTEMPTS = 8 // Programming-enable attempts before giving up.
)

// Probe speaks the AVR serial programming instruction set over a Port.
// Every operation is one or more 4-byte exchanges.
type Probe struct {
	Port    Port
	Verbose bool          // If set, enables verbose logging.
	Settle  time.Duration // Post-reset settle time; 0 selects 20ms.

	programming bool
}

func (pr *Probe) settle() {
	d := pr.Settle
	if d == 0 {
		d = 20 * time.Millisecond
	}
	time.Sleep(d)
}

// transaction performs one 4-byte exchange and returns all four
// response bytes.
func (pr *Probe) transaction(a, b, c, d byte) (r [4]byte) {
	r[0] = pr.Port.Exchange(a)
	r[1] = pr.Port.Exchange(b)
	r[2] = pr.Port.Exchange(c)
	r[3] = pr.Port.Exchange(d)

	if pr.Verbose {
		log.Printf("isp: %02x %02x %02x %02x -> %02x %02x %02x %02x",
			a, b, c, d, r[0], r[1], r[2], r[3])
	}

	return
}

// EnterProgramming holds the target in reset and issues the
// programming-enable instruction. The target acknowledges by echoing
// the second instruction byte; on a missed echo the SPI state is
// resynchronized with a bare clock pulse and the enable is retried.
func (pr *Probe) EnterProgramming() (err error) {
	for range ENTER_ATTEMPTS {
		pr.Port.SetReset(false)
		pr.Port.SetReset(true)
		pr.settle()

		r := pr.transaction(0xAC, 0x53, 0x00, 0x00)
		if r[2] == 0x53 {
			pr.programming = true
			return
		}

		pr.Port.PulseClock()
	}

	err = ErrNoTarget

	return
}

// LeaveProgramming releases the target reset, letting it run.
func (pr *Probe) LeaveProgramming() {
	pr.programming = false
	pr.Port.SetReset(false)
}

// Signature reads the 3-byte device signature.
func (pr *Probe) Signature() (sig [3]byte, err error) {
	if !pr.programming {
		err = ErrNotProgramming
		return
	}

	for n := range sig {
		r := pr.transaction(0x30, 0x00, byte(n), 0x00)
		sig[n] = r[3]
	}

	return
}

// ChipErase erases the target flash and EEPROM.
func (pr *Probe) ChipErase() (err error) {
	if !pr.programming {
		err = ErrNotProgramming
		return
	}

	pr.transaction(0xAC, 0x80, 0x00, 0x00)
	pr.settle()

	return
}

// ReadFuses reads the low, high and extended fuse bytes.
func (pr *Probe) ReadFuses() (low byte, high byte, ext byte, err error) {
	if !pr.programming {
		err = ErrNotProgramming
		return
	}

	low = pr.transaction(0x50, 0x00, 0x00, 0x00)[3]
	high = pr.transaction(0x58, 0x08, 0x00, 0x00)[3]
	ext = pr.transaction(0x50, 0x08, 0x00, 0x00)[3]

	return
}

// ReadFlash reads one byte of program memory at the given word
// address; high selects the upper byte of the word.
func (pr *Probe) ReadFlash(word uint16, high bool) byte {
	op := byte(0x20)
	if high {
		op = 0x28
	}

	return pr.transaction(op, byte(word>>8), byte(word), 0x00)[3]
}

// LoadPage stages one program memory byte into the target's page
// buffer at the given word address.
func (pr *Probe) LoadPage(word uint16, high bool, value byte) {
	op := byte(0x40)
	if high {
		op = 0x48
	}

	pr.transaction(op, byte(word>>8), byte(word), value)
}

// CommitPage writes the staged page buffer to the flash page holding
// the given word address.
func (pr *Probe) CommitPage(word uint16) {
	pr.transaction(0x4C, byte(word>>8), byte(word), 0x00)
	pr.settle()
}

// Universal performs an arbitrary 4-byte instruction, returning the
// final response byte.
func (pr *Probe) Universal(a, b, c, d byte) byte {
	return pr.transaction(a, b, c, d)[3]
}
