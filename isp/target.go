// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package isp

// Target is an in-memory AVR behind a Port, for exercising the probe
// and the STK500 server without hardware. It decodes the 4-byte
// instruction stream the way a real part does: instruction bytes are
// echoed one exchange late, and read instructions deliver their data
// on the fourth exchange.
type Target struct {
	Sig   [3]byte
	Fuses [4]byte // low, high, extended, lock
	Flash []byte  // Byte-addressed; words are little-endian.

	// Flaky makes the first N programming-enable attempts fail with a
	// bad echo, to exercise the probe's retry path.
	Flaky int

	programming bool
	resetActive bool

	txn  [4]byte
	n    int
	page map[uint16]byte // Staged page-buffer bytes, by byte address.
}

// NewTarget returns a target with the given flash capacity, erased.
func NewTarget(flashSize int) (tg *Target) {
	tg = &Target{
		Sig:   [3]byte{0x1e, 0x93, 0x0b}, // ATtiny85
		Flash: make([]byte, flashSize),
		page:  map[uint16]byte{},
	}
	for n := range tg.Flash {
		tg.Flash[n] = 0xff
	}

	return
}

// SetReset models the target reset line. Releasing reset drops out of
// programming mode.
func (tg *Target) SetReset(active bool) {
	tg.resetActive = active
	if !active {
		tg.programming = false
	}
	tg.n = 0
}

// PulseClock resynchronizes the SPI byte boundary.
func (tg *Target) PulseClock() {
	tg.n = 0
}

// Exchange clocks one instruction byte in and returns the response.
func (tg *Target) Exchange(out byte) (in byte) {
	tg.txn[tg.n] = out

	switch tg.n {
	case 1, 2:
		in = tg.txn[tg.n-1]
		if tg.n == 2 && tg.txn[0] == 0xAC && tg.txn[1] == 0x53 && tg.Flaky > 0 {
			in = 0 // Missed enable echo.
		}
	case 3:
		in = tg.execute()
	}

	tg.n = (tg.n + 1) % 4

	return
}

func (tg *Target) word() uint16 {
	return uint16(tg.txn[1])<<8 | uint16(tg.txn[2])
}

// execute completes the buffered instruction and returns the fourth
// response byte.
func (tg *Target) execute() (in byte) {
	in = tg.txn[2]

	op := tg.txn[0]
	switch {
	case op == 0xAC && tg.txn[1] == 0x53:
		// Programming enable. A flaky part already missed the 0x53
		// echo on the third exchange; it also refuses the mode change.
		if tg.Flaky > 0 {
			tg.Flaky--
			return
		}
		if tg.resetActive {
			tg.programming = true
		}

	case op == 0xAC && tg.txn[1]&0x80 != 0:
		// Chip erase.
		if tg.programming {
			for n := range tg.Flash {
				tg.Flash[n] = 0xff
			}
		}

	case op == 0x30:
		in = tg.Sig[int(tg.txn[2])%len(tg.Sig)]

	case op == 0x50 && tg.txn[1] == 0x00:
		in = tg.Fuses[0]
	case op == 0x58 && tg.txn[1] == 0x08:
		in = tg.Fuses[1]
	case op == 0x50 && tg.txn[1] == 0x08:
		in = tg.Fuses[2]
	case op == 0x58 && tg.txn[1] == 0x00:
		in = tg.Fuses[3]

	case op == 0x20 || op == 0x28:
		addr := int(tg.word())*2 + int(op>>3&1)
		in = 0xff
		if addr < len(tg.Flash) {
			in = tg.Flash[addr]
		}

	case op == 0x40 || op == 0x48:
		addr := tg.word()*2 + uint16(op>>3&1)
		tg.page[addr] = tg.txn[3]

	case op == 0x4C:
		if tg.programming {
			for addr, val := range tg.page {
				if int(addr) < len(tg.Flash) {
					tg.Flash[addr] = val
				}
			}
		}
		tg.page = map[uint16]byte{}
	}

	return
}
