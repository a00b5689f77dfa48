package arbiter

import (
	"errors"
	"fmt"
)

// Snapshot is one sample of every observable arbiter output line.
// All fields are logical levels; electrical polarity is the probe's
// concern.
type Snapshot struct {
	OwnerA bool // Owner A line asserted.
	OwnerB bool // Owner B line asserted.
	PrevA  bool // Previous owner was A.
	PrevB  bool // Previous owner was B.
	Sel    bool // Select line; tracks owner B.
	OE     bool // Output enable; asserted while owned.
	IrqA   bool // IRQ A line, pulse on grant/release of A.
	IrqB   bool // IRQ B line, pulse on grant/release of B.
}

// Owner decodes the owner lines. A sample with both lines asserted is
// incoherent and decodes as OWNER_NONE; Coherent() reports it.
func (s Snapshot) Owner() (owner Owner) {
	switch {
	case s.OwnerA && !s.OwnerB:
		owner = OWNER_A
	case s.OwnerB && !s.OwnerA:
		owner = OWNER_B
	}

	return
}

// Prev decodes the previous-owner flag pair. Only meaningful while the
// pair is one-hot.
func (s Snapshot) Prev() (prev Owner) {
	prev = OWNER_A
	if s.PrevB {
		prev = OWNER_B
	}

	return
}

// Coherent verifies the mutual-exclusion invariants of a sample:
// never both owners, select tracks owner, output enable asserted iff
// owned, and exactly one prev flag set.
func (s Snapshot) Coherent() (err error) {
	if s.OwnerA && s.OwnerB {
		err = errors.Join(err, ErrBothOwners)
	}

	owner := s.Owner()
	if owner != OWNER_NONE && s.Sel != (owner == OWNER_B) {
		err = errors.Join(err, ErrSelMatch)
	}
	if s.OE != (owner != OWNER_NONE) {
		err = errors.Join(err, ErrOeMatch)
	}
	if s.PrevA == s.PrevB {
		err = errors.Join(err, ErrPrevOneHot)
	}

	return
}

// String returns a one-line status dump of the sample.
func (s Snapshot) String() string {
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	return fmt.Sprintf("owner=%v sel=%d oe=%d prevA=%d prevB=%d irqA=%d irqB=%d",
		s.Owner(), b2i(s.Sel), b2i(s.OE), b2i(s.PrevA), b2i(s.PrevB),
		b2i(s.IrqA), b2i(s.IrqB))
}
