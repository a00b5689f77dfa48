// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package arbiter

// Owner identifies the current holder of the bus.
type Owner int8

const (
	OWNER_NONE = Owner(0) // Bus is idle.
	OWNER_A    = Owner(1) // Requester A holds the bus.
	OWNER_B    = Owner(2) // Requester B holds the bus.
)

// String returns the owner as a single letter, 'N' for idle.
func (o Owner) String() (text string) {
	switch o {
	case OWNER_A:
		text = "A"
	case OWNER_B:
		text = "B"
	default:
		text = "N"
	}

	return
}

// Other returns the opposite requester. OWNER_NONE has no opposite and
// maps to OWNER_A, matching the power-on prev=B default.
func (o Owner) Other() Owner {
	if o == OWNER_A {
		return OWNER_B
	}
	return OWNER_A
}

// Inputs is the stimulus triple driven into the arbiter.
type Inputs struct {
	ReqA      bool // Requester A asserts its request line.
	ReqB      bool // Requester B asserts its request line.
	BusActive bool // BUS_ACTIVE inhibits release of the current owner.
}

// Predict returns the owner the arbiter settles on after one evaluation
// of the given stimulus. It is pure and total over its input domain.
//
// From idle, a lone request is granted; a tie is granted to the opposite
// of prev (round-robin). A granted owner keeps the bus until its own
// request drops AND BusActive is low; the other side's request alone
// never preempts.
func Predict(owner Owner, prev Owner, in Inputs) (next Owner) {
	switch owner {
	case OWNER_A:
		next = OWNER_A
		if !in.ReqA && !in.BusActive {
			next = OWNER_NONE
		}
	case OWNER_B:
		next = OWNER_B
		if !in.ReqB && !in.BusActive {
			next = OWNER_NONE
		}
	default:
		switch {
		case in.ReqA && !in.ReqB:
			next = OWNER_A
		case in.ReqB && !in.ReqA:
			next = OWNER_B
		case in.ReqA && in.ReqB:
			next = prev.Other()
		default:
			next = OWNER_NONE
		}
	}

	return
}
