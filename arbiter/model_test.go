package arbiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredict_IdleGrants(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(OWNER_A, Predict(OWNER_NONE, OWNER_B, Inputs{ReqA: true}))
	assert.Equal(OWNER_B, Predict(OWNER_NONE, OWNER_A, Inputs{ReqB: true}))
	assert.Equal(OWNER_NONE, Predict(OWNER_NONE, OWNER_B, Inputs{}))

	// BusActive alone never grants from idle.
	assert.Equal(OWNER_NONE, Predict(OWNER_NONE, OWNER_B, Inputs{BusActive: true}))

	// A fresh grant is not inhibited by BusActive.
	assert.Equal(OWNER_A, Predict(OWNER_NONE, OWNER_B, Inputs{ReqA: true, BusActive: true}))
}

func TestPredict_TieBreak(t *testing.T) {
	assert := assert.New(t)

	tie := Inputs{ReqA: true, ReqB: true}
	assert.Equal(OWNER_A, Predict(OWNER_NONE, OWNER_B, tie))
	assert.Equal(OWNER_B, Predict(OWNER_NONE, OWNER_A, tie))
}

func TestPredict_NonPreemption(t *testing.T) {
	assert := assert.New(t)

	// The other side's request alone never revokes ownership.
	assert.Equal(OWNER_A, Predict(OWNER_A, OWNER_A, Inputs{ReqA: true, ReqB: true}))
	assert.Equal(OWNER_B, Predict(OWNER_B, OWNER_B, Inputs{ReqA: true, ReqB: true}))
}

func TestPredict_BusActiveHold(t *testing.T) {
	assert := assert.New(t)

	// BusActive alone, with the owner's own request dropped, holds the bus.
	assert.Equal(OWNER_A, Predict(OWNER_A, OWNER_A, Inputs{BusActive: true}))
	assert.Equal(OWNER_B, Predict(OWNER_B, OWNER_B, Inputs{ReqA: true, BusActive: true}))

	// Release happens once both the request and the gate are low.
	assert.Equal(OWNER_NONE, Predict(OWNER_A, OWNER_A, Inputs{}))
	assert.Equal(OWNER_NONE, Predict(OWNER_B, OWNER_B, Inputs{ReqA: true}))
}

// refNext is an independent statement of the transition rules, used to
// cross-check Predict over its whole input domain.
func refNext(owner Owner, prev Owner, in Inputs) Owner {
	if owner == OWNER_A {
		if in.ReqA || in.BusActive {
			return OWNER_A
		}
		return OWNER_NONE
	}
	if owner == OWNER_B {
		if in.ReqB || in.BusActive {
			return OWNER_B
		}
		return OWNER_NONE
	}
	if in.ReqA && in.ReqB {
		return prev.Other()
	}
	if in.ReqA {
		return OWNER_A
	}
	if in.ReqB {
		return OWNER_B
	}
	return OWNER_NONE
}

func TestPredict_Exhaustive(t *testing.T) {
	assert := assert.New(t)

	for _, owner := range []Owner{OWNER_NONE, OWNER_A, OWNER_B} {
		for _, prev := range []Owner{OWNER_A, OWNER_B} {
			for bits := range 8 {
				in := Inputs{
					ReqA:      bits&1 != 0,
					ReqB:      bits&2 != 0,
					BusActive: bits&4 != 0,
				}
				want := refNext(owner, prev, in)
				got := Predict(owner, prev, in)
				assert.Equal(want, got,
					"owner=%v prev=%v in=%+v", owner, prev, in)
			}
		}
	}
}

func TestOwner_String(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("N", OWNER_NONE.String())
	assert.Equal("A", OWNER_A.String())
	assert.Equal("B", OWNER_B.String())
}

func TestOwner_Other(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(OWNER_B, OWNER_A.Other())
	assert.Equal(OWNER_A, OWNER_B.Other())
	assert.Equal(OWNER_A, OWNER_NONE.Other())
}
