package arbiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_Owner(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(OWNER_NONE, Snapshot{}.Owner())
	assert.Equal(OWNER_A, Snapshot{OwnerA: true}.Owner())
	assert.Equal(OWNER_B, Snapshot{OwnerB: true}.Owner())

	// Both lines asserted is incoherent; the decode stays idle.
	assert.Equal(OWNER_NONE, Snapshot{OwnerA: true, OwnerB: true}.Owner())
}

func TestSnapshot_Coherent(t *testing.T) {
	assert := assert.New(t)

	idle := Snapshot{PrevB: true}
	assert.NoError(idle.Coherent())

	ownedA := Snapshot{OwnerA: true, PrevA: true, OE: true}
	assert.NoError(ownedA.Coherent())

	ownedB := Snapshot{OwnerB: true, PrevB: true, OE: true, Sel: true}
	assert.NoError(ownedB.Coherent())
}

func TestSnapshot_Incoherent(t *testing.T) {
	assert := assert.New(t)

	both := Snapshot{OwnerA: true, OwnerB: true, PrevA: true, OE: true}
	assert.ErrorIs(both.Coherent(), ErrBothOwners)

	selWrong := Snapshot{OwnerB: true, PrevB: true, OE: true, Sel: false}
	assert.ErrorIs(selWrong.Coherent(), ErrSelMatch)

	oeStuck := Snapshot{PrevA: true, OE: true}
	assert.ErrorIs(oeStuck.Coherent(), ErrOeMatch)

	oeDropped := Snapshot{OwnerA: true, PrevA: true}
	assert.ErrorIs(oeDropped.Coherent(), ErrOeMatch)

	prevBoth := Snapshot{OwnerA: true, PrevA: true, PrevB: true, OE: true}
	assert.ErrorIs(prevBoth.Coherent(), ErrPrevOneHot)

	prevNeither := Snapshot{}
	assert.ErrorIs(prevNeither.Coherent(), ErrPrevOneHot)
}

func TestSnapshot_String(t *testing.T) {
	assert := assert.New(t)

	s := Snapshot{OwnerB: true, Sel: true, OE: true, PrevB: true}
	assert.Equal("owner=B sel=1 oe=1 prevA=0 prevB=1 irqA=0 irqB=0", s.String())
}
