package arbsim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/coproc/arbiter"
)

func newHealthy(t *testing.T) *Device {
	dev, err := NewDevice(Config{})
	assert.NoError(t, err)
	return dev
}

// settle runs samples until the device reads back the wanted owner, or
// gives up after a handful of steps.
func settleTo(dev *Device, want arbiter.Owner) (snap arbiter.Snapshot, ok bool) {
	for range 8 {
		snap = dev.Sample()
		if snap.Owner() == want {
			ok = true
			return
		}
	}
	return
}

func TestNewDevice_Validation(t *testing.T) {
	assert := assert.New(t)

	_, err := NewDevice(Config{PulseWidth: -time.Millisecond})
	assert.Error(err)

	_, err = NewDevice(Config{MaxHold: -time.Second})
	assert.Error(err)

	_, err = NewDevice(Config{Fault: Fault(99)})
	assert.Error(err)

	dev, err := NewDevice(Config{})
	assert.NoError(err)
	assert.NotNil(dev)
}

func TestDevice_PowerOn(t *testing.T) {
	assert := assert.New(t)

	dev := newHealthy(t)
	snap := dev.Sample()
	assert.Equal(arbiter.OWNER_NONE, snap.Owner())
	assert.True(snap.PrevB)
	assert.False(snap.OE)
	assert.NoError(snap.Coherent())
}

func TestDevice_GrantRelease(t *testing.T) {
	assert := assert.New(t)

	dev := newHealthy(t)
	dev.SetReqA(true)

	snap, ok := settleTo(dev, arbiter.OWNER_A)
	assert.True(ok)
	assert.True(snap.OE)
	assert.True(snap.PrevA)
	assert.False(snap.Sel)

	// The grant pulses IRQ_A.
	assert.True(snap.IrqA)
	assert.False(snap.IrqB)

	dev.SetReqA(false)
	snap, ok = settleTo(dev, arbiter.OWNER_NONE)
	assert.True(ok)
	assert.False(snap.OE)
	assert.True(snap.PrevA, "prev keeps the last owner after release")
}

func TestDevice_TieBreakAlternates(t *testing.T) {
	assert := assert.New(t)

	dev := newHealthy(t)

	dev.SetReqA(true)
	dev.SetReqB(true)
	snap, ok := settleTo(dev, arbiter.OWNER_A)
	assert.True(ok, "prev=B at power-on, so A wins the first tie")
	assert.NoError(snap.Coherent())

	dev.SetReqA(false)
	dev.SetReqB(false)
	_, ok = settleTo(dev, arbiter.OWNER_NONE)
	assert.True(ok)

	dev.SetReqA(true)
	dev.SetReqB(true)
	snap, ok = settleTo(dev, arbiter.OWNER_B)
	assert.True(ok, "second tie alternates to B")
	assert.True(snap.Sel)
}

func TestDevice_BusActiveGate(t *testing.T) {
	assert := assert.New(t)

	dev := newHealthy(t)
	dev.SetReqB(true)
	_, ok := settleTo(dev, arbiter.OWNER_B)
	assert.True(ok)

	dev.SetBusActive(true)
	dev.SetReqB(false)

	for range 8 {
		snap := dev.Sample()
		assert.Equal(arbiter.OWNER_B, snap.Owner())
		assert.True(snap.OE)
	}

	dev.SetBusActive(false)
	_, ok = settleTo(dev, arbiter.OWNER_NONE)
	assert.True(ok)
}

func TestDevice_HandoffPulsesBothIrqs(t *testing.T) {
	assert := assert.New(t)

	dev := newHealthy(t)
	dev.SetReqA(true)
	_, ok := settleTo(dev, arbiter.OWNER_A)
	assert.True(ok)

	dev.SetReqB(true)
	dev.SetReqA(false)

	var sawNone, sawIrqA, sawIrqB bool
	for range 8 {
		snap := dev.Sample()
		if snap.Owner() == arbiter.OWNER_NONE {
			sawNone = true
		}
		sawIrqA = sawIrqA || snap.IrqA
		sawIrqB = sawIrqB || snap.IrqB
		if snap.Owner() == arbiter.OWNER_B {
			break
		}
	}

	assert.True(sawNone, "handoff passes through idle")
	assert.True(sawIrqA, "release pulses the outgoing IRQ")
	assert.True(sawIrqB, "grant pulses the incoming IRQ")
}

func TestDevice_ForcedTimeout(t *testing.T) {
	assert := assert.New(t)

	dev, err := NewDevice(Config{MaxHold: 5 * time.Millisecond})
	assert.NoError(err)

	dev.SetReqA(true)
	_, ok := settleTo(dev, arbiter.OWNER_A)
	assert.True(ok)

	dev.SetReqA(false)
	dev.SetBusActive(true)

	deadline := time.Now().Add(100 * time.Millisecond)
	released := false
	for time.Now().Before(deadline) {
		if dev.Sample().Owner() == arbiter.OWNER_NONE {
			released = true
			break
		}
		time.Sleep(100 * time.Microsecond)
	}

	assert.True(released, "hold timer releases even against BUS_ACTIVE")
}

func TestDevice_PulseReset(t *testing.T) {
	assert := assert.New(t)

	dev := newHealthy(t)
	dev.SetReqB(true)
	_, ok := settleTo(dev, arbiter.OWNER_B)
	assert.True(ok)

	dev.PulseReset()
	snap := dev.Sample()
	assert.Equal(arbiter.OWNER_NONE, snap.Owner())
	assert.True(snap.PrevB)
}

func TestDevice_FaultStuckOwner(t *testing.T) {
	assert := assert.New(t)

	dev, err := NewDevice(Config{Fault: FAULT_STUCK_OWNER})
	assert.NoError(err)

	dev.SetReqA(true)
	_, ok := settleTo(dev, arbiter.OWNER_A)
	assert.True(ok)

	dev.SetReqA(false)
	_, ok = settleTo(dev, arbiter.OWNER_NONE)
	assert.False(ok, "stuck device never releases")
}

func TestDevice_FaultDropIrq(t *testing.T) {
	assert := assert.New(t)

	dev, err := NewDevice(Config{Fault: FAULT_DROP_IRQ})
	assert.NoError(err)

	dev.SetReqA(true)
	snap, ok := settleTo(dev, arbiter.OWNER_A)
	assert.True(ok)
	assert.False(snap.IrqA)
}

func TestDevice_FaultBadPrev(t *testing.T) {
	assert := assert.New(t)

	dev, err := NewDevice(Config{Fault: FAULT_BAD_PREV})
	assert.NoError(err)

	snap := dev.Sample()
	assert.ErrorIs(snap.Coherent(), arbiter.ErrPrevOneHot)
}

func TestDevice_FaultIgnoreBusGate(t *testing.T) {
	assert := assert.New(t)

	dev, err := NewDevice(Config{Fault: FAULT_IGNORE_BUS_GATE})
	assert.NoError(err)

	dev.SetReqB(true)
	_, ok := settleTo(dev, arbiter.OWNER_B)
	assert.True(ok)

	dev.SetBusActive(true)
	dev.SetReqB(false)

	_, ok = settleTo(dev, arbiter.OWNER_NONE)
	assert.True(ok, "a gate-blind device releases under BUS_ACTIVE")
}
