// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package harness

import (
	"time"

	"github.com/ezrec/coproc/arbiter"
)

// ScenarioGrantRelease grants and releases a lone requester, verifying
// the IRQ pulses on both edges.
func (ts *Session) ScenarioGrantRelease(who arbiter.Owner) {
	name := "grant/release " + who.String()
	if !ts.Settle() {
		ts.check(name+" settle", false, ts.Probe.Sample())
		return
	}

	ts.setReq(who, true)
	snap, ok := ts.waitOwner(who)
	ts.check(name+" grant", ok, snap)
	ts.check(name+" grant irq", ts.sawIrq(who), snap)

	ts.setReq(who, false)
	snap, ok = ts.waitOwner(arbiter.OWNER_NONE)
	ts.check(name+" release", ok, snap)
	ts.check(name+" release irq", ts.sawIrq(who), snap)

	ts.Settle()
}

// ScenarioBusGate verifies that BUS_ACTIVE holds ownership after the
// owner's request drops, and that release proceeds once the gate
// drops.
func (ts *Session) ScenarioBusGate() {
	name := "bus gate"
	if !ts.Settle() {
		ts.check(name+" settle", false, ts.Probe.Sample())
		return
	}

	ts.Probe.SetReqB(true)
	snap, ok := ts.waitOwner(arbiter.OWNER_B)
	ts.check(name+" grant", ok, snap)

	ts.Probe.SetBusActive(true)
	ts.Probe.SetReqB(false)

	snap, held := ts.holdOwner(arbiter.OWNER_B, ts.holdWindow())
	ts.check(name+" holds owner", held && snap.OE, snap)

	ts.Probe.SetBusActive(false)
	snap, ok = ts.waitOwner(arbiter.OWNER_NONE)
	ts.check(name+" release after gate", ok, snap)

	ts.Settle()
}

// holdOwner samples over the window, verifying ownership never leaves
// who. The last snapshot is returned for context.
func (ts *Session) holdOwner(who arbiter.Owner, window time.Duration) (snap arbiter.Snapshot, ok bool) {
	ok = true
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		snap = ts.Probe.Sample()
		if snap.Owner() != who {
			ok = false
			return
		}
		time.Sleep(ts.sampleInterval())
	}

	return
}

// ScenarioTieBreak asserts both requests simultaneously twice, with a
// full release in between. The grants must honor the round-robin
// preference and alternate.
func (ts *Session) ScenarioTieBreak() {
	name := "tie-break"
	if !ts.Settle() {
		ts.check(name+" settle", false, ts.Probe.Sample())
		return
	}

	pre := ts.Probe.Sample()
	expect := pre.Prev().Other()

	first, ok := ts.contest()
	ts.check(name+" first grant", ok, first)
	ts.check(name+" prefers non-previous", first.Owner() == expect, first)

	if !ts.Settle() {
		ts.check(name+" intermediate settle", false, ts.Probe.Sample())
		return
	}

	second, ok := ts.contest()
	ts.check(name+" second grant", ok, second)
	ts.check(name+" alternates", second.Owner() == first.Owner().Other(), second)

	ts.Settle()
}

// contest raises both requests together and waits for a grant.
func (ts *Session) contest() (snap arbiter.Snapshot, ok bool) {
	ts.Probe.SetReqA(true)
	ts.Probe.SetReqB(true)

	return ts.pollUntil(ts.settleTimeout(), func(snap arbiter.Snapshot) bool {
		return snap.Owner() != arbiter.OWNER_NONE
	})
}

// ScenarioNonPreemption verifies that a competing request neither
// displaces the owner nor produces any IRQ edge on the competitor's
// line during the hold window.
func (ts *Session) ScenarioNonPreemption() {
	name := "non-preemption"
	if !ts.Settle() {
		ts.check(name+" settle", false, ts.Probe.Sample())
		return
	}

	ts.Probe.SetReqB(true)
	snap, ok := ts.waitOwner(arbiter.OWNER_B)
	ts.check(name+" grant", ok, snap)

	ts.Probe.SetReqA(true)

	edges := 0
	lastIrqA := false
	held := true
	deadline := time.Now().Add(ts.holdWindow())
	for time.Now().Before(deadline) {
		snap = ts.Probe.Sample()
		if snap.Owner() != arbiter.OWNER_B {
			held = false
			break
		}
		if snap.IrqA && !lastIrqA {
			edges++
		}
		lastIrqA = snap.IrqA
		time.Sleep(ts.sampleInterval())
	}

	ts.check(name+" owner held", held, snap)
	ts.check(name+" no competitor irq", edges == 0, snap)

	ts.Settle()
}

// ScenarioHandoff verifies the A to B handoff after A drops its
// request: ownership passes through the idle state, with IRQ_A on
// the release and IRQ_B on the handoff.
func (ts *Session) ScenarioHandoff() {
	name := "handoff"
	if !ts.Settle() {
		ts.check(name+" settle", false, ts.Probe.Sample())
		return
	}

	ts.Probe.SetReqA(true)
	snap, ok := ts.waitOwner(arbiter.OWNER_A)
	ts.check(name+" initial grant", ok, snap)

	ts.Probe.SetReqB(true)
	ts.Probe.SetReqA(false)

	sawNone := false
	snap, ok = ts.pollUntil(ts.settleTimeout(), func(snap arbiter.Snapshot) bool {
		if snap.Owner() == arbiter.OWNER_NONE {
			sawNone = true
		}
		return snap.Owner() == arbiter.OWNER_B
	})

	ts.check(name+" reaches B", ok, snap)
	ts.check(name+" passes through idle", sawNone, snap)
	ts.check(name+" irqA on release", ts.sawIrq(arbiter.OWNER_A), snap)
	ts.check(name+" irqB on handoff", ts.sawIrq(arbiter.OWNER_B), snap)

	ts.Probe.SetReqB(false)
	ts.Settle()
}

// ScenarioForcedTimeout verifies the maximum-hold forced release, if
// the device has one. A device without the hold timer is an info skip,
// not a failure.
func (ts *Session) ScenarioForcedTimeout() {
	name := "forced timeout"
	if !ts.Settle() {
		ts.check(name+" settle", false, ts.Probe.Sample())
		return
	}

	ts.Probe.SetReqA(true)
	snap, ok := ts.waitOwner(arbiter.OWNER_A)
	ts.check(name+" grant", ok, snap)

	// Hold the bus gate with the request dropped. Only a hold timer
	// can release ownership now.
	ts.Probe.SetBusActive(true)
	ts.Probe.SetReqA(false)

	snap, released := ts.pollUntil(ts.forcedTimeoutMax(), func(snap arbiter.Snapshot) bool {
		return snap.Owner() == arbiter.OWNER_NONE
	})
	if released {
		ts.check(name+" forced release", true, snap)
	} else {
		ts.skipf(name, "no forced release within %v; hold timer absent", ts.forcedTimeoutMax())
	}

	ts.Probe.SetBusActive(false)
	ts.Settle()
}

// ScenarioCoherence samples the coherence invariants over a window,
// both while owned and while idle.
func (ts *Session) ScenarioCoherence() {
	name := "coherence"
	if !ts.Settle() {
		ts.check(name+" settle", false, ts.Probe.Sample())
		return
	}

	ts.Probe.SetReqB(true)
	snap, ok := ts.waitOwner(arbiter.OWNER_B)
	ts.check(name+" grant", ok, snap)

	snap, coherent := ts.coherentWindow(ts.holdWindow())
	ts.check(name+" while owned", coherent, snap)

	ts.Probe.SetReqB(false)
	ts.waitOwner(arbiter.OWNER_NONE)

	snap, coherent = ts.coherentWindow(ts.holdWindow())
	ts.check(name+" while idle", coherent, snap)

	ts.Settle()
}

func (ts *Session) coherentWindow(window time.Duration) (snap arbiter.Snapshot, ok bool) {
	ok = true
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		snap = ts.Probe.Sample()
		if err := snap.Coherent(); err != nil {
			ts.logf("INFO: coherence: %v", err)
			ok = false
			return
		}
		time.Sleep(ts.sampleInterval())
	}

	return
}

// ScenarioIRQPulseWidth measures one grant's IRQ pulse and asserts it
// falls in a tolerant band. A sanity check on pulse generation, not a
// protocol requirement.
func (ts *Session) ScenarioIRQPulseWidth() {
	name := "irq pulse width"
	if !ts.Settle() {
		ts.check(name+" settle", false, ts.Probe.Sample())
		return
	}

	ts.Probe.SetReqA(true)

	snap, ok := ts.pollUntil(ts.settleTimeout(), func(snap arbiter.Snapshot) bool {
		return snap.IrqA
	})
	if !ok {
		ts.check(name+" pulse seen", false, snap)
		ts.Settle()
		return
	}

	rise := time.Now()
	snap, ok = ts.pollUntil(IRQ_WINDOW*2, func(snap arbiter.Snapshot) bool {
		return !snap.IrqA
	})
	width := time.Since(rise)

	ts.check(name+" pulse ends", ok, snap)
	ts.check(name+" within band", width >= 400*time.Microsecond && width <= IRQ_WINDOW, snap)

	ts.Settle()
}
