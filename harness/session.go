// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package harness runs the arbiter conformance suite against any
// arbiter.Probe, physical or simulated. A Session carries all of the
// suite's state, so independent sessions can run against independent
// boards concurrently.
package harness

import (
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/ezrec/coproc/arbiter"
	"github.com/ezrec/coproc/isp"
)

const (
	SAMPLE_INTERVAL    = 100 * time.Microsecond // Default polling granularity.
	SETTLE_TIMEOUT     = 400 * time.Millisecond // Default settle bound.
	HOLD_WINDOW        = 10 * time.Millisecond  // Default ownership hold window.
	FORCED_TIMEOUT_MAX = 2 * time.Second        // Default forced-release wait.
	IRQ_WINDOW         = 20 * time.Millisecond  // IRQ pulse observation window.
	STRESS_ITERATIONS  = 100                    // Default stress iteration count.
)

// Session is one conformance run against one device.
type Session struct {
	Probe   arbiter.Probe
	Verbose bool      // If set, print a PASS/FAIL/INFO line per check.
	Out     io.Writer // Check and summary output; nil selects stdout.

	SampleInterval   time.Duration // Polling granularity; 0 selects 100us.
	SettleTimeout    time.Duration // Settle bound; 0 selects 400ms.
	HoldWindow       time.Duration // Hold observation window; 0 selects 10ms.
	ForcedTimeoutMax time.Duration // Forced-release wait bound; 0 selects 2s.

	Seed          int64      // Stress stimulus seed.
	AllowRecovery bool       // Permit the reset+ISP diagnostic on failure.
	Recovery      *isp.Probe // Recovery probe, used only as a diagnostic.

	pass    int
	fail    int
	skipped int
	results []result
}

type result struct {
	name string
	ok   bool
}

func (ts *Session) out() io.Writer {
	if ts.Out != nil {
		return ts.Out
	}
	return os.Stdout
}

func (ts *Session) sampleInterval() time.Duration {
	if ts.SampleInterval > 0 {
		return ts.SampleInterval
	}
	return SAMPLE_INTERVAL
}

func (ts *Session) settleTimeout() time.Duration {
	if ts.SettleTimeout > 0 {
		return ts.SettleTimeout
	}
	return SETTLE_TIMEOUT
}

func (ts *Session) holdWindow() time.Duration {
	if ts.HoldWindow > 0 {
		return ts.HoldWindow
	}
	return HOLD_WINDOW
}

func (ts *Session) forcedTimeoutMax() time.Duration {
	if ts.ForcedTimeoutMax > 0 {
		return ts.ForcedTimeoutMax
	}
	return FORCED_TIMEOUT_MAX
}

func (ts *Session) logf(format string, args ...any) {
	if !ts.Verbose {
		return
	}
	fmt.Fprintf(ts.out(), format+"\n", args...)
}

// check records one named pass/fail result.
func (ts *Session) check(name string, ok bool, snap arbiter.Snapshot) {
	ts.results = append(ts.results, result{name: name, ok: ok})
	if ok {
		ts.pass++
		ts.logf("PASS: %s", name)
		return
	}

	ts.fail++
	ts.logf("FAIL: %s: %s", name, snap)
}

// skipf records a skipped check; skips never count against AllClear.
func (ts *Session) skipf(name string, format string, args ...any) {
	ts.skipped++
	ts.logf("INFO: %s skipped: %s", name, fmt.Sprintf(format, args...))
}

// setReq drives the request line of the named requester.
func (ts *Session) setReq(who arbiter.Owner, asserted bool) {
	switch who {
	case arbiter.OWNER_A:
		ts.Probe.SetReqA(asserted)
	case arbiter.OWNER_B:
		ts.Probe.SetReqB(asserted)
	}
}

// Settle drops all stimulus and polls until the arbiter is idle with
// its output enable off. Failing to settle is a hard failure.
func (ts *Session) Settle() (ok bool) {
	ts.Probe.SetReqA(false)
	ts.Probe.SetReqB(false)
	ts.Probe.SetBusActive(false)

	_, ok = ts.pollUntil(ts.settleTimeout(), func(snap arbiter.Snapshot) bool {
		return snap.Owner() == arbiter.OWNER_NONE && !snap.OE
	})

	return
}

// pollUntil samples at the polling granularity until cond holds or the
// bound elapses, returning the last snapshot taken.
func (ts *Session) pollUntil(bound time.Duration, cond func(arbiter.Snapshot) bool) (snap arbiter.Snapshot, ok bool) {
	deadline := time.Now().Add(bound)
	for {
		snap = ts.Probe.Sample()
		if cond(snap) {
			ok = true
			return
		}
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(ts.sampleInterval())
	}
}

// waitOwner polls until the arbiter reports the wanted owner.
func (ts *Session) waitOwner(want arbiter.Owner) (snap arbiter.Snapshot, ok bool) {
	return ts.pollUntil(ts.settleTimeout(), func(snap arbiter.Snapshot) bool {
		return snap.Owner() == want
	})
}

// sawIrq polls for the named requester's IRQ line going high within
// the observation window.
func (ts *Session) sawIrq(who arbiter.Owner) (ok bool) {
	_, ok = ts.pollUntil(IRQ_WINDOW, func(snap arbiter.Snapshot) bool {
		if who == arbiter.OWNER_A {
			return snap.IrqA
		}
		return snap.IrqB
	})

	return
}

// Results iterates the named checks of the session in run order.
func (ts *Session) Results() iter.Seq2[string, bool] {
	return func(yield func(string, bool) bool) {
		for _, r := range ts.results {
			if !yield(r.name, r.ok) {
				return
			}
		}
	}
}

// Counts reports the pass, fail and skip totals.
func (ts *Session) Counts() (pass int, fail int, skipped int) {
	return ts.pass, ts.fail, ts.skipped
}

// AllClear reports whether no check failed.
func (ts *Session) AllClear() bool {
	return ts.fail == 0
}

// Summary is the one-line result of the session.
func (ts *Session) Summary() string {
	return fmt.Sprintf("%d PASS, %d FAIL (%d skipped)", ts.pass, ts.fail, ts.skipped)
}

// Run executes every scenario, the exhaustive sweep and the stress
// pass, prints the summary, and reports the all-clear verdict. On a
// failed run with AllowRecovery set, the device is reset and the ISP
// probe is run purely as a liveness diagnostic.
func (ts *Session) Run() (ok bool) {
	ts.ScenarioGrantRelease(arbiter.OWNER_A)
	ts.ScenarioGrantRelease(arbiter.OWNER_B)
	ts.ScenarioBusGate()
	ts.ScenarioTieBreak()
	ts.ScenarioNonPreemption()
	ts.ScenarioHandoff()
	ts.ScenarioForcedTimeout()
	ts.ScenarioCoherence()
	ts.ScenarioIRQPulseWidth()
	ts.Sweep()
	ts.Stress(STRESS_ITERATIONS)

	ok = ts.AllClear()
	if !ok && ts.AllowRecovery && ts.Recovery != nil {
		ts.recover()
	}

	fmt.Fprintln(ts.out(), ts.Summary())

	return
}

// recover pulses the device reset and probes the target over ISP. It
// cannot repair anything; it only tells a failing run's operator
// whether the chip is alive and correctly identified.
func (ts *Session) recover() {
	ts.Probe.PulseReset()

	err := ts.Recovery.EnterProgramming()
	if err != nil {
		ts.logf("INFO: recovery probe: %v", err)
		return
	}
	defer ts.Recovery.LeaveProgramming()

	sig, err := ts.Recovery.Signature()
	if err != nil {
		ts.logf("INFO: recovery probe signature: %v", err)
		return
	}

	ts.logf("INFO: target alive, signature %02x %02x %02x", sig[0], sig[1], sig[2])
}
