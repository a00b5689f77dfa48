// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package script

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"runtime"
	"sync/atomic"
	"time"
)

const (
	MAX_LINES     = 256 // Statement table capacity
	MAX_LABELS    = 32  // Label table capacity
	NUM_REGISTERS = 16  // Register file size
	TOKEN_LIMIT   = 16  // Mnemonic token buffer size
	MAX_FIELDS    = 8   // Fields per statement
)

var _script_defines = map[string]string{
	"SCRIPT_MAX_LINES":  fmt.Sprintf("%v", MAX_LINES),
	"SCRIPT_MAX_LABELS": fmt.Sprintf("%v", MAX_LABELS),
	"SCRIPT_REGISTERS":  fmt.Sprintf("%v", NUM_REGISTERS),
}

// Defines for the interpreter limits.
func Defines() iter.Seq2[string, string] {
	return maps.All(_script_defines)
}

// State is the driver loop's current or terminal state.
type State int8

const (
	STATE_READY          = State(0) // No run yet, or initializing.
	STATE_TOKENIZING     = State(1) // Building statement and label tables.
	STATE_RUNNING        = State(2) // Executing statements.
	STATE_RETURNED       = State(3) // Terminal: RET or end of script.
	STATE_TIMED_OUT      = State(4) // Terminal: wall-clock timeout.
	STATE_CANCELLED      = State(5) // Terminal: cancel flag observed.
	STATE_TABLE_OVERFLOW = State(6) // Terminal: bounded table exceeded.
	STATE_FAULTED        = State(7) // Terminal: strict-mode dispatch error.
)

// String returns the state name.
func (s State) String() (text string) {
	switch s {
	case STATE_READY:
		text = "ready"
	case STATE_TOKENIZING:
		text = "tokenizing"
	case STATE_RUNNING:
		text = "running"
	case STATE_RETURNED:
		text = "returned"
	case STATE_TIMED_OUT:
		text = "timed out"
	case STATE_CANCELLED:
		text = "cancelled"
	case STATE_TABLE_OVERFLOW:
		text = "table overflow"
	case STATE_FAULTED:
		text = "faulted"
	default:
		text = fmt.Sprintf("state(%d)", int8(s))
	}

	return
}

// PinMode selects a GPIO pin configuration.
type PinMode int

const (
	PIN_INPUT          = PinMode(0)
	PIN_OUTPUT         = PinMode(1)
	PIN_INPUT_PULLUP   = PinMode(2)
	PIN_INPUT_PULLDOWN = PinMode(3)
)

// PinHost is the GPIO and timing surface scripts run against.
// A nil host turns every I/O and timing statement into a no-op.
type PinHost interface {
	PinMode(pin int, mode PinMode)
	DigitalWrite(pin int, high bool)
	DigitalRead(pin int) bool
	AnalogWrite(pin int, value int)
	AnalogRead(pin int) int
	Delay(d time.Duration)
}

// Env is the externally-owned execution environment of a VM. Every
// field is optional; the zero Env disables the mailbox, cancellation,
// and I/O.
type Env struct {
	Mailbox []byte       // Mailbox buffer; its length caps mailbox writes.
	Cancel  *atomic.Bool // Polled at statement boundaries when set.
	IO      PinHost      // GPIO/timing host.
	Yield   func()       // Called after every statement; nil uses the Go scheduler.
}

// span is a (start, end) byte range into the run's script buffer.
// Tables hold spans rather than pointers, so the buffer stays
// read-only and no trailing sentinel is ever required.
type span struct {
	start int
	end   int
}

type labelEntry struct {
	name   span
	target int // Statement table index the label resolves to.
}

// VM executes one script at a time. The register file is owned by the
// VM and reset on every Run; the script buffer, mailbox and cancel
// flag remain caller-owned. A VM is not safe for concurrent use.
type VM struct {
	Strict  bool // Error on malformed/unknown statements instead of skipping.
	Verbose bool // Set to enable verbose logging.
	Env     Env

	Reg [NUM_REGISTERS]int32 // Register file, reset each run.

	state      State
	buf        []byte
	stmt       [MAX_LINES]span
	stmtCount  int
	labels     [MAX_LABELS]labelEntry
	labelCount int
	mbLen      int
	ret        int32
}

// State reports why the last Run stopped.
func (vm *VM) State() State {
	return vm.state
}

// MailboxLen is the number of mailbox bytes written by the last run.
func (vm *VM) MailboxLen() int {
	return vm.mbLen
}

// MailboxText returns the mailbox content written by the last run.
func (vm *VM) MailboxText() string {
	if vm.Env.Mailbox == nil {
		return ""
	}
	return string(vm.Env.Mailbox[:vm.mbLen])
}

// Run executes src with R0..R(len(args)-1) preloaded. A timeout of 0
// disables the deadline. The returned error distinguishes table
// overflow, timeout, cancellation and (in strict mode) dispatch
// faults; State() carries the same information.
func (vm *VM) Run(src []byte, args []int32, timeout time.Duration) (ret int32, err error) {
	// Initializing: the register file never leaks between runs.
	vm.state = STATE_READY
	clear(vm.Reg[:])
	for n := range min(len(args), NUM_REGISTERS) {
		vm.Reg[n] = args[n]
	}
	vm.ret = 0
	vm.mbLen = 0
	if len(vm.Env.Mailbox) > 0 {
		vm.Env.Mailbox[0] = 0
	}

	vm.state = STATE_TOKENIZING
	err = vm.buildTables(src)
	if err != nil {
		if errors.Is(err, ErrTooManyLines) || errors.Is(err, ErrTooManyLabels) {
			vm.state = STATE_TABLE_OVERFLOW
		} else {
			vm.state = STATE_FAULTED
		}
		return
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	vm.state = STATE_RUNNING
	for pc := 0; pc < vm.stmtCount; {
		if !deadline.IsZero() && time.Now().After(deadline) {
			vm.state = STATE_TIMED_OUT
			err = ErrTimeout
			return
		}
		if vm.Env.Cancel != nil && vm.Env.Cancel.Load() {
			vm.state = STATE_CANCELLED
			err = ErrCancelled
			return
		}

		stop, jump, lerr := vm.execLine(pc)
		if lerr != nil {
			vm.state = STATE_FAULTED
			err = lerr
			return
		}
		if stop {
			break
		}
		if jump >= 0 {
			pc = jump
		} else {
			pc++
		}

		vm.yield()
	}

	// Falling off the end behaves like RET with the current value.
	vm.state = STATE_RETURNED
	ret = vm.ret

	return
}

// yield is the single cooperative suspension point, taken once per
// statement.
func (vm *VM) yield() {
	if vm.Env.Yield != nil {
		vm.Env.Yield()
		return
	}
	runtime.Gosched()
}

// delay blocks for d, through the host when one is attached.
func (vm *VM) delay(d time.Duration) {
	if d <= 0 {
		return
	}
	if vm.Env.IO != nil {
		vm.Env.IO.Delay(d)
		return
	}
	time.Sleep(d)
}

// strictErr maps a dispatch fault to an error in strict mode, and to a
// silent no-op otherwise.
func (vm *VM) strictErr(pc int, cause error) (err error) {
	if !vm.Strict {
		return
	}

	s := vm.stmt[pc]
	err = ErrStatement{
		Index: pc,
		Text:  string(vm.buf[s.start:s.end]),
		Err:   cause,
	}

	return
}
