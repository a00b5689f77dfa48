// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package exec owns the host-side execution harness around a script
// VM: a mailbox buffer, a cancellation flag, expression expansion, and
// run bookkeeping. A caller that wants the bare interpreter can use
// the script package directly; Exec is the convenient "load, expand,
// run, read the mailbox" wrapper.
package exec

import (
	"fmt"
	"iter"
	"maps"
	"sync/atomic"
	"time"

	"github.com/ezrec/coproc/internal"
	"github.com/ezrec/coproc/script"
)

const (
	MAILBOX_SIZE = 128 // Default mailbox capacity in bytes.
)

var _exec_defines = map[string]string{
	"EXEC_MAILBOX_SIZE": fmt.Sprintf("%v", MAILBOX_SIZE),
}

// Exec state. VM + mailbox + cancellation.
type Exec struct {
	Verbose bool       // If set, enables verbose logging.
	Vm      *script.VM // Reference to the interpreter.

	Pins    script.PinHost   // GPIO/timing host handed to every run.
	Defines map[string]int32 // Named constants visible to $(...) expansion.

	mailbox []byte
	cancel  atomic.Bool

	Runs    int   // Completed RunScript calls.
	LastRet int32 // Return value of the most recent run.
}

// NewExec creates an execution harness with a mailbox of the given
// size. A size of 0 selects the default.
func NewExec(mailboxSize int) (ex *Exec) {
	if mailboxSize <= 0 {
		mailboxSize = MAILBOX_SIZE
	}

	ex = &Exec{
		Vm:      &script.VM{},
		mailbox: make([]byte, mailboxSize),
		Defines: map[string]int32{},
	}

	return
}

// AllDefines returns an iterator over all of the defines.
func (ex *Exec) AllDefines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_exec_defines),
		script.Defines(),
	)
}

// RunScript expands and executes src. Cancellation state is cleared at
// the start of every run, so Cancel only affects the run in flight.
func (ex *Exec) RunScript(src string, args []int32, timeout time.Duration) (ret int32, err error) {
	src, err = script.Expand(src, ex.Defines)
	if err != nil {
		return
	}

	ex.cancel.Store(false)

	ex.Vm.Verbose = ex.Verbose
	ex.Vm.Env = script.Env{
		Mailbox: ex.mailbox,
		Cancel:  &ex.cancel,
		IO:      ex.Pins,
	}

	ret, err = ex.Vm.Run([]byte(src), args, timeout)

	ex.Runs++
	ex.LastRet = ret

	return
}

// Cancel requests the run in flight to stop at its next statement
// boundary. Safe to call from another goroutine.
func (ex *Exec) Cancel() {
	ex.cancel.Store(true)
}

// State reports why the last run stopped.
func (ex *Exec) State() script.State {
	return ex.Vm.State()
}

// Mailbox returns the text the last run left in the mailbox.
func (ex *Exec) Mailbox() string {
	return ex.Vm.MailboxText()
}
