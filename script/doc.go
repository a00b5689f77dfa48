// Package script is a bounded, line-oriented interpreter for small
// co-processor control scripts. Scripts are register-machine programs
// over sixteen signed 32-bit registers with labels, conditional
// branches, GPIO and timing primitives, and a short append-only
// mailbox for text output.
//
// The interpreter is built for a memory- and time-constrained
// execution environment: statement and label tables have fixed
// capacities, the caller's script buffer is read directly and never
// copied or modified, and execution is single-threaded and cooperative
// with a wall-clock timeout and a poll-based cancel flag checked at
// every statement boundary.
//
// Dispatch is deliberately permissive: malformed expressions, unknown
// instructions and unresolved labels are silent no-ops, so a partially
// corrupted script degrades instead of failing. Set VM.Strict to turn
// those cases into errors for testing.
package script
