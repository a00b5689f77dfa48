package script

import (
	"errors"

	"github.com/ezrec/coproc/translate"
)

var f = translate.From

var (
	// Table build errors
	ErrScriptEmpty   = errors.New(f("script empty"))
	ErrTooManyLines  = errors.New(f("too many statements"))
	ErrTooManyLabels = errors.New(f("too many labels"))

	// Run errors
	ErrTimeout   = errors.New(f("deadline exceeded"))
	ErrCancelled = errors.New(f("cancelled"))

	// Strict-mode dispatch errors
	ErrOperand = errors.New(f("operand invalid"))
)

type ErrUnknownInstruction string

func (eu ErrUnknownInstruction) Error() string {
	return f("unknown instruction %v", string(eu))
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

// ErrStatement wraps a strict-mode dispatch error with its statement.
type ErrStatement struct {
	Index int
	Text  string
	Err   error
}

func (err ErrStatement) Error() string {
	return f("statement %d '%v' %v", err.Index, err.Text, err.Err)
}

func (err ErrStatement) Unwrap() error {
	return err.Err
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}
