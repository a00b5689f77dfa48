package script

import (
	"log"
	"time"
)

// Statement dispatch. A statement is split into at most MAX_FIELDS
// fields on whitespace and commas (a double-quoted string is one
// field), the mnemonic is upper-cased into a fixed token buffer, and
// the handler is selected by exact match. Anything unrecognized is a
// no-op unless the VM is strict.

// execLine executes the statement at pc. stop is set by RET (the only
// terminating form), jump >= 0 requests a program-counter change, and
// err is non-nil only in strict mode.
func (vm *VM) execLine(pc int) (stop bool, jump int, err error) {
	jump = -1

	s := vm.stmt[pc]
	stmt := vm.buf[s.start:s.end]

	if vm.Verbose {
		log.Printf("script: %3d: %s", pc, stmt)
	}

	var fields [MAX_FIELDS][]byte
	n := splitFields(stmt, fields[:])
	if n == 0 {
		return
	}

	var token [TOKEN_LIMIT]byte
	op := upperToken(fields[0], token[:])

	switch string(op) {
	case "LET":
		err = vm.opRegister(pc, fields[:n], func(_ int32, v int32) int32 { return v })
	case "ADD":
		err = vm.opRegister(pc, fields[:n], func(r int32, v int32) int32 { return r + v })
	case "SUB":
		err = vm.opRegister(pc, fields[:n], func(r int32, v int32) int32 { return r - v })
	case "MOV":
		rd, ok1 := argReg(fields[:n], 1)
		rs, ok2 := argReg(fields[:n], 2)
		if !ok1 || !ok2 {
			err = vm.strictErr(pc, ErrOperand)
			return
		}
		vm.Reg[rd] = vm.Reg[rs]
	case "PINMODE":
		err = vm.opPinMode(pc, fields[:n])
	case "DWRITE":
		pin, ok1 := vm.argValue(fields[:n], 1)
		val, ok2 := vm.argValue(fields[:n], 2)
		if !ok1 || !ok2 {
			err = vm.strictErr(pc, ErrOperand)
			return
		}
		if vm.Env.IO != nil {
			vm.Env.IO.DigitalWrite(int(pin), val != 0)
		}
	case "DREAD":
		pin, ok1 := vm.argValue(fields[:n], 1)
		reg, ok2 := argReg(fields[:n], 2)
		if !ok1 || !ok2 {
			err = vm.strictErr(pc, ErrOperand)
			return
		}
		if vm.Env.IO != nil {
			vm.Reg[reg] = 0
			if vm.Env.IO.DigitalRead(int(pin)) {
				vm.Reg[reg] = 1
			}
		}
	case "AWRITE":
		pin, ok1 := vm.argValue(fields[:n], 1)
		val, ok2 := vm.argValue(fields[:n], 2)
		if !ok1 || !ok2 {
			err = vm.strictErr(pc, ErrOperand)
			return
		}
		if vm.Env.IO != nil {
			vm.Env.IO.AnalogWrite(int(pin), int(min(max(val, 0), 255)))
		}
	case "AREAD":
		pin, ok1 := vm.argValue(fields[:n], 1)
		reg, ok2 := argReg(fields[:n], 2)
		if !ok1 || !ok2 {
			err = vm.strictErr(pc, ErrOperand)
			return
		}
		if vm.Env.IO != nil {
			vm.Reg[reg] = int32(vm.Env.IO.AnalogRead(int(pin)))
		}
	case "SHIFTOUT":
		err = vm.opShiftOut(pc, fields[:n])
	case "DELAY":
		ms, ok := vm.argValue(fields[:n], 1)
		if !ok {
			err = vm.strictErr(pc, ErrOperand)
			return
		}
		vm.delay(time.Duration(max(ms, 0)) * time.Millisecond)
	case "DELAY_US":
		us, ok := vm.argValue(fields[:n], 1)
		if !ok {
			err = vm.strictErr(pc, ErrOperand)
			return
		}
		vm.delay(time.Duration(max(us, 0)) * time.Microsecond)
	case "MBCLR":
		vm.mbLen = 0
		if len(vm.Env.Mailbox) > 0 {
			vm.Env.Mailbox[0] = 0
		}
	case "MBAPP", "PRINT":
		err = vm.opMailboxAppend(pc, fields[:n])
	case "RET":
		stop = true
		if n > 1 {
			val, ok := vm.argValue(fields[:n], 1)
			if !ok {
				err = vm.strictErr(pc, ErrOperand)
				return
			}
			vm.ret = val
		}
	case "GOTO":
		jump, err = vm.opGoto(pc, fields[:n], 1)
	case "IF":
		jump, err = vm.opIf(pc, fields[:n])
	default:
		err = vm.strictErr(pc, ErrUnknownInstruction(string(op)))
	}

	return
}

// opRegister handles the LET/ADD/SUB family: register destination,
// value operand, in-place combine.
func (vm *VM) opRegister(pc int, fields [][]byte, combine func(reg int32, val int32) int32) (err error) {
	reg, ok1 := argReg(fields, 1)
	val, ok2 := vm.argValue(fields, 2)
	if !ok1 || !ok2 {
		err = vm.strictErr(pc, ErrOperand)
		return
	}

	vm.Reg[reg] = combine(vm.Reg[reg], val)

	return
}

func (vm *VM) opPinMode(pc int, fields [][]byte) (err error) {
	pin, ok := vm.argValue(fields, 1)
	if !ok || len(fields) < 3 {
		err = vm.strictErr(pc, ErrOperand)
		return
	}

	var mode PinMode
	tok := fields[2]
	switch {
	case eqFold(tok, "IN"), eqFold(tok, "INPUT"):
		mode = PIN_INPUT
	case eqFold(tok, "OUT"), eqFold(tok, "OUTPUT"):
		mode = PIN_OUTPUT
	case eqFold(tok, "INPU"), eqFold(tok, "PULLUP"):
		mode = PIN_INPUT_PULLUP
	case eqFold(tok, "INPD"), eqFold(tok, "PULLDOWN"):
		mode = PIN_INPUT_PULLDOWN
	default:
		raw, rawOk := vm.parseValue(tok)
		if !rawOk {
			err = vm.strictErr(pc, ErrOperand)
			return
		}
		mode = PinMode(raw)
	}

	if vm.Env.IO != nil {
		vm.Env.IO.PinMode(int(pin), mode)
	}

	return
}

// opShiftOut clocks up to 32 bits out of three pins: data, clock and
// latch. Default is 8 bits, most-significant first, with a 1us clock
// half-period.
func (vm *VM) opShiftOut(pc int, fields [][]byte) (err error) {
	dataPin, ok1 := vm.argValue(fields, 1)
	clockPin, ok2 := vm.argValue(fields, 2)
	latchPin, ok3 := vm.argValue(fields, 3)
	val, ok4 := vm.argValue(fields, 4)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		err = vm.strictErr(pc, ErrOperand)
		return
	}

	bits := int32(8)
	msbFirst := true
	for _, tok := range fields[5:] {
		switch {
		case eqFold(tok, "MSBFIRST"):
			msbFirst = true
		case eqFold(tok, "LSBFIRST"):
			msbFirst = false
		default:
			raw, rawOk := vm.parseValue(tok)
			if !rawOk {
				err = vm.strictErr(pc, ErrOperand)
				return
			}
			bits = raw
		}
	}
	bits = min(max(bits, 1), 32)

	host := vm.Env.IO
	if host == nil {
		return
	}

	host.PinMode(int(dataPin), PIN_OUTPUT)
	host.PinMode(int(clockPin), PIN_OUTPUT)
	host.PinMode(int(latchPin), PIN_OUTPUT)

	host.DigitalWrite(int(latchPin), false)
	for i := range int(bits) {
		shift := i
		if msbFirst {
			shift = int(bits) - 1 - i
		}
		bit := (uint32(val)>>shift)&1 != 0
		host.DigitalWrite(int(dataPin), bit)
		host.DigitalWrite(int(clockPin), true)
		vm.delay(time.Microsecond)
		host.DigitalWrite(int(clockPin), false)
		vm.delay(time.Microsecond)
	}
	host.DigitalWrite(int(latchPin), true)

	return
}

// opMailboxAppend appends a quoted string literal to the mailbox.
// No escape sequences are interpreted; writes past the mailbox cap are
// dropped.
func (vm *VM) opMailboxAppend(pc int, fields [][]byte) (err error) {
	if len(fields) < 2 || len(fields[1]) < 2 || fields[1][0] != '"' {
		err = vm.strictErr(pc, ErrOperand)
		return
	}

	text := fields[1][1:]
	if text[len(text)-1] == '"' {
		text = text[:len(text)-1]
	}

	mb := vm.Env.Mailbox
	for _, c := range text {
		if vm.mbLen >= len(mb) {
			break
		}
		mb[vm.mbLen] = c
		vm.mbLen++
	}

	return
}

func (vm *VM) opGoto(pc int, fields [][]byte, arg int) (jump int, err error) {
	jump = -1
	if len(fields) <= arg {
		err = vm.strictErr(pc, ErrOperand)
		return
	}

	target, ok := vm.lookupLabel(fields[arg])
	if !ok {
		// An unresolved label falls through to the next statement.
		err = vm.strictErr(pc, ErrLabelMissing(string(fields[arg])))
		return
	}

	jump = target

	return
}

// opIf handles "IF reg cmpOp value GOTO label".
func (vm *VM) opIf(pc int, fields [][]byte) (jump int, err error) {
	jump = -1
	if len(fields) < 6 || !eqFold(fields[4], "GOTO") {
		err = vm.strictErr(pc, ErrOperand)
		return
	}

	reg, ok1 := argReg(fields, 1)
	val, ok2 := vm.argValue(fields, 3)
	if !ok1 || !ok2 {
		err = vm.strictErr(pc, ErrOperand)
		return
	}

	a := vm.Reg[reg]
	var taken bool
	switch string(fields[2]) {
	case "==":
		taken = a == val
	case "!=":
		taken = a != val
	case "<":
		taken = a < val
	case ">":
		taken = a > val
	case "<=":
		taken = a <= val
	case ">=":
		taken = a >= val
	default:
		err = vm.strictErr(pc, ErrOperand)
		return
	}

	if taken {
		jump, err = vm.opGoto(pc, fields, 5)
	}

	return
}

// argValue evaluates the i'th field as a value.
func (vm *VM) argValue(fields [][]byte, i int) (val int32, ok bool) {
	if i >= len(fields) {
		return
	}
	return vm.parseValue(fields[i])
}

// argReg parses the i'th field as a register destination.
func argReg(fields [][]byte, i int) (idx int, ok bool) {
	if i >= len(fields) {
		return
	}
	return parseReg(fields[i])
}

// splitFields splits a statement on whitespace and commas, keeping a
// double-quoted string together as a single field.
func splitFields(stmt []byte, out [][]byte) (n int) {
	i := 0
	for i < len(stmt) && n < len(out) {
		for i < len(stmt) && isFieldSep(stmt[i]) {
			i++
		}
		if i >= len(stmt) {
			break
		}

		start := i
		if stmt[i] == '"' {
			i++
			for i < len(stmt) && stmt[i] != '"' {
				i++
			}
			if i < len(stmt) {
				i++
			}
		} else {
			for i < len(stmt) && !isFieldSep(stmt[i]) && stmt[i] != '"' {
				i++
			}
		}

		out[n] = stmt[start:i]
		n++
	}

	return
}

func isFieldSep(c byte) bool {
	return c == ' ' || c == '\t' || c == ',' || c == '\r'
}

// upperToken copies tok upper-cased into buf, truncating at the buffer
// size.
func upperToken(tok []byte, buf []byte) []byte {
	n := min(len(tok), len(buf))
	for i := range n {
		c := tok[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		buf[i] = c
	}
	return buf[:n]
}
