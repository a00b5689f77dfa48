package script

// Expression evaluation: a value token is tried, in order, as a
// register reference, a named boolean, then a numeric literal. No
// match is reported as ok=false with no other effect; the dispatcher
// decides whether that is a silent skip or a strict-mode fault.

// parseReg matches R0..R15 (case-insensitive prefix).
func parseReg(tok []byte) (idx int, ok bool) {
	if len(tok) < 2 || (tok[0] != 'R' && tok[0] != 'r') {
		return
	}

	n := 0
	for _, c := range tok[1:] {
		if c < '0' || c > '9' {
			return
		}
		n = n*10 + int(c-'0')
		if n >= NUM_REGISTERS {
			return
		}
	}

	return n, true
}

// parseValue evaluates a value token against the current register
// file.
func (vm *VM) parseValue(tok []byte) (val int32, ok bool) {
	if idx, isReg := parseReg(tok); isReg {
		return vm.Reg[idx], true
	}

	switch {
	case eqFold(tok, "HIGH"), eqFold(tok, "TRUE"):
		return 1, true
	case eqFold(tok, "LOW"), eqFold(tok, "FALSE"):
		return 0, true
	}

	return parseNumber(tok)
}

// parseNumber matches an optionally-signed decimal or 0x/0X hex
// literal. Values wider than 32 bits fail to match.
func parseNumber(tok []byte) (val int32, ok bool) {
	i := 0
	neg := false
	if i < len(tok) && (tok[i] == '+' || tok[i] == '-') {
		neg = tok[i] == '-'
		i++
	}

	base := int64(10)
	if i+1 < len(tok) && tok[i] == '0' && (tok[i+1] == 'x' || tok[i+1] == 'X') {
		base = 16
		i += 2
	}

	if i >= len(tok) {
		return
	}

	var n int64
	for ; i < len(tok); i++ {
		d := digitVal(tok[i])
		if d < 0 || int64(d) >= base {
			return
		}
		n = n*base + int64(d)
		if n > 0xffffffff {
			return
		}
	}

	val = int32(uint32(n))
	if neg {
		val = -val
	}
	ok = true

	return
}

func digitVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// eqFold is an ASCII case-insensitive comparison against a token name.
func eqFold(tok []byte, name string) bool {
	if len(tok) != len(name) {
		return false
	}
	for n := range tok {
		c := tok[n]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c != name[n] {
			return false
		}
	}
	return true
}
