package script

// Table construction: the script buffer is split into statements and
// labels without being modified. Statements break on newlines, and on
// semicolons outside double-quoted strings; '#' and '//' start a line
// comment outside strings. Tables hold spans into the buffer, bounded
// by MAX_LINES and MAX_LABELS.

// buildTables rebuilds the statement and label tables for src. Both
// tables are discarded and rebuilt on every run; nothing persists
// across runs.
func (vm *VM) buildTables(src []byte) (err error) {
	vm.buf = src
	vm.stmtCount = 0
	vm.labelCount = 0

	if len(src) == 0 {
		err = ErrScriptEmpty
		return
	}

	segStart := 0
	inString := false
	comment := -1 // Comment start within the current line, -1 for none.

	for i := 0; i <= len(src); i++ {
		// A missing trailing newline still terminates the last segment.
		c := byte('\n')
		if i < len(src) {
			c = src[i]
		}

		switch {
		case c == '\n':
			end := i
			if comment >= 0 {
				end = comment
			}
			err = vm.addSegment(segStart, end)
			segStart = i + 1
			inString = false
			comment = -1
		case comment >= 0:
			// Skip to end of line.
		case c == '"':
			inString = !inString
		case inString:
			// Separators and comment markers are literal inside strings.
		case c == ';':
			err = vm.addSegment(segStart, i)
			segStart = i + 1
		case c == '#':
			comment = i
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			comment = i
		}

		if err != nil {
			return
		}
	}

	return
}

// addSegment trims a raw segment, peels off a leading label if
// present, and appends any remaining text to the statement table.
func (vm *VM) addSegment(start int, end int) (err error) {
	start, end = trim(vm.buf, start, end)
	if start >= end {
		return
	}

	if nameEnd, ok := labelAt(vm.buf, start, end); ok {
		if vm.labelCount >= MAX_LABELS {
			err = ErrTooManyLabels
			return
		}
		vm.labels[vm.labelCount] = labelEntry{
			name:   span{start: start, end: nameEnd},
			target: vm.stmtCount,
		}
		vm.labelCount++

		// Text after the colon is its own statement.
		start, end = trim(vm.buf, nameEnd+1, end)
		if start >= end {
			return
		}
	}

	if vm.stmtCount >= MAX_LINES {
		err = ErrTooManyLines
		return
	}
	vm.stmt[vm.stmtCount] = span{start: start, end: end}
	vm.stmtCount++

	return
}

// labelAt reports whether the segment begins with an identifier
// immediately followed by ':', returning the identifier's end offset.
func labelAt(buf []byte, start int, end int) (nameEnd int, ok bool) {
	i := start
	if i >= end || !isIdentStart(buf[i]) {
		return
	}
	for i < end && isIdentPart(buf[i]) {
		i++
	}
	if i >= end || buf[i] != ':' {
		return
	}

	return i, true
}

// lookupLabel resolves a label name to its statement index.
func (vm *VM) lookupLabel(name []byte) (target int, ok bool) {
	for n := range vm.labelCount {
		ls := vm.labels[n].name
		if bytesEqual(vm.buf[ls.start:ls.end], name) {
			return vm.labels[n].target, true
		}
	}

	return
}

func trim(buf []byte, start int, end int) (int, int) {
	for start < end && isSpace(buf[start]) {
		start++
	}
	for end > start && isSpace(buf[end-1]) {
		end--
	}
	return start, end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r'
}

func isIdentStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func bytesEqual(a []byte, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if a[n] != b[n] {
			return false
		}
	}
	return true
}
