package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func (vm *VM) stmtText(n int) string {
	s := vm.stmt[n]
	return string(vm.buf[s.start:s.end])
}

func TestBuildTables_Lines(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	err := vm.buildTables([]byte("LET R0 1\nADD R0 2\nRET R0"))
	assert.NoError(err)
	assert.Equal(3, vm.stmtCount)
	assert.Equal("LET R0 1", vm.stmtText(0))
	assert.Equal("RET R0", vm.stmtText(2))
}

func TestBuildTables_Semicolons(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	err := vm.buildTables([]byte("LET R0 1; ADD R0 2 ;RET R0\n"))
	assert.NoError(err)
	assert.Equal(3, vm.stmtCount)
	assert.Equal("ADD R0 2", vm.stmtText(1))
}

func TestBuildTables_Comments(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	src := "# leading comment\nLET R0 1 # trailing\nADD R0 2 // slashes\n//all gone\nRET R0"
	err := vm.buildTables([]byte(src))
	assert.NoError(err)
	assert.Equal(3, vm.stmtCount)
	assert.Equal("LET R0 1", vm.stmtText(0))
	assert.Equal("ADD R0 2", vm.stmtText(1))
}

func TestBuildTables_QuotesShieldSeparators(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	err := vm.buildTables([]byte("MBAPP \"a;b#c//d\"; RET 0\n"))
	assert.NoError(err)
	assert.Equal(2, vm.stmtCount)
	assert.Equal("MBAPP \"a;b#c//d\"", vm.stmtText(0))
	assert.Equal("RET 0", vm.stmtText(1))
}

func TestBuildTables_Labels(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	err := vm.buildTables([]byte("start:\nLET R0 1\nloop: ADD R0 1\nend: RET R0\n"))
	assert.NoError(err)
	assert.Equal(3, vm.stmtCount)
	assert.Equal(3, vm.labelCount)

	target, ok := vm.lookupLabel([]byte("start"))
	assert.True(ok)
	assert.Equal(0, target)

	target, ok = vm.lookupLabel([]byte("loop"))
	assert.True(ok)
	assert.Equal(1, target)

	target, ok = vm.lookupLabel([]byte("end"))
	assert.True(ok)
	assert.Equal(2, target)

	_, ok = vm.lookupLabel([]byte("nope"))
	assert.False(ok)
}

func TestBuildTables_LabelAtEndTargetsCount(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	err := vm.buildTables([]byte("GOTO done\ndone:\n"))
	assert.NoError(err)
	assert.Equal(1, vm.stmtCount)

	target, ok := vm.lookupLabel([]byte("done"))
	assert.True(ok)
	assert.Equal(1, target, "a trailing label resolves past the last statement")
}

func TestBuildTables_NoTrailingNewline(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	err := vm.buildTables([]byte("RET 7"))
	assert.NoError(err)
	assert.Equal(1, vm.stmtCount)
	assert.Equal("RET 7", vm.stmtText(0))
}

func TestBuildTables_Empty(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	assert.ErrorIs(vm.buildTables(nil), ErrScriptEmpty)
	assert.ErrorIs(vm.buildTables([]byte{}), ErrScriptEmpty)
}

func TestBuildTables_LineOverflow(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	src := strings.Repeat("LET R0 1\n", MAX_LINES+1)
	assert.ErrorIs(vm.buildTables([]byte(src)), ErrTooManyLines)
}

func TestBuildTables_LabelOverflow(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	var sb strings.Builder
	for n := range MAX_LABELS + 1 {
		sb.WriteString("label")
		sb.WriteByte(byte('a' + n%26))
		sb.WriteByte(byte('a' + n/26))
		sb.WriteString(": LET R0 1\n")
	}
	assert.ErrorIs(vm.buildTables([]byte(sb.String())), ErrTooManyLabels)
}

func TestBuildTables_RebuiltEachRun(t *testing.T) {
	assert := assert.New(t)

	vm := &VM{}
	assert.NoError(vm.buildTables([]byte("a: LET R0 1\nb: RET R0\n")))
	assert.Equal(2, vm.labelCount)

	assert.NoError(vm.buildTables([]byte("RET 0\n")))
	assert.Equal(1, vm.stmtCount)
	assert.Equal(0, vm.labelCount)
}
