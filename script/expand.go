package script

import (
	"regexp"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var parenRe = regexp.MustCompile(`\$\(([^)]*)\)`)

// Expand folds every $(...) expression in src to a decimal literal,
// so scripts can be parameterized before they are shipped to the VM.
// defs seeds named integer constants visible to the expressions. The
// VM itself never calls Expand; it is a host-side convenience.
func Expand(src string, defs map[string]int32) (out string, err error) {
	out = src
	for {
		loc := parenRe.FindStringSubmatchIndex(out)
		if loc == nil {
			return
		}

		var value int64
		value, err = parenEval(out[loc[2]:loc[3]], defs)
		if err != nil {
			return
		}

		out = out[:loc[0]] + strconv.FormatInt(value, 10) + out[loc[1]:]
	}
}

// parenEval does one $(...) evaluation.
func parenEval(expr string, defs map[string]int32) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}

	pred := starlark.StringDict{}
	for key, val := range defs {
		pred[key] = starlark.MakeInt(int(val))
	}

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}

	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}

	return
}
