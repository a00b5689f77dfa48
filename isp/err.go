// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package isp

import (
	"errors"

	"github.com/ezrec/coproc/translate"
)

var f = translate.From

var (
	ErrNoTarget       = errors.New(f("target did not acknowledge programming enable"))
	ErrNotProgramming = errors.New(f("target is not in programming mode"))
)
