package arbiter

import (
	"errors"

	"github.com/ezrec/coproc/translate"
)

var f = translate.From

var (
	// Snapshot coherence errors
	ErrBothOwners = errors.New(f("owner A and owner B asserted together"))
	ErrSelMatch   = errors.New(f("select line does not match owner"))
	ErrOeMatch    = errors.New(f("output enable does not match owner"))
	ErrPrevOneHot = errors.New(f("prev flags are not one-hot"))
)
