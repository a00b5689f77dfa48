package isp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// loopDriver wires MOSI straight back to MISO.
type loopDriver struct {
	modes  map[int]bool
	levels map[int]bool
	mosi   int
	miso   int
}

func newLoopDriver(mosi int, miso int) *loopDriver {
	return &loopDriver{
		modes:  map[int]bool{},
		levels: map[int]bool{},
		mosi:   mosi,
		miso:   miso,
	}
}

func (ld *loopDriver) PinMode(pin int, output bool) { ld.modes[pin] = output }
func (ld *loopDriver) DigitalWrite(pin int, high bool) {
	ld.levels[pin] = high
}
func (ld *loopDriver) DigitalRead(pin int) bool {
	if pin == ld.miso {
		return ld.levels[ld.mosi]
	}
	return ld.levels[pin]
}

func TestBitBangPort_Loopback(t *testing.T) {
	assert := assert.New(t)

	drv := newLoopDriver(2, 3)
	bp := &BitBangPort{Drv: drv, Reset: 1, Mosi: 2, Miso: 3, Sck: 4,
		HalfPeriod: time.Nanosecond}
	bp.Init()

	assert.True(drv.modes[2], "MOSI is an output")
	assert.False(drv.modes[3], "MISO is an input")

	for _, b := range []byte{0x00, 0xff, 0xa5, 0x53} {
		assert.Equal(b, bp.Exchange(b))
	}
}

func TestBitBangPort_ResetPolarity(t *testing.T) {
	assert := assert.New(t)

	drv := newLoopDriver(2, 3)
	bp := &BitBangPort{Drv: drv, Reset: 1, Mosi: 2, Miso: 3, Sck: 4,
		HalfPeriod: time.Nanosecond}
	bp.Init()

	assert.True(drv.levels[1], "reset idles released (high)")

	bp.SetReset(true)
	assert.False(drv.levels[1], "asserted reset drives the pin low")

	bp.SetReset(false)
	assert.True(drv.levels[1])
}
