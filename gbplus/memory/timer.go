package memory

import (
	"github.com/valerio/gbplus/gbplus/addr"
	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// tacLookup maps TAC clock select (bits 1-0) to the bit of the internal
// 16 bit divider whose falling edge increments TIMA.
//
//	00 -> bit 9  (4096 Hz)
//	01 -> bit 3  (262144 Hz)
//	10 -> bit 5  (65536 Hz)
//	11 -> bit 7  (16384 Hz)
var tacLookup = [4]uint8{9, 3, 5, 7}

// Timer implements DIV, TIMA, TMA and TAC.
type Timer struct {
	systemCounter uint16 // DIV is the upper 8 bits
	lastTimerBit  bool
	timaOverflow  int // cycles until TMA is reloaded after an overflow
	tima          uint8
	tma           uint8
	tac           uint8

	requestInterrupt func()
}

// NewTimer creates a timer that calls irq when TIMA is reloaded after an overflow.
func NewTimer(irq func()) *Timer {
	return &Timer{requestInterrupt: irq}
}

// SetSeed sets the internal divider, used for the post boot value of DIV.
func (t *Timer) SetSeed(seed uint16) {
	t.systemCounter = seed
	t.lastTimerBit = t.selectedBit()
	t.timaOverflow = 0
}

func (t *Timer) selectedBit() bool {
	return bit.IsSet(2, t.tac) && bit.IsSet16(tacLookup[t.tac&0x03], t.systemCounter)
}

// Tick advances the divider by the given number of CPU cycles.
func (t *Timer) Tick(cycles int) {
	for range cycles {
		t.systemCounter++

		if t.timaOverflow > 0 {
			t.timaOverflow--
			if t.timaOverflow == 0 {
				t.tima = t.tma
				if t.requestInterrupt != nil {
					t.requestInterrupt()
				}
			}
		}

		t.detectEdge()
	}
}

// detectEdge increments TIMA when the selected divider bit, ANDed with the
// enable bit, falls. DIV and TAC writes can cause the same edge.
func (t *Timer) detectEdge() {
	current := t.selectedBit()
	if t.lastTimerBit && !current {
		t.incrementTIMA()
	}
	t.lastTimerBit = current
}

func (t *Timer) incrementTIMA() {
	t.tima++
	if t.tima == 0 {
		// TIMA reads 0 for one M-cycle before TMA is loaded
		t.timaOverflow = 4
	}
}

func (t *Timer) Read(address uint16) uint8 {
	switch address {
	case addr.DIV:
		return uint8(t.systemCounter >> 8)
	case addr.TIMA:
		return t.tima
	case addr.TMA:
		return t.tma
	case addr.TAC:
		return t.tac | 0xF8
	}
	return 0xFF
}

func (t *Timer) Write(address uint16, value uint8) {
	switch address {
	case addr.DIV:
		t.systemCounter = 0
		t.detectEdge()
	case addr.TIMA:
		// a write during the reload delay cancels the reload
		t.tima = value
		t.timaOverflow = 0
	case addr.TMA:
		t.tma = value
	case addr.TAC:
		t.tac = value & 0x07
		t.detectEdge()
	}
}

func (t *Timer) Save(e *savestate.Encoder) {
	e.Section("TIMR")
	e.U16(t.systemCounter)
	e.Bool(t.lastTimerBit)
	e.Int(t.timaOverflow)
	e.U8(t.tima)
	e.U8(t.tma)
	e.U8(t.tac)
}

func (t *Timer) Load(d *savestate.Decoder) {
	d.Section("TIMR")
	t.systemCounter = d.U16()
	t.lastTimerBit = d.Bool()
	t.timaOverflow = d.Int()
	t.tima = d.U8()
	t.tma = d.U8()
	t.tac = d.U8() & 0x07
}
