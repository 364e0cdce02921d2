package memory

import (
	"github.com/valerio/gbplus/gbplus/bit"
	"github.com/valerio/gbplus/gbplus/savestate"
)

// JoypadKey represents a key on the Gameboy joypad
type JoypadKey uint8

const (
	JoypadRight JoypadKey = iota
	JoypadLeft
	JoypadUp
	JoypadDown
	JoypadA
	JoypadB
	JoypadSelect
	JoypadStart
)

// Joypad holds the button state behind P1. Lines are active low: 1 means
// released, 0 pressed.
type Joypad struct {
	buttons uint8 // A, B, Select, Start in bits 0-3
	dpad    uint8 // Right, Left, Up, Down in bits 0-3
	sel     uint8 // P1 bits 4-5 as last written

	requestInterrupt func()
}

func NewJoypad(irq func()) *Joypad {
	return &Joypad{buttons: 0x0F, dpad: 0x0F, sel: 0x30, requestInterrupt: irq}
}

// Read returns P1 computed from the current selection and button state.
//
//   - bit 4 clear maps the d-pad to bits 0-3
//   - bit 5 clear maps A, B, Select, Start to bits 0-3
//   - with both clear the two groups are ANDed
//   - bits 6-7 always read as 1
func (j *Joypad) Read() uint8 {
	return 0xC0 | j.sel | j.lines()
}

func (j *Joypad) lines() uint8 {
	result := uint8(0x0F)
	if !bit.IsSet(4, j.sel) {
		result &= j.dpad
	}
	if !bit.IsSet(5, j.sel) {
		result &= j.buttons
	}
	return result
}

// Write sets the selection bits.
func (j *Joypad) Write(value uint8) {
	before := j.lines()
	j.sel = value & 0x30
	j.raiseOnFall(before)
}

// raiseOnFall requests the joypad interrupt when a selected line went from
// high to low.
func (j *Joypad) raiseOnFall(before uint8) {
	if before&^j.lines() != 0 && j.requestInterrupt != nil {
		j.requestInterrupt()
	}
}

func keyGroup(key JoypadKey) (dpad bool, index uint8) {
	if key <= JoypadDown {
		return true, uint8(key)
	}
	return false, uint8(key - JoypadA)
}

// SetKey presses or releases a key.
func (j *Joypad) SetKey(key JoypadKey, pressed bool) {
	if key > JoypadStart {
		return
	}
	before := j.lines()

	dpad, index := keyGroup(key)
	group := &j.buttons
	if dpad {
		group = &j.dpad
	}
	*group = bit.SetTo(index, *group, !pressed)

	j.raiseOnFall(before)
}

// SetState replaces both line groups without edge detection. Values are
// active low, in the bit order of the P1 lower nibble.
func (j *Joypad) SetState(dpad, buttons uint8) {
	j.dpad = dpad & 0x0F
	j.buttons = buttons & 0x0F
}

// Pressed reports whether a key is held.
func (j *Joypad) Pressed(key JoypadKey) bool {
	dpad, index := keyGroup(key)
	if dpad {
		return !bit.IsSet(index, j.dpad)
	}
	return !bit.IsSet(index, j.buttons)
}

// Save stores the selection only. Button state belongs to the host, so a
// restored state keeps whatever is currently held.
func (j *Joypad) Save(e *savestate.Encoder) {
	e.Section("JOYP")
	e.U8(j.sel)
}

func (j *Joypad) Load(d *savestate.Decoder) {
	d.Section("JOYP")
	j.sel = d.U8() & 0x30
}
