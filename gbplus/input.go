package gbplus

import "github.com/valerio/gbplus/gbplus/memory"

// ButtonID numbers the buttons the way browser gamepads report them
// (standard mapping). Ids without a Game Boy button are ignored.
type ButtonID int

const (
	ButtonA      ButtonID = 0
	ButtonB      ButtonID = 2
	ButtonSelect ButtonID = 8
	ButtonStart  ButtonID = 9
	ButtonUp     ButtonID = 12
	ButtonDown   ButtonID = 13
	ButtonLeft   ButtonID = 14
	ButtonRight  ButtonID = 15
)

var buttonKeys = map[ButtonID]memory.JoypadKey{
	ButtonA:      memory.JoypadA,
	ButtonB:      memory.JoypadB,
	ButtonSelect: memory.JoypadSelect,
	ButtonStart:  memory.JoypadStart,
	ButtonUp:     memory.JoypadUp,
	ButtonDown:   memory.JoypadDown,
	ButtonLeft:   memory.JoypadLeft,
	ButtonRight:  memory.JoypadRight,
}

// Buttons lists every mapped id, in joypad order.
var Buttons = []ButtonID{
	ButtonRight, ButtonLeft, ButtonUp, ButtonDown,
	ButtonA, ButtonB, ButtonSelect, ButtonStart,
}

func (b ButtonID) String() string {
	switch b {
	case ButtonA:
		return "A"
	case ButtonB:
		return "B"
	case ButtonSelect:
		return "Select"
	case ButtonStart:
		return "Start"
	case ButtonUp:
		return "Up"
	case ButtonDown:
		return "Down"
	case ButtonLeft:
		return "Left"
	case ButtonRight:
		return "Right"
	}
	return "unmapped"
}

// UpdateInput presses or releases one button. The joypad register reflects
// it immediately, so code running later in the next StepFrame sees it.
// Button state belongs to the host: it survives LoadROM and LoadSaveState.
func (e *Engine) UpdateInput(id ButtonID, pressed bool) {
	key, ok := buttonKeys[id]
	if !ok {
		return
	}
	e.held[key] = pressed
	if e.m != nil {
		e.m.mmu.Joypad().SetKey(key, pressed)
	}
}

// Held reports whether the host currently holds a button.
func (e *Engine) Held(id ButtonID) bool {
	key, ok := buttonKeys[id]
	return ok && e.held[key]
}

// applyHeld copies the host buttons onto a new machine. It raises no
// interrupt since no line changed from the machine's point of view.
func (e *Engine) applyHeld(m *machine) {
	dpad, buttons := uint8(0x0F), uint8(0x0F)
	for key, pressed := range e.held {
		if !pressed {
			continue
		}
		if k := memory.JoypadKey(key); k <= memory.JoypadDown {
			dpad &^= 1 << uint8(k)
		} else {
			buttons &^= 1 << uint8(k-memory.JoypadA)
		}
	}
	m.mmu.Joypad().SetState(dpad, buttons)
}
