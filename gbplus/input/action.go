// Package input names the actions a front end can trigger and maps host
// keys to them.
package input

import "github.com/valerio/gbplus/gbplus"

// Action represents input actions that can be performed in the emulator
type Action int

const (
	// Game Boy hardware controls
	GBButtonA Action = iota
	GBButtonB
	GBButtonStart
	GBButtonSelect
	GBDPadUp
	GBDPadDown
	GBDPadLeft
	GBDPadRight

	// Emulator features
	EmulatorPauseToggle
	EmulatorSnapshot
	EmulatorQuickSave
	EmulatorQuickLoad
	EmulatorPaletteCycle
	EmulatorQuit

	// Audio debug controls
	AudioToggleChannel1
	AudioToggleChannel2
	AudioToggleChannel3
	AudioToggleChannel4
	AudioUnmuteAll

	// Debug controls
	DebugLogLevelIncrease
	DebugLogLevelDecrease
)

// Category groups actions by how backends deliver them. Game inputs are
// level triggered (press and release), everything else fires once.
type Category int

const (
	CategoryGameInput Category = iota
	CategoryEmulator
	CategoryAudio
	CategoryDebug
)

// Info describes an action for help screens and logs.
type Info struct {
	Description string
	Category    Category
}

var actionInfo = map[Action]Info{
	GBButtonA:      {"A", CategoryGameInput},
	GBButtonB:      {"B", CategoryGameInput},
	GBButtonStart:  {"Start", CategoryGameInput},
	GBButtonSelect: {"Select", CategoryGameInput},
	GBDPadUp:       {"Up", CategoryGameInput},
	GBDPadDown:     {"Down", CategoryGameInput},
	GBDPadLeft:     {"Left", CategoryGameInput},
	GBDPadRight:    {"Right", CategoryGameInput},

	EmulatorPauseToggle:  {"Pause/resume", CategoryEmulator},
	EmulatorSnapshot:     {"Save PNG snapshot", CategoryEmulator},
	EmulatorQuickSave:    {"Quick save", CategoryEmulator},
	EmulatorQuickLoad:    {"Quick load", CategoryEmulator},
	EmulatorPaletteCycle: {"Next palette", CategoryEmulator},
	EmulatorQuit:         {"Quit", CategoryEmulator},

	AudioToggleChannel1: {"Toggle square 1", CategoryAudio},
	AudioToggleChannel2: {"Toggle square 2", CategoryAudio},
	AudioToggleChannel3: {"Toggle wave", CategoryAudio},
	AudioToggleChannel4: {"Toggle noise", CategoryAudio},
	AudioUnmuteAll:      {"Unmute all channels", CategoryAudio},

	DebugLogLevelIncrease: {"More log output", CategoryDebug},
	DebugLogLevelDecrease: {"Less log output", CategoryDebug},
}

// GetInfo returns the description and category of an action.
func GetInfo(act Action) Info {
	if info, ok := actionInfo[act]; ok {
		return info
	}
	return Info{Description: "unknown", Category: CategoryDebug}
}

func (a Action) String() string {
	return GetInfo(a).Description
}

var gameButtons = map[Action]gbplus.ButtonID{
	GBButtonA:      gbplus.ButtonA,
	GBButtonB:      gbplus.ButtonB,
	GBButtonStart:  gbplus.ButtonStart,
	GBButtonSelect: gbplus.ButtonSelect,
	GBDPadUp:       gbplus.ButtonUp,
	GBDPadDown:     gbplus.ButtonDown,
	GBDPadLeft:     gbplus.ButtonLeft,
	GBDPadRight:    gbplus.ButtonRight,
}

// Button returns the engine button a game input action drives.
func Button(act Action) (gbplus.ButtonID, bool) {
	b, ok := gameButtons[act]
	return b, ok
}

// IsDPad reports whether act is one of the four directions.
func IsDPad(act Action) bool {
	return act >= GBDPadUp && act <= GBDPadRight
}

// EventType is the kind of an input event.
type EventType int

const (
	Press   EventType = iota // Button pressed down
	Release                  // Button released
	Hold                     // Continuous while pressed
)

// Event is one action delivered by a backend.
type Event struct {
	Action Action
	Type   EventType
}
