package input

// DefaultKeyMap provides default key mappings that work across backends.
// Backends translate their key codes to these names.
var DefaultKeyMap = map[string]Action{
	// Game Boy controls
	"z":         GBButtonA,
	"x":         GBButtonB,
	"Enter":     GBButtonStart,
	"Backspace": GBButtonSelect,
	"Up":        GBDPadUp,
	"Down":      GBDPadDown,
	"Left":      GBDPadLeft,
	"Right":     GBDPadRight,

	// Alternative arrow keys (WASD)
	"w": GBDPadUp,
	"s": GBDPadDown,
	"a": GBDPadLeft,
	"d": GBDPadRight,

	// Emulator controls
	"Space":  EmulatorPauseToggle,
	"F5":     EmulatorQuickSave,
	"F9":     EmulatorQuickLoad,
	"F12":    EmulatorSnapshot,
	"p":      EmulatorPaletteCycle,
	"Escape": EmulatorQuit,
	"q":      EmulatorQuit,

	// Audio debug controls
	"1": AudioToggleChannel1,
	"2": AudioToggleChannel2,
	"3": AudioToggleChannel3,
	"4": AudioToggleChannel4,
	"0": AudioUnmuteAll,

	// Debug controls
	"+": DebugLogLevelIncrease,
	"=": DebugLogLevelIncrease,
	"-": DebugLogLevelDecrease,
	"_": DebugLogLevelDecrease,
}

// GetDefaultMapping returns the default action for a key, if one exists
func GetDefaultMapping(key string) (Action, bool) {
	act, ok := DefaultKeyMap[key]
	return act, ok
}
