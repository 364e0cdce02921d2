package gbplus

import (
	"errors"

	"github.com/valerio/gbplus/gbplus/cartridge"
	"github.com/valerio/gbplus/gbplus/cpu"
	"github.com/valerio/gbplus/gbplus/savestate"
)

var (
	// ErrNoROM is returned by calls that need a cartridge before LoadROM succeeded.
	ErrNoROM = errors.New("no ROM loaded")
	// ErrROMNotReloaded is returned by StepFrame after LoadSaveState until
	// ReloadROM has repopulated the ROM banks.
	ErrROMNotReloaded = errors.New("save state restored, ROM must be reloaded before stepping")
	// ErrNoTimer is returned by the RTC calls on cartridges without a clock.
	ErrNoTimer = errors.New("cartridge has no real-time clock")
	// ErrNoRAM is returned by LoadSave on cartridges without external RAM.
	ErrNoRAM = cartridge.ErrNoRAM
)

// Error types surfaced by the engine, re-exported so callers only need this
// package for errors.As.
type (
	RomFormatError         = cartridge.RomFormatError
	UnsupportedMapperError = cartridge.UnsupportedMapperError
	StateFormatError       = savestate.StateFormatError
	DecodeError            = cpu.DecodeError
)

// IsRecoverable reports whether err leaves the engine usable. Decode errors
// end the session; everything else can be retried with other input.
func IsRecoverable(err error) bool {
	var decode *DecodeError
	return err != nil && !errors.As(err, &decode)
}
