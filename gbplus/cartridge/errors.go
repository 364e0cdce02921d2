package cartridge

import (
	"errors"
	"fmt"
)

// ErrNoRAM is returned when battery data is loaded into a cartridge without RAM.
var ErrNoRAM = errors.New("cartridge has no external RAM")

// RomFormatError reports a ROM image whose header cannot be used. The load
// attempt fails but the caller may retry with another image.
type RomFormatError struct {
	Reason string
}

func (e *RomFormatError) Error() string {
	return "invalid ROM: " + e.Reason
}

func romFormatError(format string, args ...any) *RomFormatError {
	return &RomFormatError{Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedMapperError reports a cartridge type byte the emulator has no
// memory bank controller for.
type UnsupportedMapperError struct {
	Type uint8
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("unsupported cartridge type 0x%02X (%s)", e.Type, TypeName(e.Type))
}
