package cartridge

import (
	"encoding/binary"
	"strings"
	"unicode"
)

const (
	headerStart = 0x0100
	headerEnd   = 0x0150

	titleAddress          = 0x134
	cgbFlagAddress        = 0x143
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	versionNumberAddress  = 0x14C
	headerChecksumAddress = 0x14D
	globalChecksumAddress = 0x14E

	romBankSize = 0x4000
	ramBankSize = 0x2000
)

// Header is the decoded cartridge header at 0x0100-0x014F.
type Header struct {
	Title          string
	CGBFlag        uint8
	Type           uint8
	ROMSizeCode    uint8
	RAMSizeCode    uint8
	Version        uint8
	HeaderChecksum uint8
	GlobalChecksum uint16

	ROMBanks int
	RAMSize  int
}

// CGBSupported reports whether the game has Game Boy Color enhancements.
func (h Header) CGBSupported() bool {
	return h.CGBFlag&0x80 != 0
}

// CGBOnly reports whether the game refuses to run on a monochrome Game Boy.
func (h Header) CGBOnly() bool {
	return h.CGBFlag == 0xC0
}

// ParseHeader decodes and validates the header of a ROM image. When
// verifyChecksum is set the header checksum at 0x014D must match.
func ParseHeader(rom []byte, verifyChecksum bool) (Header, error) {
	if len(rom) < headerEnd {
		return Header{}, romFormatError("image is %d bytes, too small to contain a header", len(rom))
	}

	h := Header{
		CGBFlag:        rom[cgbFlagAddress],
		Type:           rom[cartridgeTypeAddress],
		ROMSizeCode:    rom[romSizeAddress],
		RAMSizeCode:    rom[ramSizeAddress],
		Version:        rom[versionNumberAddress],
		HeaderChecksum: rom[headerChecksumAddress],
		GlobalChecksum: binary.BigEndian.Uint16(rom[globalChecksumAddress:]),
	}

	titleEnd := cgbFlagAddress + 1
	if h.CGBSupported() {
		titleEnd = cgbFlagAddress
	}
	h.Title = cleanTitle(rom[titleAddress:titleEnd])

	if h.ROMSizeCode > 0x08 {
		return Header{}, romFormatError("unknown ROM size code 0x%02X", h.ROMSizeCode)
	}
	h.ROMBanks = 2 << h.ROMSizeCode

	ramSize, ok := decodeRAMSize(h.RAMSizeCode)
	if !ok {
		return Header{}, romFormatError("unknown RAM size code 0x%02X", h.RAMSizeCode)
	}
	h.RAMSize = ramSize

	if verifyChecksum {
		if sum := HeaderChecksum(rom); sum != h.HeaderChecksum {
			return Header{}, romFormatError("header checksum is 0x%02X, computed 0x%02X", h.HeaderChecksum, sum)
		}
	}

	return h, nil
}

// HeaderChecksum computes the checksum the boot ROM verifies over 0x0134-0x014C.
func HeaderChecksum(rom []byte) uint8 {
	var sum uint8
	for _, b := range rom[titleAddress:headerChecksumAddress] {
		sum = sum - b - 1
	}
	return sum
}

func decodeRAMSize(code uint8) (int, bool) {
	switch code {
	case 0x00, 0x01:
		return 0, true
	case 0x02:
		return 8 * 1024, true
	case 0x03:
		return 32 * 1024, true
	case 0x04:
		return 128 * 1024, true
	case 0x05:
		return 64 * 1024, true
	}
	return 0, false
}

// cleanTitle turns NUL padding into spaces, replaces non printable bytes
// and trims the result.
func cleanTitle(raw []byte) string {
	runes := make([]rune, 0, len(raw))
	for _, b := range raw {
		r := rune(b)
		if r == 0 {
			r = ' '
		} else if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			r = '?'
		}
		runes = append(runes, r)
	}

	title := strings.TrimSpace(string(runes))
	if title == "" {
		return "(Untitled)"
	}
	return title
}
