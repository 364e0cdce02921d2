package savestate

import (
	"encoding/binary"
	"hash/crc32"
)

// Container layout, all values little endian:
//
//	magic(12) version(2) flags(2) romChecksum(2) length(4) crc32(4) payload(length)
const (
	Magic      = "GBPLUS-STATE"
	Version    = 1
	HeaderSize = 26
)

// FlagCGB marks a state captured while running in CGB mode.
const FlagCGB uint16 = 1 << 0

// Header describes the payload of a state buffer.
type Header struct {
	Version     uint16
	Flags       uint16
	ROMChecksum uint16
	Length      uint32
	CRC         uint32
}

// Wrap prepends the container header to payload.
func Wrap(flags, romChecksum uint16, payload []byte) []byte {
	data := make([]byte, HeaderSize+len(payload))
	copy(data[0:12], Magic)
	binary.LittleEndian.PutUint16(data[12:14], Version)
	binary.LittleEndian.PutUint16(data[14:16], flags)
	binary.LittleEndian.PutUint16(data[16:18], romChecksum)
	binary.LittleEndian.PutUint32(data[18:22], uint32(len(payload)))
	binary.LittleEndian.PutUint32(data[22:26], crc32.ChecksumIEEE(payload))
	copy(data[HeaderSize:], payload)
	return data
}

// Verify checks the container and returns its header and payload.
// Every failure is a *StateFormatError.
func Verify(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, formatError(ErrTooShort, "%d bytes", len(data))
	}
	if string(data[0:12]) != Magic {
		return Header{}, nil, &StateFormatError{Reason: ErrBadMagic}
	}

	h := Header{
		Version:     binary.LittleEndian.Uint16(data[12:14]),
		Flags:       binary.LittleEndian.Uint16(data[14:16]),
		ROMChecksum: binary.LittleEndian.Uint16(data[16:18]),
		Length:      binary.LittleEndian.Uint32(data[18:22]),
		CRC:         binary.LittleEndian.Uint32(data[22:26]),
	}
	if h.Version != Version {
		return h, nil, formatError(ErrVersion, "got %d, want %d", h.Version, Version)
	}

	payload := data[HeaderSize:]
	if uint32(len(payload)) < h.Length {
		return h, nil, formatError(ErrTruncated, "payload is %d bytes, header says %d", len(payload), h.Length)
	}
	payload = payload[:h.Length]
	if crc32.ChecksumIEEE(payload) != h.CRC {
		return h, nil, &StateFormatError{Reason: ErrCorrupt}
	}

	return h, payload, nil
}
