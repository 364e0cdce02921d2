package video

import "github.com/valerio/gbplus/gbplus/bit"

// TileRow represents one row of a tile pattern (8 pixels).
//
// Each tile row uses 2 bytes in a bit-plane format: the first byte holds
// bit 0 of each pixel's color, the second bit 1. Bit 7 is the leftmost pixel.
//
//	Low  (0x3C): 0 0 1 1 1 1 0 0
//	High (0x7E): 0 1 1 1 1 1 1 0
//	            -----------------
//	Colors:      0 2 3 3 3 3 2 0
//
// Reference: https://gbdev.io/pandocs/Tile_Data.html
type TileRow struct {
	Low  uint8
	High uint8
}

// Pixel extracts a color index (0-3), pixelX 0 being the leftmost pixel.
// With flip set the row is mirrored horizontally.
func (t TileRow) Pixel(pixelX int, flip bool) uint8 {
	bitIndex := uint8(7 - pixelX)
	if flip {
		bitIndex = uint8(pixelX)
	}
	return bit.Value(bitIndex, t.Low) | bit.Value(bitIndex, t.High)<<1
}
