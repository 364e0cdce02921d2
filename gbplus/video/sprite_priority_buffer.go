package video

// SpritePriorityBuffer tracks which sprite owns each pixel of a scanline,
// see https://gbdev.io/pandocs/OAM.html#drawing-priority.
//
// Sprites claim pixels while they are selected in OAM order:
//   - an unowned pixel goes to the sprite
//   - a sprite with a lower priority X takes the pixel over
//   - with equal X the lower OAM index wins
//
// Example: overlap with different X coordinates
//
//	Pixels:     0  1  2  3  4  5  6  7  8  9 10 11 12 13 14 15 16 17
//	Sprite 0:                  [-----A-----]                    (X=5, OAM=0)
//	Sprite 1:                           [-----B-----]           (X=10, OAM=1)
//	Result:                    [-----A-----]--B-----]
//
// Passing the same X for every sprite gives the CGB rule where only the OAM
// index counts. Ownership is computed during selection, so rendering never
// sorts.
type SpritePriorityBuffer struct {
	// -1 means no sprite owns the pixel
	ownerIndex [Width]int
	ownerX     [Width]int
}

// Clear resets the buffer for a new scanline
func (s *SpritePriorityBuffer) Clear() {
	for i := range Width {
		s.ownerIndex[i] = -1
		s.ownerX[i] = 0xFF
	}
}

// TryClaimPixel attempts to claim a pixel for a sprite and reports whether it won.
func (s *SpritePriorityBuffer) TryClaimPixel(pixelX, spriteIndex, spriteX int) bool {
	if pixelX < 0 || pixelX >= Width {
		return false
	}

	current := s.ownerIndex[pixelX]
	if current == -1 ||
		spriteX < s.ownerX[pixelX] ||
		(spriteX == s.ownerX[pixelX] && spriteIndex < current) {
		s.ownerIndex[pixelX] = spriteIndex
		s.ownerX[pixelX] = spriteX
		return true
	}

	return false
}

// GetOwner returns the sprite index that owns a pixel, or -1 if none
func (s *SpritePriorityBuffer) GetOwner(pixelX int) int {
	if pixelX < 0 || pixelX >= Width {
		return -1
	}
	return s.ownerIndex[pixelX]
}
