package video

import (
	"image"
	"image/color"
)

const (
	// Width and Height are the LCD dimensions in pixels.
	Width  = 160
	Height = 144
	// BytesPerPixel is the RGBA8888 pixel size.
	BytesPerPixel = 4
	// FrameSize is the length of a complete RGBA frame.
	FrameSize = Width * Height * BytesPerPixel
)

// FrameBuffer holds RGBA8888 pixels, row major, 4 bytes per pixel.
type FrameBuffer struct {
	pixels []uint8
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{pixels: make([]uint8, FrameSize)}
}

func (fb *FrameBuffer) SetPixel(x, y int, c color.RGBA) {
	i := (y*Width + x) * BytesPerPixel
	fb.pixels[i] = c.R
	fb.pixels[i+1] = c.G
	fb.pixels[i+2] = c.B
	fb.pixels[i+3] = c.A
}

func (fb *FrameBuffer) GetPixel(x, y int) color.RGBA {
	i := (y*Width + x) * BytesPerPixel
	return color.RGBA{R: fb.pixels[i], G: fb.pixels[i+1], B: fb.pixels[i+2], A: fb.pixels[i+3]}
}

// Fill paints every pixel with c.
func (fb *FrameBuffer) Fill(c color.RGBA) {
	for i := 0; i < len(fb.pixels); i += BytesPerPixel {
		fb.pixels[i] = c.R
		fb.pixels[i+1] = c.G
		fb.pixels[i+2] = c.B
		fb.pixels[i+3] = c.A
	}
}

// Bytes returns the backing pixel slice.
func (fb *FrameBuffer) Bytes() []uint8 {
	return fb.pixels
}

// Image returns a copy of the frame as an image, used for PNG snapshots.
func (fb *FrameBuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	copy(img.Pix, fb.pixels)
	return img
}
