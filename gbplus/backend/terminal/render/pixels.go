package render

import (
	"image"

	"github.com/gdamore/tcell/v2"
)

// HalfBlock is the glyph used to draw two pixel rows per terminal cell:
// the foreground paints the top pixel, the background the bottom one.
const HalfBlock = '▀'

// Color converts pixel (x, y) of img to a terminal color.
func Color(img *image.RGBA, x, y int) tcell.Color {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+3 : i+3]
	return tcell.NewRGBColor(int32(p[0]), int32(p[1]), int32(p[2]))
}

// Cell returns the style for the cell covering rows y and y+1 of column x.
// A frame with an odd height gets a black bottom row.
func Cell(img *image.RGBA, x, y int) tcell.Style {
	top := Color(img, x, y)
	bottom := tcell.ColorBlack
	if y+1 < img.Rect.Dy() {
		bottom = Color(img, x, y+1)
	}
	return tcell.StyleDefault.Foreground(top).Background(bottom)
}
