package pixel

import "image/color"

// MonoModel is the color model for monochrome e-paper pixels.
var MonoModel color.Model = color.ModelFunc(monoModel)

var (
	Paper = Mono{false}
	Ink   = Mono{true}
)

// Mono represents a 1-bit e-paper color, a set bit is ink (black).
type Mono struct {
	Ink bool
}

func (c Mono) RGBA() (r, g, b, a uint32) {
	if c.Ink {
		return 0, 0, 0, 0xffff
	}
	return 0xffff, 0xffff, 0xffff, 0xffff
}

func monoModel(c color.Color) color.Color {
	if _, ok := c.(Mono); ok {
		return c
	}
	r, g, b, a := c.RGBA()
	if a == 0 {
		return Paper
	}

	// These coefficients (the fractions 0.299, 0.587 and 0.114) are the same
	// as those given by the JFIF specification and used by func RGBToYCbCr in
	// ycbcr.go.
	//
	// Note that 19595 + 38470 + 7471 equals 65536.
	y := (19595*r + 38470*g + 7471*b + 1<<15) >> 16

	return Mono{Ink: y < 0x8000}
}
