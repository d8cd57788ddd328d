// Package draw has the drawing primitives used to compose panel test
// images: shapes, fill patterns and text.
package draw

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Image is an alias for [image/draw.Image].
type Image = draw.Image

// Op is an alias for image/draw.Op
type Op = draw.Op

const (
	// Over specifies ``(src in mask) over dst''.
	Over Op = iota

	// Src specifies ``src in mask''.
	Src
)

// Draw calls [image/draw.Draw].
func Draw(dst Image, r image.Rectangle, src image.Image, sp image.Point, op Op) {
	draw.Draw(dst, r, src, sp, op)
}

// Fill paints the whole of dst with c.
func Fill(dst Image, c color.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Face returns a TrueType face of size points parsed from data. Empty data
// selects the built-in 7x13 bitmap face.
func Face(data []byte, size float64) (font.Face, error) {
	if len(data) == 0 {
		return basicfont.Face7x13, nil
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse font")
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}

// Text draws the lines of s with the top left corner at pt and returns the
// rectangle covered by the text.
func Text(dst Image, pt image.Point, face font.Face, s string, c color.Color) image.Rectangle {
	var (
		metrics = face.Metrics()
		drawer  = font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(c),
			Face: face,
		}
		r = image.Rectangle{Min: pt, Max: pt}
	)
	for i, line := range strings.Split(s, "\n") {
		drawer.Dot = fixed.Point26_6{
			X: fixed.I(pt.X),
			Y: fixed.I(pt.Y) + metrics.Ascent + fixed.I(i).Mul(metrics.Height),
		}
		drawer.DrawString(line)
		if x := drawer.Dot.X.Ceil(); x > r.Max.X {
			r.Max.X = x
		}
		r.Max.Y = pt.Y + (fixed.I(i+1).Mul(metrics.Height)).Ceil()
	}
	return r
}
