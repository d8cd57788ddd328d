package pixel

import (
	"image"
	"image/color"
	"image/draw"
)

type Image interface {
	draw.Image

	// Clear the image.
	Clear()

	// Fill the image with a single color.
	Fill(color.Color)
}

// Buffer holds the pixel values and is a container that is used by most image formats in this package.
type Buffer struct {
	// Rect is the image bounding box.
	Rect image.Rectangle

	// Pix are the image pixels.
	Pix []byte

	// Stride is the Pix stride (in bytes) between vertically adjacent pages.
	Stride int
}

func (p *Buffer) Bounds() image.Rectangle {
	return p.Rect
}

func (p *Buffer) Clear() {
	for i := range p.Pix {
		p.Pix[i] = 0x00
	}
}

func makeBuffer(w, h, stride, size int) Buffer {
	return Buffer{
		Rect:   image.Rect(0, 0, w, h),
		Pix:    make([]byte, size),
		Stride: stride,
	}
}

// MonoVerticalMSBImage is a 1-bit per pixel monochrome image.
//
// Each byte holds a column of 8 vertically stacked pixels (a page), with the
// top pixel in the most significant bit. Pages are stored left to right,
// top page first.
type MonoVerticalMSBImage struct {
	Buffer
}

func NewMonoVerticalMSBImage(w, h int) *MonoVerticalMSBImage {
	pages := ((h + 7) & ^7) / 8 // round up to whole bytes
	return &MonoVerticalMSBImage{
		Buffer: makeBuffer(w, h, w, pages*w),
	}
}

func (p *MonoVerticalMSBImage) ColorModel() color.Model {
	return MonoModel
}

// PixOffset returns the index of the byte holding pixel (x, y).
func (p *MonoVerticalMSBImage) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)/8*p.Stride + (x - p.Rect.Min.X)
}

func (p *MonoVerticalMSBImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return color.Transparent
	}

	var (
		pos = p.PixOffset(x, y)
		bit = byte(0x80) >> uint((y-p.Rect.Min.Y)&7)
	)
	return Mono{
		Ink: p.Pix[pos]&bit != 0,
	}
}

func (p *MonoVerticalMSBImage) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(p.Rect) {
		return
	}

	var (
		pos = p.PixOffset(x, y)
		bit = byte(0x80) >> uint((y-p.Rect.Min.Y)&7)
	)
	if monoModel(c).(Mono).Ink {
		p.Pix[pos] |= bit
	} else {
		p.Pix[pos] &^= bit
	}
}

func (p *MonoVerticalMSBImage) Fill(c color.Color) {
	var value byte
	if monoModel(c).(Mono).Ink {
		value = 0xff
	}
	for i := range p.Pix {
		p.Pix[i] = value
	}
}
