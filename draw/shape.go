package draw

import (
	"image"
	"image/color"
)

// Line draws a line between two points.
func Line(dst Image, a, b image.Point, c color.Color) {
	bresenham(dst, a.X, a.Y, b.X, b.Y, c)
}

// HorizontalLine draws a line between (x,y) and (x+w,y).
func HorizontalLine(dst Image, x, y, w int, c color.Color) {
	bresenham(dst, x, y, x+w-1, y, c)
}

// VerticalLine draws a line between (x,y) and (x,y+h).
func VerticalLine(dst Image, x, y, h int, c color.Color) {
	bresenham(dst, x, y, x, y+h-1, c)
}

// Rectangle draws the outline of rect, the outline lies inside rect.
func Rectangle(dst Image, rect image.Rectangle, c color.Color) {
	if rect.Empty() {
		return
	}
	for x := rect.Min.X; x < rect.Max.X; x++ {
		dst.Set(x, rect.Min.Y, c)
		dst.Set(x, rect.Max.Y-1, c)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		dst.Set(rect.Min.X, y, c)
		dst.Set(rect.Max.X-1, y, c)
	}
}

// Border draws a border of width pixels along the edges of dst.
func Border(dst Image, width int, c color.Color) {
	r := dst.Bounds()
	for i := 0; i < width && !r.Empty(); i++ {
		Rectangle(dst, r, c)
		r = r.Inset(1)
	}
}

// Checker fills rect with a checkerboard of size pixel squares, the top
// left square is painted with c and the others are left alone.
func Checker(dst Image, rect image.Rectangle, size int, c color.Color) {
	if size <= 0 {
		return
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if ((x-rect.Min.X)/size+(y-rect.Min.Y)/size)%2 == 0 {
				dst.Set(x, y, c)
			}
		}
	}
}

// Stripes draws diagonal lines every pitch pixels inside rect.
func Stripes(dst Image, rect image.Rectangle, pitch int, c color.Color) {
	if pitch <= 0 {
		return
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if (x-rect.Min.X+y-rect.Min.Y)%pitch == 0 {
				dst.Set(x, y, c)
			}
		}
	}
}

// Corners for roundedCorner.
const (
	topLeft = 1 << iota
	topRight
	bottomRight
	bottomLeft
)

// RoundedRectangle draws the outline of rect with corners rounded by radius
// pixels. The radius is clamped so opposite corners never overlap.
func RoundedRectangle(dst Image, rect image.Rectangle, radius int, c color.Color) {
	var (
		w = rect.Dx()
		h = rect.Dy()
		r = min(radius, (min(w, h)-1)/2)
	)
	if w <= 0 || h <= 0 {
		return
	}
	if r <= 0 {
		Rectangle(dst, rect, c)
		return
	}

	var (
		x0, y0 = rect.Min.X, rect.Min.Y
		x1, y1 = rect.Max.X - 1, rect.Max.Y - 1
	)
	HorizontalLine(dst, x0+r, y0, w-2*r, c)
	HorizontalLine(dst, x0+r, y1, w-2*r, c)
	VerticalLine(dst, x0, y0+r, h-2*r, c)
	VerticalLine(dst, x1, y0+r, h-2*r, c)
	roundedCorner(dst, x0+r, y0+r, r, topLeft, c)
	roundedCorner(dst, x1-r, y0+r, r, topRight, c)
	roundedCorner(dst, x1-r, y1-r, r, bottomRight, c)
	roundedCorner(dst, x0+r, y1-r, r, bottomLeft, c)
}

// Box draws a filled rectangle.
func Box(dst Image, rect image.Rectangle, c color.Color) {
	var (
		y = rect.Min.Y
		h = rect.Dy()
	)
	if h <= 0 {
		return
	}
	for x := rect.Min.X; x < rect.Max.X; x++ {
		VerticalLine(dst, x, y, h, c)
	}
}

// roundedCorner draws one quarter of a midpoint circle around (x0, y0).
func roundedCorner(dst Image, x0, y0, radius, quadrant int, c color.Color) {
	var (
		f    = 1 - radius
		ddFx = 1
		ddFy = -2 * radius
		x    = 0
		y    = radius
	)
	for x < y {
		if f >= 0 {
			y--
			ddFy += 2
			f += ddFy
		}

		x++
		ddFx += 2
		f += ddFx

		switch quadrant {
		case topLeft:
			dst.Set(x0-y, y0-x, c)
			dst.Set(x0-x, y0-y, c)
		case topRight:
			dst.Set(x0+x, y0-y, c)
			dst.Set(x0+y, y0-x, c)
		case bottomRight:
			dst.Set(x0+x, y0+y, c)
			dst.Set(x0+y, y0+x, c)
		case bottomLeft:
			dst.Set(x0-y, y0+x, c)
			dst.Set(x0-x, y0+y, c)
		}
	}
}

// Generalized with integer
func bresenham(dst Image, x1, y1, x2, y2 int, c color.Color) {
	var dx, dy, e, slope int

	// Because drawing p1 -> p2 is equivalent to draw p2 -> p1,
	// I sort points in x-axis order to handle only half of possible cases.
	if x1 > x2 {
		x1, y1, x2, y2 = x2, y2, x1, y1
	}

	dx, dy = x2-x1, y2-y1
	// Because point is x-axis ordered, dx cannot be negative
	if dy < 0 {
		dy = -dy
	}

	switch {

	// Is line a point ?
	case x1 == x2 && y1 == y2:
		dst.Set(x1, y1, c)

	// Is line an horizontal ?
	case y1 == y2:
		for ; dx != 0; dx-- {
			dst.Set(x1, y1, c)
			x1++
		}
		dst.Set(x1, y1, c)

	// Is line a vertical ?
	case x1 == x2:
		if y1 > y2 {
			y1, y2 = y2, y1
		}
		for ; dy != 0; dy-- {
			dst.Set(x1, y1, c)
			y1++
		}
		dst.Set(x1, y1, c)

	// Is line a diagonal ?
	case dx == dy:
		if y1 < y2 {
			for ; dx != 0; dx-- {
				dst.Set(x1, y1, c)
				x1++
				y1++
			}
		} else {
			for ; dx != 0; dx-- {
				dst.Set(x1, y1, c)
				x1++
				y1--
			}
		}
		dst.Set(x1, y1, c)

	// wider than high ?
	case dx > dy:
		if y1 < y2 {
			// BresenhamDxXRYD(img, x1, y1, x2, y2, col)
			dy, e, slope = 2*dy, dx, 2*dx
			for ; dx != 0; dx-- {
				dst.Set(x1, y1, c)
				x1++
				e -= dy
				if e < 0 {
					y1++
					e += slope
				}
			}
		} else {
			// BresenhamDxXRYU(img, x1, y1, x2, y2, col)
			dy, e, slope = 2*dy, dx, 2*dx
			for ; dx != 0; dx-- {
				dst.Set(x1, y1, c)
				x1++
				e -= dy
				if e < 0 {
					y1--
					e += slope
				}
			}
		}
		dst.Set(x2, y2, c)

	// higher than wide.
	default:
		if y1 < y2 {
			// BresenhamDyXRYD(img, x1, y1, x2, y2, col)
			dx, e, slope = 2*dx, dy, 2*dy
			for ; dy != 0; dy-- {
				dst.Set(x1, y1, c)
				y1++
				e -= dx
				if e < 0 {
					x1++
					e += slope
				}
			}
		} else {
			// BresenhamDyXRYU(img, x1, y1, x2, y2, col)
			dx, e, slope = 2*dx, dy, 2*dy
			for ; dy != 0; dy-- {
				dst.Set(x1, y1, c)
				y1--
				e -= dx
				if e < 0 {
					x1++
					e += slope
				}
			}
		}
		dst.Set(x2, y2, c)
	}
}
