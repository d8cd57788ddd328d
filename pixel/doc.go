// Package pixel implements a color and image library suitable for e-paper pixel displays.
//
// This module provides a monochrome color model and a vertically tiled image
// layout, compatible with Go's native [color.Color] and [image.Image] /
// [draw.Image] interfaces.
package pixel
