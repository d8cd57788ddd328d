package epd

// transpose converts a page packed, MSB first source bitmap into the
// IL0373 column order. Source bit (x, y) lives in byte (y/8)*width + x at
// bit 7-(y%8). It lands in byte ((width-1-x)*height + y)/8 at the same bit,
// so columns are emitted right to left.
//
// The whole panel is converted. Source bytes past len(src) read as zero.
// dst must hold width*height/8 bytes and is zeroed first.
func transpose(dst, src []byte, width, height int) {
	for i := range dst {
		dst[i] = 0
	}
	for y := 0; y < height; y++ {
		var (
			bit  = byte(0x80) >> uint(y&7)
			page = (y / 8) * width
		)
		for x := 0; x < width; x++ {
			i := page + x
			if i >= len(src) {
				break
			}
			if src[i]&bit != 0 {
				dst[((width-1-x)*height+y)/8] |= bit
			}
		}
	}
}
