package vm

// Display is the 64x32 monochrome framebuffer, row-major.
type Display [ScreenWidth * ScreenHeight]bool

// Pixel reports whether the pixel at (x, y) is lit. Coordinates wrap.
func (d *Display) Pixel(x, y int) bool {
	return d[getScreenAddr(x, y)]
}

// Lit counts the lit pixels.
func (d *Display) Lit() int {
	n := 0
	for _, p := range d {
		if p {
			n++
		}
	}
	return n
}

func (d *Display) clear() {
	*d = Display{}
}

// drawSprite XORs the rows onto the display with the top-left corner at
// (x, y). Pixels that fall off an edge wrap to the opposite edge. The
// return value is true if any lit pixel was turned off.
func (d *Display) drawSprite(x, y int, rows []uint8) bool {
	collision := false

	for row, bits := range rows {
		const width = 8
		for col := 0; col < width; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}

			addr := getScreenAddr(x+col, y+row)
			if d[addr] {
				collision = true
			}
			d[addr] = !d[addr]
		}
	}

	return collision
}

func getScreenAddr(x, y int) int {
	x %= ScreenWidth
	if x < 0 {
		x += ScreenWidth
	}

	y %= ScreenHeight
	if y < 0 {
		y += ScreenHeight
	}

	return ScreenWidth*y + x
}
