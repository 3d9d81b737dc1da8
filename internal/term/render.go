package term

import (
	"bufio"
	"io"

	"github.com/kapitanov/chip8/internal/vm"
)

const (
	escHome       = "\x1b[H"
	escClear      = "\x1b[2J"
	escHideCursor = "\x1b[?25l"
	escShowCursor = "\x1b[?25h"
)

// Columns and Rows are the terminal cells needed to show the display. Each
// cell holds two pixel rows.
const (
	Columns = vm.ScreenWidth
	Rows    = vm.ScreenHeight / 2
)

// Render writes the display as half-block characters, starting at the top
// left corner of the terminal. Lines end in CRLF since the terminal is in
// raw mode.
func Render(w io.Writer, gfx vm.Display) error {
	bw := bufio.NewWriterSize(w, Rows*(Columns*3+2)+len(escHome))

	if _, err := bw.WriteString(escHome); err != nil {
		return err
	}

	for row := 0; row < Rows; row++ {
		for x := 0; x < Columns; x++ {
			upper := gfx.Pixel(x, row*2)
			lower := gfx.Pixel(x, row*2+1)

			var cell string
			switch {
			case upper && lower:
				cell = "█"
			case upper:
				cell = "▀"
			case lower:
				cell = "▄"
			default:
				cell = " "
			}

			if _, err := bw.WriteString(cell); err != nil {
				return err
			}
		}

		if _, err := bw.WriteString("\r\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}
