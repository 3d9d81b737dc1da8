// Package term runs the emulator in a text terminal: the display is drawn
// with half-block characters and the keypad is read from raw stdin.
package term

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/kapitanov/chip8/internal/host"
	"github.com/kapitanov/chip8/internal/vm"
	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

const frameDuration = time.Second / 60

// Terminal is a host.HAL on a posix terminal.
type Terminal struct {
	input  *os.File
	output *os.File

	canAttr unix.Termios
	rawAttr unix.Termios

	kb      keyboard
	readBuf []byte

	nextFrame time.Time
}

var _ host.HAL = (*Terminal)(nil)

// Open puts input into raw, non-blocking mode and prepares output for
// drawing. Close restores the terminal.
func Open(input, output *os.File) (*Terminal, error) {
	if input == nil || output == nil {
		return nil, errors.New("terminal requires an input and an output file")
	}

	t := &Terminal{
		input:     input,
		output:    output,
		readBuf:   make([]byte, 64),
		nextFrame: time.Now(),
	}

	if err := termios.Tcgetattr(input.Fd(), &t.canAttr); err != nil {
		return nil, fmt.Errorf("failed to read terminal attributes: %w", err)
	}

	t.rawAttr = t.canAttr
	termios.Cfmakeraw(&t.rawAttr)
	t.rawAttr.Cc[syscall.VMIN] = 0
	t.rawAttr.Cc[syscall.VTIME] = 0

	if err := termios.Tcsetattr(input.Fd(), termios.TCSANOW, &t.rawAttr); err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}
	slog.Debug("term: enter raw mode")

	if ws, err := unix.IoctlGetWinsize(int(output.Fd()), unix.TIOCGWINSZ); err == nil {
		if int(ws.Col) < Columns || int(ws.Row) < Rows {
			slog.Warn("terminal is smaller than the display", "cols", ws.Col, "rows", ws.Row, "need_cols", Columns, "need_rows", Rows)
		}
	}

	if _, err := io.WriteString(output, escClear+escHideCursor); err != nil {
		t.Close()
		return nil, err
	}

	return t, nil
}

// Close restores the terminal attributes and cursor.
func (t *Terminal) Close() {
	if _, err := io.WriteString(t.output, escShowCursor+"\r\n"); err != nil {
		slog.Error("failed to restore cursor", "err", err)
	}

	if err := termios.Tcsetattr(t.input.Fd(), termios.TCSANOW, &t.canAttr); err != nil {
		slog.Error("failed to restore terminal", "err", err)
	}
}

func (t *Terminal) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	n, err := t.input.Read(t.readBuf)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read terminal input: %w", err)
	}

	return t.kb.feed(t.readBuf[:n], keyDown, keyUp)
}

func (t *Terminal) Draw(gfx vm.Display) error {
	if err := Render(t.output, gfx); err != nil {
		return fmt.Errorf("failed to draw to terminal: %w", err)
	}
	return nil
}

// Beep rings the terminal bell when the sound timer starts.
func (t *Terminal) Beep(on bool) error {
	if !on {
		return nil
	}

	_, err := io.WriteString(t.output, "\a")
	return err
}

func (t *Terminal) WaitForNextFrame() error {
	t.nextFrame = t.nextFrame.Add(frameDuration)

	delay := time.Until(t.nextFrame)
	if delay <= 0 {
		t.nextFrame = time.Now()
		return nil
	}

	time.Sleep(delay)
	return nil
}
