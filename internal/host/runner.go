package host

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kapitanov/chip8/internal/vm"
)

var (
	ErrReboot      = errors.New("reboot")
	ErrQuit        = errors.New("quit")
	ErrInvalidRate = errors.New("rate out of range")
)

// Rate limits accepted by NewRunner. Above them a pacer period rounds to
// zero nanoseconds.
const (
	MaxInstructionsPerSecond = 1_000_000
	MaxTimerHz               = 1_000
)

// HAL is the platform side of the emulator: a screen, a keypad, a speaker
// and a frame clock.
type HAL interface {
	ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error
	Draw(gfx vm.Display) error
	Beep(on bool) error
	WaitForNextFrame() error
}

// maxFrameTime bounds the catch-up work after a stall (window drag,
// suspended process).
const maxFrameTime = 250 * time.Millisecond

type Options struct {
	InstructionsPerSecond int
	TimerHz               int

	// Now defaults to time.Now
	Now func() time.Time
}

// Runner drives a VM from a HAL: each frame it reads input, applies the
// timer ticks and instruction steps owed for the elapsed wall time, and
// presents the display and sound state.
type Runner struct {
	machine *vm.VM
	program []byte
	hal     HAL
	now     func() time.Time

	steps  *pacer
	timers *pacer

	last    time.Time
	beeping bool
}

func NewRunner(machine *vm.VM, program []byte, hal HAL, opts Options) (*Runner, error) {
	if opts.InstructionsPerSecond <= 0 || opts.InstructionsPerSecond > MaxInstructionsPerSecond {
		return nil, fmt.Errorf("%w: %d instructions/s, limit is %d", ErrInvalidRate, opts.InstructionsPerSecond, MaxInstructionsPerSecond)
	}

	if opts.TimerHz <= 0 || opts.TimerHz > MaxTimerHz {
		return nil, fmt.Errorf("%w: %d ticks/s, limit is %d", ErrInvalidRate, opts.TimerHz, MaxTimerHz)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Runner{
		machine: machine,
		program: program,
		hal:     hal,
		now:     now,
		steps:   newPacer(opts.InstructionsPerSecond),
		timers:  newPacer(opts.TimerHz),
	}, nil
}

// Machine returns the VM being run.
func (r *Runner) Machine() *vm.VM {
	return r.machine
}

// Run executes frames until the HAL asks to quit or fails. A reboot request
// resets the machine and reloads the program. A machine fault is reported
// once and the runner keeps presenting frames so the user can still reboot
// or quit.
func (r *Runner) Run() error {
	if err := r.boot(); err != nil {
		return err
	}

	for {
		err := r.frame()

		switch {
		case err == nil:

		case errors.Is(err, ErrQuit):
			slog.Debug("host: exit requested")
			return nil

		case errors.Is(err, ErrReboot):
			slog.Info("reboot")
			if err := r.boot(); err != nil {
				return err
			}

		case vm.IsFault(err):
			slog.Error("machine halted, press backspace to reboot", "err", err)

		default:
			return err
		}
	}
}

func (r *Runner) boot() error {
	r.machine.Reset()
	if err := r.machine.Load(r.program); err != nil {
		return fmt.Errorf("unable to load program: %w", err)
	}

	r.steps.reset()
	r.timers.reset()
	r.last = r.now()

	return r.setBeep(false)
}

// frame runs one host frame. A machine fault is returned after the frame
// has been presented.
func (r *Runner) frame() error {
	if err := r.hal.ReadInput(r.machine.KeyDown, r.machine.KeyUp); err != nil {
		return err
	}

	now := r.now()
	elapsed := now.Sub(r.last)
	r.last = now

	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > maxFrameTime {
		elapsed = maxFrameTime
	}

	var fault error
	if !r.machine.Halted() {
		for range r.timers.advance(elapsed) {
			r.machine.AdvanceTimers()
		}

		for range r.steps.advance(elapsed) {
			if err := r.machine.Step(); err != nil {
				fault = err
				break
			}
		}
	}

	if r.machine.Dirty() {
		if err := r.hal.Draw(r.machine.Display()); err != nil {
			return err
		}
		r.machine.ClearDirty()
	}

	if err := r.setBeep(r.machine.SoundTimer() > 0 && !r.machine.Halted()); err != nil {
		return err
	}

	if fault != nil {
		return fault
	}

	return r.hal.WaitForNextFrame()
}

func (r *Runner) setBeep(on bool) error {
	if on == r.beeping {
		return nil
	}

	if err := r.hal.Beep(on); err != nil {
		return err
	}
	r.beeping = on
	return nil
}
