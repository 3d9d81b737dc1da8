package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kapitanov/chip8/internal/host"
	"github.com/kapitanov/chip8/internal/vm"
	"github.com/spf13/pflag"
)

const (
	FrontendSDL      = "sdl"
	FrontendTerminal = "term"
)

var (
	ErrInvalidRate     = errors.New("rate out of range")
	ErrUnknownFrontend = errors.New("unknown frontend")
	ErrInvalidScale    = errors.New("scale must be between 1 and 32")
)

// Config holds the host settings. None of it is machine state.
type Config struct {
	Frontend              string
	InstructionsPerSecond int
	TimerHz               int
	Quirks                string
	Scale                 int
	BeepPath              string
	Verbose               bool
	Statsview             bool
}

func Default() Config {
	return Config{
		Frontend:              FrontendSDL,
		InstructionsPerSecond: 700,
		TimerHz:               60,
		Quirks:                "modern",
		Scale:                 16,
	}
}

// BindFlags registers a flag for every field, using the current values as
// defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Frontend, "frontend", "f", c.Frontend, fmt.Sprintf("frontend to run in (%s, %s)", FrontendSDL, FrontendTerminal))
	fs.IntVar(&c.InstructionsPerSecond, "ips", c.InstructionsPerSecond, "instructions executed per second")
	fs.IntVar(&c.TimerHz, "timer-hz", c.TimerHz, "delay and sound timer rate")
	fs.StringVarP(&c.Quirks, "quirks", "q", c.Quirks, fmt.Sprintf("quirk profile (%s)", strings.Join(vm.QuirkProfiles(), ", ")))
	fs.IntVarP(&c.Scale, "scale", "s", c.Scale, "window pixels per CHIP-8 pixel (sdl frontend)")
	fs.StringVar(&c.BeepPath, "beep", c.BeepPath, "wav or mp3 sample played while the sound timer runs (sdl frontend)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "enable verbose logging")
	fs.BoolVar(&c.Statsview, "statsview", c.Statsview, "serve runtime statistics (statsview builds only)")
}

func (c Config) Validate() error {
	if c.InstructionsPerSecond <= 0 || c.InstructionsPerSecond > host.MaxInstructionsPerSecond {
		return fmt.Errorf("ips %d (1..%d): %w", c.InstructionsPerSecond, host.MaxInstructionsPerSecond, ErrInvalidRate)
	}

	if c.TimerHz <= 0 || c.TimerHz > host.MaxTimerHz {
		return fmt.Errorf("timer-hz %d (1..%d): %w", c.TimerHz, host.MaxTimerHz, ErrInvalidRate)
	}

	switch c.Frontend {
	case FrontendSDL, FrontendTerminal:
	default:
		return fmt.Errorf("%w %q", ErrUnknownFrontend, c.Frontend)
	}

	if c.Scale < 1 || c.Scale > 32 {
		return fmt.Errorf("scale %d: %w", c.Scale, ErrInvalidScale)
	}

	if _, err := vm.QuirksByName(c.Quirks); err != nil {
		return err
	}

	return nil
}

// VMQuirks resolves the quirk profile name.
func (c Config) VMQuirks() (vm.Quirks, error) {
	return vm.QuirksByName(c.Quirks)
}
