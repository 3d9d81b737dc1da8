package config

import (
	"errors"
	"testing"

	"github.com/kapitanov/chip8/internal/vm"
	"github.com/retroenv/retrogolib/assert"
	"github.com/spf13/pflag"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	q, err := cfg.VMQuirks()
	assert.NoError(t, err)
	assert.Equal(t, vm.ModernQuirks, q)
}

func TestBindFlags(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	err := fs.Parse([]string{"-f", "term", "--ips", "1000", "--timer-hz=50", "-q", "cosmac", "-v", "--beep", "beep.wav"})
	assert.NoError(t, err)

	assert.Equal(t, FrontendTerminal, cfg.Frontend)
	assert.Equal(t, 1000, cfg.InstructionsPerSecond)
	assert.Equal(t, 50, cfg.TimerHz)
	assert.Equal(t, "cosmac", cfg.Quirks)
	assert.Equal(t, "beep.wav", cfg.BeepPath)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 16, cfg.Scale)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"zero ips", func(c *Config) { c.InstructionsPerSecond = 0 }, ErrInvalidRate},
		{"negative timer", func(c *Config) { c.TimerHz = -1 }, ErrInvalidRate},
		{"ips too high", func(c *Config) { c.InstructionsPerSecond = 2_000_000_000 }, ErrInvalidRate},
		{"timer too high", func(c *Config) { c.TimerHz = 1_000_000_001 }, ErrInvalidRate},
		{"frontend", func(c *Config) { c.Frontend = "opengl" }, ErrUnknownFrontend},
		{"scale", func(c *Config) { c.Scale = 0 }, ErrInvalidScale},
		{"quirks", func(c *Config) { c.Quirks = "xochip" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := cfg.Validate()
			assert.True(t, err != nil)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
			}
		})
	}
}
