package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kapitanov/chip8/internal/audio"
	"github.com/kapitanov/chip8/internal/config"
	"github.com/kapitanov/chip8/internal/hal"
	"github.com/kapitanov/chip8/internal/host"
	"github.com/kapitanov/chip8/internal/statsview"
	"github.com/kapitanov/chip8/internal/term"
	"github.com/kapitanov/chip8/internal/vm"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg.BindFlags(cmd.Flags())

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if cfg.Verbose {
			loggerOpts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if cfg.Statsview {
			statsview.Launch()
		}

		path := args[0]
		bs, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to load file %q: %w", path, err)
		}

		quirks, err := cfg.VMQuirks()
		if err != nil {
			return err
		}

		h, shutdown, err := openFrontend(cfg)
		if err != nil {
			return err
		}
		defer shutdown()

		machine := vm.New(vm.WithQuirks(quirks))

		runner, err := host.NewRunner(machine, bs, h, host.Options{
			InstructionsPerSecond: cfg.InstructionsPerSecond,
			TimerHz:               cfg.TimerHz,
		})
		if err != nil {
			return err
		}

		return runner.Run()
	}

	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func openFrontend(cfg config.Config) (host.HAL, func(), error) {
	switch cfg.Frontend {
	case config.FrontendTerminal:
		t, err := term.Open(os.Stdin, os.Stdout)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to initialize terminal: %w", err)
		}
		return t, t.Close, nil

	default:
		opts := hal.Options{Scale: cfg.Scale}

		if cfg.BeepPath != "" {
			sample, err := audio.Load(cfg.BeepPath)
			if err != nil {
				return nil, nil, err
			}
			opts.Beep = sample
		}

		h, err := hal.New(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to initialize hal: %w", err)
		}
		return h, h.Shutdown, nil
	}
}
