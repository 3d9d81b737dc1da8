//go:build !statsview

package statsview

import "log/slog"

func Launch() {
	slog.Warn("statsview requested but not compiled in, rebuild with -tags statsview")
}

func Available() bool {
	return false
}
