//go:build statsview

package statsview

import (
	"log/slog"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const (
	Address = "localhost:12800"
	url     = "/debug/statsview"
)

// Launch starts the stats server in its own goroutine.
func Launch() {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(Address))
		mgr := statsview.New()
		mgr.Start()
	}()

	slog.Info("stats server available", "url", "http://"+Address+url)
}

// Available reports whether the stats server is compiled in.
func Available() bool {
	return true
}
