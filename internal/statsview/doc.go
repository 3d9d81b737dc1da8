// Package statsview serves runtime statistics over HTTP while the emulator
// runs. The server is only compiled in with the statsview build tag:
//
//	go build -tags statsview
//
// Charts are then available at localhost:12800/debug/statsview and the
// standard pprof pages at localhost:12800/debug/pprof/.
package statsview
