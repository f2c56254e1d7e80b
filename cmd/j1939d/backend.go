package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/j1939d/internal/can"
	"github.com/kstaniek/j1939d/internal/hub"
	"github.com/kstaniek/j1939d/internal/j1939"
)

// initBackend selects the backend, starts its RX loop and returns a frame sender and cleanup.
// It returns an error instead of exiting the process to allow graceful handling by the caller.
func initBackend(ctx context.Context, cfg *appConfig, h *hub.Hub, bus *j1939.Bus, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	switch cfg.backend {
	case "serial":
		return initSerialBackend(ctx, cfg, h, bus, l, wg)
	case "socketcan":
		return initSocketCANBackend(ctx, cfg, h, bus, l, wg)
	default:
		return nil, func() {}, fmt.Errorf("unknown backend %q (use serial|socketcan)", cfg.backend)
	}
}

// dispatchToBus feeds fr into bus if it carries the extended-frame flag
// J1939 requires, ahead of the caller's own hub broadcast.
func dispatchToBus(bus *j1939.Bus, fr can.Frame) {
	if bus == nil || !j1939.IsJ1939Frame(fr) {
		return
	}
	bus.Process(j1939.FromCANFrame(fr))
}
