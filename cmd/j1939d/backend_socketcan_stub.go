//go:build !linux

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

// Placeholder so non-linux builds compile; socketcan not supported.
func initSocketCANBackend(ctx context.Context, cfg *appConfig, h *hub.Hub, bus *j1939.Bus, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	return nil, func() {}, fmt.Errorf("socketcan backend unsupported on this platform")
}
