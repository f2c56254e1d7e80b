package main

import (
	"log/slog"

	"github.com/kstaniek/j1939d/internal/can"
	"github.com/kstaniek/j1939d/internal/j1939"
	"github.com/kstaniek/j1939d/internal/metrics"
)

// startLocalClaims hosts one Claimer per configured -claim NAME:ADDR pair on
// bus, wiring its outbound frames through send and its lifecycle events
// through the logger.
func startLocalClaims(cfg *appConfig, bus *j1939.Bus, send func(can.Frame) error, l *slog.Logger) error {
	for _, claim := range cfg.localClaims {
		name := claim.Name
		cb := j1939.Callbacks{
			OnFrame: func(f j1939.Frame) {
				frame, err := j1939.ToCANFrame(f)
				if err != nil {
					l.Warn("j1939_encode_error", "name", uint64(name), "error", err)
					return
				}
				if err := send(frame); err != nil {
					metrics.IncError(metrics.ErrSocketCANWrite)
					l.Warn("j1939_send_error", "name", uint64(name), "error", err)
				}
			},
			OnAddress: func(name j1939.Name, addr uint8) {
				l.Info("j1939_address_claimed", "name", uint64(name), "address", addr)
			},
			OnLoseAddress: func(name j1939.Name) {
				l.Warn("j1939_address_lost", "name", uint64(name))
			},
			OnError: func(what string, err error) {
				l.Warn("j1939_claimer_error", "name", uint64(name), "what", what, "error", err)
			},
		}
		if _, err := bus.Claim(claim.Name, claim.Preferred, cb); err != nil {
			return err
		}
		l.Info("j1939_claim_started", "name", uint64(claim.Name), "preferred", claim.Preferred)
	}
	return nil
}
