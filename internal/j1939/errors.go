package j1939

import "errors"

// Error taxonomy. Claimer.ReportError forwards a transport or scheduler
// failure to the claimer's bound on_error callback; nothing in this module
// calls it (Timer.Arm has no failure path, and the CAN backends log and count
// their own transport errors). InvalidArgument is returned directly to
// the caller that made the bad request. Malformed inbound frames are
// silently dropped rather than surfaced as an error, and address exhaustion
// never reaches on_error either — it only drives the CannotClaim transition.
var (
	// ErrInvalidArgument is returned when a caller requests an operation for
	// which required inputs are missing or out of range (e.g. Bus.Claim with
	// a preferred address above MaxUnicastAddr).
	ErrInvalidArgument = errors.New("j1939: invalid argument")

	// ErrSchedulerShutdown is the sentinel for a scheduler that can no longer
	// arm the contention deadline, for use with Claimer.ReportError. No Timer
	// in this package reports it.
	ErrSchedulerShutdown = errors.New("j1939: scheduler shut down")

	// ErrTransport is the sentinel for transport-layer send/receive failures,
	// for use with Claimer.ReportError. No code in this module reports it.
	ErrTransport = errors.New("j1939: transport error")
)
