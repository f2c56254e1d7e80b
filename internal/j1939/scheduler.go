package j1939

import (
	"sync"
	"time"
)

// Timer is the single-shot scheduling primitive the claimer depends on for
// its contention deadline and cannot-claim retransmit delay. Arm replaces
// any previously armed callback; Cancel is a no-op if nothing is armed.
// Implementations must not invoke callback re-entrantly from within Arm or
// Cancel.
type Timer interface {
	Arm(d time.Duration, callback func())
	Cancel()
}

// RealtimeTimer is the production Timer, built on time.AfterFunc — the
// single-shot counterpart to the time.NewTicker loop cmd/j1939d's metrics
// logger uses for its own periodic work.
type RealtimeTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// NewRealtimeTimer returns a Timer with nothing armed.
func NewRealtimeTimer() *RealtimeTimer { return &RealtimeTimer{} }

func (t *RealtimeTimer) Arm(d time.Duration, callback func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, callback)
}

func (t *RealtimeTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
