package j1939

import (
	"math/rand"
	"time"

	"github.com/kstaniek/j1939d/internal/metrics"
)

// State is one of the four address-claimer states defined by J1939-81.
type State int

const (
	StateIdle State = iota
	StateClaiming
	StateClaimed
	StateCannotClaim
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateClaiming:
		return "claiming"
	case StateClaimed:
		return "claimed"
	case StateCannotClaim:
		return "cannot_claim"
	default:
		return "unknown"
	}
}

// contentionWindow is the J1939-81 mandated claim deadline.
const contentionWindow = 250 * time.Millisecond

// cannotClaimJitterMaxMillis bounds the randomized delay before a
// cannot-claim frame is actually sent, so that every contender that just
// lost the same address doesn't announce "cannot claim" in lockstep.
const cannotClaimJitterMaxMillis = 154 // [0,153] inclusive

// dynamicRangeStart/End are the addresses scanned on preemption when the
// local NAME is arbitrary-address-capable.
const (
	dynamicRangeStart uint16 = 0x80
	dynamicRangeEnd   uint16 = 0xF7
)

// Callbacks is the bundle a Claimer dispatches into. All four are required
// in production; OnFrame is the only egress path for outbound frames.
type Callbacks struct {
	OnAddress     func(name Name, addr uint8)
	OnLoseAddress func(name Name)
	OnFrame       func(Frame)
	OnError       func(what string, err error)
}

// Option configures a Claimer at construction time.
type Option func(*Claimer)

// WithRandSource overrides the source used for the cannot-claim
// retransmission jitter; tests use this for deterministic delays.
func WithRandSource(src rand.Source) Option {
	return func(c *Claimer) { c.rng = rand.New(src) }
}

// Claimer drives one local NAME through the address-claim state machine. It
// owns no lock: the host must not call Process, StartAddressClaim, or
// OnTimeout re-entrantly or concurrently.
type Claimer struct {
	localName Name
	registry  *Registry
	timer     Timer
	callbacks Callbacks
	rng       *rand.Rand

	state State
	addr  uint8 // current candidate (Claiming) or owned address (Claimed); IdleAddr otherwise
}

// New constructs a Claimer in the Idle state with no address.
func New(scheduler Timer, localName Name, registry *Registry, opts ...Option) *Claimer {
	c := &Claimer{
		localName: localName,
		registry:  registry,
		timer:     scheduler,
		state:     StateIdle,
		addr:      IdleAddr,
		rng:       rand.New(rand.NewSource(int64(localName))),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BindCallbacks installs the callback bundle used for emission and notification.
func (c *Claimer) BindCallbacks(cb Callbacks) { c.callbacks = cb }

// LocalName returns the NAME this claimer is claiming an address for.
func (c *Claimer) LocalName() Name { return c.localName }

// State returns the current state.
func (c *Claimer) State() State { return c.state }

// CurrentAddress returns the owned address and true only while Claimed.
func (c *Claimer) CurrentAddress() (uint8, bool) {
	if c.state == StateClaimed {
		return c.addr, true
	}
	return 0, false
}

// StartAddressClaim initiates a claim attempt for preferred. Valid from Idle
// and CannotClaim only; returns ErrInvalidArgument otherwise or if preferred
// is outside the unicast range.
func (c *Claimer) StartAddressClaim(preferred uint8) error {
	if preferred > MaxUnicastAddr {
		return ErrInvalidArgument
	}
	if c.state != StateIdle && c.state != StateCannotClaim {
		return ErrInvalidArgument
	}
	c.attemptClaim(preferred)
	return nil
}

// Process feeds one decoded inbound frame relevant to address claim. Frames
// that are neither a well-formed address-claim nor address-request are
// silently dropped.
func (c *Claimer) Process(f Frame) {
	switch {
	case IsAddressClaim(f):
		c.handleAddressClaim(ClaimedName(f), f.SA)
	case IsAddressRequest(f):
		c.handleAddressRequest()
	}
}

// OnTimeout is invoked by the scheduler when the contention deadline expires.
func (c *Claimer) OnTimeout() {
	if c.state != StateClaiming {
		return
	}
	addr, ok := c.registry.FindAddress(c.localName)
	if !ok || addr != c.addr {
		// Stale callback: our candidate was already superseded by a fresh
		// Arm() call, which should have made this unreachable.
		return
	}
	c.state = StateClaimed
	metrics.IncJ1939ClaimAccepted()
	metrics.SetJ1939RegistryOccupancy(c.registry.AddressSize())
	c.fireOnAddress()
}

// Close cancels any pending timer and releases the local NAME from the
// registry. No further callbacks fire.
func (c *Claimer) Close() {
	c.timer.Cancel()
	c.registry.Release(c.localName)
}

// ReportError routes a transport or scheduler failure to the bound on_error
// callback; never called for recoverable protocol events.
func (c *Claimer) ReportError(what string, err error) {
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(what, err)
	}
}

func (c *Claimer) handleAddressClaim(name Name, addr uint8) {
	// Registry bookkeeping happens unconditionally for every inbound claim,
	// independent of whether it conflicts with our own candidate; this call
	// is idempotent when multiple claimers share a registry and each
	// observes the same frame via a Bus fan-out.
	c.registry.TryAddressClaim(name, addr)

	switch c.state {
	case StateClaiming:
		if addr != c.addr {
			return
		}
		switch {
		case name < c.localName:
			c.registry.Release(c.localName)
			c.arbitrate()
		case name > c.localName:
			c.emitClaim(c.addr)
		}
	case StateClaimed:
		if addr != c.addr {
			return
		}
		switch {
		case name < c.localName:
			metrics.IncJ1939Preemption()
			c.fireLoseAddress()
			c.registry.Release(c.localName)
			c.state = StateClaiming
			c.arbitrate()
		case name > c.localName:
			c.emitClaim(c.addr)
		}
	case StateIdle, StateCannotClaim:
		// Bookkeeping only; no address of ours is at stake.
	}
}

func (c *Claimer) handleAddressRequest() {
	switch c.state {
	case StateClaiming, StateClaimed:
		c.emitClaim(c.addr)
	case StateIdle, StateCannotClaim:
		c.emitCannotClaimDelayed()
	}
}

// arbitrate applies the preemption rule: arbitrary-address-capable NAMEs
// scan the dynamic range for a free address, everyone else fails straight
// to CannotClaim. The caller has already released the local NAME's prior
// registry entry.
func (c *Claimer) arbitrate() {
	if !c.localName.IsArbitraryAddressCapable() {
		c.enterCannotClaim()
		return
	}
	next, ok := c.nextDynamicAddress()
	if !ok {
		c.enterCannotClaim()
		return
	}
	c.attemptClaim(next)
}

func (c *Claimer) nextDynamicAddress() (uint8, bool) {
	for a := dynamicRangeStart; a <= dynamicRangeEnd; a++ {
		addr := uint8(a)
		if c.registry.Available(addr) {
			return addr, true
		}
	}
	return 0, false
}

// attemptClaim emits an address-claim for addr, tentatively inserts it into
// the registry, and either arms the contention timer or, if immediately
// rejected by a higher-priority occupant, re-arbitrates without waiting out
// the window.
func (c *Claimer) attemptClaim(addr uint8) {
	c.state = StateClaiming
	c.addr = addr
	metrics.IncJ1939ClaimAttempted()
	c.emitClaim(addr)
	result := c.registry.TryAddressClaim(c.localName, addr)
	if result.Outcome == Rejected {
		metrics.IncJ1939ClaimRejected()
		c.arbitrate()
		return
	}
	c.timer.Arm(contentionWindow, c.OnTimeout)
}

func (c *Claimer) enterCannotClaim() {
	c.state = StateCannotClaim
	c.addr = IdleAddr
	c.timer.Cancel()
	metrics.IncJ1939CannotClaim()
	c.emitCannotClaimDelayed()
}

// emitCannotClaimDelayed reuses the single per-claimer timer slot to add a
// random 0-153ms delay before the cannot-claim frame goes out, so that every
// contender that just lost the same address doesn't retransmit in lockstep.
func (c *Claimer) emitCannotClaimDelayed() {
	name := c.localName
	delay := time.Duration(c.rng.Intn(cannotClaimJitterMaxMillis)) * time.Millisecond
	c.timer.Arm(delay, func() {
		c.emitFrame(MakeAddressClaim(name, IdleAddr))
	})
}

func (c *Claimer) emitClaim(addr uint8) {
	c.emitFrame(MakeAddressClaim(c.localName, addr))
}

func (c *Claimer) emitFrame(f Frame) {
	if c.callbacks.OnFrame != nil {
		c.callbacks.OnFrame(f)
	}
}

func (c *Claimer) fireOnAddress() {
	if c.callbacks.OnAddress != nil {
		c.callbacks.OnAddress(c.localName, c.addr)
	}
}

func (c *Claimer) fireLoseAddress() {
	if c.callbacks.OnLoseAddress != nil {
		c.callbacks.OnLoseAddress(c.localName)
	}
}
