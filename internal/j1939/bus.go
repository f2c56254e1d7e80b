package j1939

import (
	"fmt"
	"sync"
)

// Bus hosts every locally claimed NAME on one CAN network and fans inbound
// frames to all of them. Like Registry, Bus is intended to be driven from a
// single goroutine; its mutex guards only the claimers map against
// accidental concurrent access to Claim/Remove.
type Bus struct {
	mu       sync.Mutex
	registry *Registry
	claimers map[Name]*Claimer
	newTimer func() Timer
}

// NewBus returns a Bus backed by registry, using RealtimeTimer for every
// hosted claimer unless overridden with WithTimerFactory.
func NewBus(registry *Registry) *Bus {
	return &Bus{
		registry: registry,
		claimers: make(map[Name]*Claimer),
		newTimer: func() Timer { return NewRealtimeTimer() },
	}
}

// WithTimerFactory overrides how the Bus constructs each hosted claimer's
// Timer; tests use this to inject a fake Timer fired manually.
func (b *Bus) WithTimerFactory(f func() Timer) *Bus {
	b.newTimer = f
	return b
}

// Registry returns the shared registry backing this Bus.
func (b *Bus) Registry() *Registry { return b.registry }

// Claim hosts a new Claimer for localName and immediately starts claiming
// preferred. Returns ErrInvalidArgument if localName is already hosted on
// this Bus.
func (b *Bus) Claim(localName Name, preferred uint8, cb Callbacks) (*Claimer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.claimers[localName]; exists {
		return nil, fmt.Errorf("%w: name %#016x already hosted on this bus", ErrInvalidArgument, uint64(localName))
	}

	c := New(b.newTimer(), localName, b.registry)
	c.BindCallbacks(cb)
	if err := c.StartAddressClaim(preferred); err != nil {
		return nil, err
	}
	b.claimers[localName] = c
	return c, nil
}

// Process fans one decoded inbound frame to every hosted claimer, each of
// which reacts according to its own current state. Like Claim and Remove,
// Process mutates shared registry state indirectly: every hosted claimer that
// observes the same frame applies the same idempotent bookkeeping, and the
// one (if any) whose own address is preempted reacts on its own.
func (b *Bus) Process(f Frame) {
	b.mu.Lock()
	claimers := make([]*Claimer, 0, len(b.claimers))
	for _, c := range b.claimers {
		claimers = append(claimers, c)
	}
	b.mu.Unlock()

	for _, c := range claimers {
		c.Process(f)
	}
}

// Remove stops and unhosts the claimer for name, cancelling its timer and
// releasing its registry entry. A no-op if name isn't hosted.
func (b *Bus) Remove(name Name) {
	b.mu.Lock()
	c, ok := b.claimers[name]
	if ok {
		delete(b.claimers, name)
	}
	b.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Lookup returns the hosted claimer for name, if any.
func (b *Bus) Lookup(name Name) (*Claimer, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.claimers[name]
	return c, ok
}

// Hosted returns the number of locally hosted claimers.
func (b *Bus) Hosted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.claimers)
}
