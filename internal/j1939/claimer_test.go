package j1939

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimer is a manually-fired Timer for deterministic state-machine tests;
// no test here waits out a real 250ms contention window.
type fakeTimer struct {
	armed    bool
	lastDur  time.Duration
	callback func()
}

func (t *fakeTimer) Arm(d time.Duration, callback func()) {
	t.armed = true
	t.lastDur = d
	t.callback = callback
}

func (t *fakeTimer) Cancel() {
	t.armed = false
	t.callback = nil
}

func (t *fakeTimer) Fire() {
	if !t.armed {
		return
	}
	cb := t.callback
	t.armed = false
	t.callback = nil
	cb()
}

// capableName sets the arbitrary-address-capable bit (NAME bit 63) on top of
// low, so preemption scenarios can exercise the dynamic-range rescan rule.
func capableName(low uint64) Name {
	return Name(low | 0x8000000000000000)
}

type recordedFrame struct {
	PS uint8
	SA uint8
}

func newTestClaimer(localName Name, registry *Registry) (*Claimer, *fakeTimer, *[]recordedFrame) {
	timer := &fakeTimer{}
	var frames []recordedFrame
	c := New(timer, localName, registry)
	c.BindCallbacks(Callbacks{
		OnFrame: func(f Frame) { frames = append(frames, recordedFrame{PS: f.PS, SA: f.SA}) },
	})
	return c, timer, &frames
}

func TestClaimer_CannotClaimOnRequestWhenIdle(t *testing.T) {
	reg := NewRegistry()
	c, timer, frames := newTestClaimer(Name(0xFF), reg)

	c.Process(MakeAddressRequest(0x01, NoAddr))
	assert.Equal(t, StateIdle, c.State())
	require.True(t, timer.armed, "expected cannot-claim jitter timer armed")

	timer.Fire()

	require.Len(t, *frames, 1)
	f := (*frames)[0]
	assert.Equal(t, PSAddressClaim, f.PS)
	assert.Equal(t, IdleAddr, f.SA)
}

func TestClaimer_SuccessfulClaim(t *testing.T) {
	reg := NewRegistry()
	c, timer, frames := newTestClaimer(Name(0xFF), reg)

	require.NoError(t, c.StartAddressClaim(0x00))
	assert.Equal(t, StateClaiming, c.State())
	require.True(t, timer.armed, "expected contention timer armed")

	timer.Fire()

	assert.Equal(t, StateClaimed, c.State())
	require.Len(t, *frames, 1)
	f := (*frames)[0]
	assert.Equal(t, PSAddressClaim, f.PS)
	assert.EqualValues(t, 0x00, f.SA)

	assert.True(t, reg.InNetwork(Name(0xFF)))
	addr, ok := reg.FindAddress(Name(0xFF))
	require.True(t, ok)
	assert.EqualValues(t, 0x00, addr)
	assert.False(t, reg.Available(0x00))
}

func TestClaimer_DefendOnRequestAfterClaim(t *testing.T) {
	reg := NewRegistry()
	c, timer, frames := newTestClaimer(Name(0xFF), reg)
	c.StartAddressClaim(0x00)
	timer.Fire()
	*frames = nil

	c.Process(MakeAddressRequest(0x01, NoAddr))

	require.Len(t, *frames, 1)
	f := (*frames)[0]
	assert.Equal(t, PSAddressClaim, f.PS)
	assert.EqualValues(t, 0x00, f.SA)
	assert.Equal(t, StateClaimed, c.State())
}

// local_name is arbitrary-address-capable so each preemption re-arbitrates
// into the dynamic range; with the registry already occupying every low
// address this collapses to "next address" on every step of the cascade.
func TestClaimer_PreemptionCascade(t *testing.T) {
	reg := NewRegistry()
	local := capableName(0xFF)
	c, timer, _ := newTestClaimer(local, reg)
	c.StartAddressClaim(0x80)
	timer.Fire()
	require.Equal(t, StateClaimed, c.State())

	for i := 0x80; i <= 0xF6; i++ {
		evictor := Name(uint64(i)) // numerically below any capableName
		reg.TryAddressClaim(evictor, uint8(i))
		c.Process(MakeAddressClaim(evictor, uint8(i)))

		require.Equalf(t, StateClaiming, c.State(), "iteration %#x", i)
		require.Truef(t, timer.armed, "iteration %#x: expected contention timer re-armed", i)
		timer.Fire()

		wantAddr := uint8(i + 1)
		addr, ok := c.CurrentAddress()
		require.Truef(t, ok, "iteration %#x", i)
		assert.Equalf(t, wantAddr, addr, "iteration %#x", i)

		got, ok := reg.FindAddress(local)
		require.Truef(t, ok, "iteration %#x", i)
		assert.Equalf(t, wantAddr, got, "iteration %#x", i)
	}
}

// Once the dynamic range is entirely occupied by higher-priority NAMEs, the
// claimer has nowhere left to go and enters CannotClaim.
func TestClaimer_ExhaustsDynamicRangeIntoCannotClaim(t *testing.T) {
	reg := NewRegistry()
	local := capableName(0xFF)
	c, timer, _ := newTestClaimer(local, reg)
	c.StartAddressClaim(0x80)
	timer.Fire()

	for i := 0x80; i <= 0xF7; i++ {
		evictor := Name(uint64(i))
		reg.TryAddressClaim(evictor, uint8(i))
		c.Process(MakeAddressClaim(evictor, uint8(i)))
		if i < 0xF7 {
			timer.Fire()
		}
	}

	assert.Equal(t, StateCannotClaim, c.State())
	_, ok := c.CurrentAddress()
	assert.False(t, ok, "expected no current address while CannotClaim")
}

// Defense against a higher NAME: no state change, re-assert current address.
func TestClaimer_DefendsAgainstHigherName(t *testing.T) {
	reg := NewRegistry()
	c, timer, frames := newTestClaimer(Name(0x10), reg)
	c.StartAddressClaim(0x20)
	timer.Fire()
	*frames = nil

	c.Process(MakeAddressClaim(Name(0x30), 0x20))

	assert.Equal(t, StateClaimed, c.State(), "no state change expected")
	addr, ok := reg.FindAddress(Name(0x10))
	require.True(t, ok)
	assert.EqualValues(t, 0x20, addr)

	require.Len(t, *frames, 1)
	f := (*frames)[0]
	assert.Equal(t, PSAddressClaim, f.PS)
	assert.EqualValues(t, 0x20, f.SA, "expected defending re-claim")
}

func TestClaimer_StartAddressClaim_RejectsWrongState(t *testing.T) {
	reg := NewRegistry()
	c, timer, _ := newTestClaimer(Name(0x10), reg)
	c.StartAddressClaim(0x20)
	timer.Fire() // now Claimed

	err := c.StartAddressClaim(0x21)
	assert.Error(t, err, "expected error starting a claim while already Claimed")
}

func TestClaimer_StartAddressClaim_RejectsOutOfRangeAddress(t *testing.T) {
	reg := NewRegistry()
	c, _, _ := newTestClaimer(Name(0x10), reg)
	err := c.StartAddressClaim(NoAddr)
	assert.Error(t, err, "expected error for out-of-range preferred address")
}

func TestClaimer_NonArbitraryCapable_GoesStraightToCannotClaim(t *testing.T) {
	reg := NewRegistry()
	c, timer, _ := newTestClaimer(Name(0x10), reg) // bit 63 unset
	c.StartAddressClaim(0x20)
	timer.Fire()

	c.Process(MakeAddressClaim(Name(0x05), 0x20))

	assert.Equal(t, StateCannotClaim, c.State())
}

func TestClaimer_Close_ReleasesAndCancelsTimer(t *testing.T) {
	reg := NewRegistry()
	c, timer, _ := newTestClaimer(Name(0x10), reg)
	c.StartAddressClaim(0x20) // still Claiming; contention timer armed

	c.Close()

	assert.False(t, timer.armed, "expected timer cancelled on Close")
	assert.False(t, reg.InNetwork(Name(0x10)), "expected registry entry released on Close")
}
