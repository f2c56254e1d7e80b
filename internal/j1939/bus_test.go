package j1939

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	b := NewBus(NewRegistry())
	b.WithTimerFactory(func() Timer { return &fakeTimer{} })
	return b
}

func timerOf(t *testing.T, c *Claimer) *fakeTimer {
	ft, ok := c.timer.(*fakeTimer)
	require.True(t, ok, "claimer timer is %T, want *fakeTimer", c.timer)
	return ft
}

func TestBus_ClaimHostsAndStartsClaiming(t *testing.T) {
	b := newTestBus()
	c, err := b.Claim(Name(0x10), 0x20, Callbacks{})
	require.NoError(t, err)

	assert.Equal(t, 1, b.Hosted())
	assert.Equal(t, StateClaiming, c.State())

	got, ok := b.Lookup(Name(0x10))
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestBus_ClaimRejectsDuplicateName(t *testing.T) {
	b := newTestBus()
	_, err := b.Claim(Name(0x10), 0x20, Callbacks{})
	require.NoError(t, err)

	_, err = b.Claim(Name(0x10), 0x21, Callbacks{})
	assert.Error(t, err, "expected error hosting the same NAME twice")
	assert.Equal(t, 1, b.Hosted())
}

func TestBus_ClaimRejectsInvalidPreferred(t *testing.T) {
	b := newTestBus()
	_, err := b.Claim(Name(0x10), NoAddr, Callbacks{})
	assert.Error(t, err, "expected error for out-of-range preferred address")
	assert.Zero(t, b.Hosted(), "claimer must not be hosted when StartAddressClaim fails")
}

// TestBus_ProcessFansPreemptionToOwner hosts two local claimers on the same
// Bus and a lower NAME that preempts the loser: the Bus fans the preemption
// frame to BOTH hosted claimers, and only the one that actually owned the
// contested address reacts, firing its own OnLoseAddress. This is the
// decentralized-eviction design: no separate notification path from the
// winner's claimer to the loser's is needed.
func TestBus_ProcessFansPreemptionToOwner(t *testing.T) {
	b := newTestBus()

	var loserLostAddr bool
	loser, err := b.Claim(Name(0x20), 0x40, Callbacks{
		OnLoseAddress: func(Name) { loserLostAddr = true },
	})
	require.NoError(t, err)
	timerOf(t, loser).Fire() // Claiming -> Claimed at 0x40

	var winnerLostAddr bool
	winner, err := b.Claim(Name(0x05), 0x50, Callbacks{
		OnLoseAddress: func(Name) { winnerLostAddr = true },
	})
	require.NoError(t, err)
	timerOf(t, winner).Fire() // Claiming -> Claimed at 0x50

	require.Equal(t, StateClaimed, loser.State())
	require.Equal(t, StateClaimed, winner.State())

	// A third node (not hosted on this bus) claims 0x40, contesting the
	// loser's address with a numerically lower NAME.
	b.Process(MakeAddressClaim(Name(0x01), 0x40))

	assert.True(t, loserLostAddr, "expected loser's OnLoseAddress to fire")
	assert.False(t, winnerLostAddr, "winner's address was never contested")
	assert.Equal(t, StateClaimed, winner.State(), "winner state must be unchanged")
	assert.NotEqual(t, StateClaimed, loser.State(), "loser must leave Claimed once its address is taken")
}

func TestBus_RemoveReleasesAndCancelsTimer(t *testing.T) {
	b := newTestBus()
	c, err := b.Claim(Name(0x10), 0x20, Callbacks{})
	require.NoError(t, err)
	ft := timerOf(t, c)

	b.Remove(Name(0x10))

	assert.Zero(t, b.Hosted())
	_, ok := b.Lookup(Name(0x10))
	assert.False(t, ok)
	assert.False(t, ft.armed, "expected contention timer cancelled by Remove")
	assert.False(t, b.Registry().InNetwork(Name(0x10)), "expected registry entry released by Remove")
}

func TestBus_RemoveUnknownNameIsNoop(t *testing.T) {
	b := newTestBus()
	b.Remove(Name(0x99)) // must not panic
	assert.Zero(t, b.Hosted())
}
