package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftLifecycle(t *testing.T) {
	m := NewManager(time.Minute)

	require.True(t, m.StartDraft("100", 5000))

	d, ok := m.Draft("100")
	require.True(t, ok)
	assert.Equal(t, 5000, d.Amount)
	assert.Empty(t, d.Channel)

	require.True(t, m.SetChannel("100", "KPay"))
	d, ok = m.Draft("100")
	require.True(t, ok)
	assert.Equal(t, "KPay", d.Channel)

	m.ClearDraft("100")
	_, ok = m.Draft("100")
	assert.False(t, ok)
}

func TestStartDraftSingleSlot(t *testing.T) {
	m := NewManager(time.Minute)

	require.True(t, m.StartDraft("100", 5000))
	assert.False(t, m.StartDraft("100", 3000), "second draft must be refused")

	// A different user is unaffected.
	assert.True(t, m.StartDraft("200", 3000))

	d, _ := m.Draft("100")
	assert.Equal(t, 5000, d.Amount, "the original draft survives")
}

func TestSetChannelWithoutDraft(t *testing.T) {
	m := NewManager(time.Minute)
	assert.False(t, m.SetChannel("100", "KPay"))
}

func TestDraftExpiry(t *testing.T) {
	m := NewManager(10 * time.Millisecond)

	require.True(t, m.StartDraft("100", 5000))
	time.Sleep(25 * time.Millisecond)

	_, ok := m.Draft("100")
	assert.False(t, ok, "expired draft must not be returned")

	// The expired slot is free again.
	assert.True(t, m.StartDraft("100", 3000))
}

func TestZeroTTLNeverExpires(t *testing.T) {
	m := NewManager(0)

	require.True(t, m.StartDraft("100", 5000))
	time.Sleep(15 * time.Millisecond)

	_, ok := m.Draft("100")
	assert.True(t, ok)
}

func TestLockUnlock(t *testing.T) {
	m := NewManager(time.Minute)

	assert.False(t, m.Locked("100"))
	m.Lock("100")
	assert.True(t, m.Locked("100"))
	assert.False(t, m.Locked("200"))

	m.Unlock("100")
	assert.False(t, m.Locked("100"))

	// Unlocking an unlocked user is a no-op.
	m.Unlock("100")
	assert.False(t, m.Locked("100"))
}
