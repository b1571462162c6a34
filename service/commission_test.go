package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionReferrerAndPlatform(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	seedUser(t, store, "referrer", 0)
	seedUser(t, store, testPlatformID, 0)
	seedReferredUser(t, store, "spender", "referrer", 0)
	require.NoError(t, store.UpdateSetting(ctx, "affiliate.percentage", 0.03))

	topupID := submitPendingTopup(t, svc, "spender", 20000)
	_, _, err := svc.ApproveTopup(ctx, topupID, "admin")
	require.NoError(t, err)

	referrer, err := store.GetUser(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, 600, referrer.Balance)
	assert.Equal(t, 600, referrer.ReferralEarnings)

	platform, err := store.GetUser(ctx, testPlatformID)
	require.NoError(t, err)
	assert.Equal(t, 600, platform.Balance)
	assert.Equal(t, 600, platform.ReferralEarnings)

	// The spender got the topup amount and nothing more.
	spender, err := store.GetUser(ctx, "spender")
	require.NoError(t, err)
	assert.Equal(t, 20000, spender.Balance)

	assert.NotEmpty(t, notifier.userMessages("referrer"))
	assert.NotEmpty(t, notifier.userMessages(testPlatformID))
}

func TestCommissionNoReferrer(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	seedUser(t, store, testPlatformID, 0)
	seedUser(t, store, "spender", 0)

	topupID := submitPendingTopup(t, svc, "spender", 20000)
	_, _, err := svc.ApproveTopup(ctx, topupID, "admin")
	require.NoError(t, err)

	// Default rate 1%: only the platform earns.
	platform, err := store.GetUser(ctx, testPlatformID)
	require.NoError(t, err)
	assert.Equal(t, 200, platform.Balance)
}

func TestCommissionSkippedWhenSpenderIsPlatform(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	seedReferredUser(t, store, testPlatformID, "referrer", 0)
	seedUser(t, store, "referrer", 0)

	topupID := submitPendingTopup(t, svc, testPlatformID, 20000)
	_, _, err := svc.ApproveTopup(ctx, topupID, "admin")
	require.NoError(t, err)

	// No self-commission on top of the credit, but the referrer still earns.
	platform, err := store.GetUser(ctx, testPlatformID)
	require.NoError(t, err)
	assert.Equal(t, 20000, platform.Balance)
	assert.Equal(t, 0, platform.ReferralEarnings)

	referrer, err := store.GetUser(ctx, "referrer")
	require.NoError(t, err)
	assert.Equal(t, 200, referrer.Balance)
}

func TestCommissionFloorsToZero(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	seedUser(t, store, testPlatformID, 0)
	seedUser(t, store, "spender", 0)
	svc.minTopup = 1

	// 99 * 0.01 floors to 0: nobody is credited.
	topupID := submitPendingTopup(t, svc, "spender", 99)
	_, _, err := svc.ApproveTopup(ctx, topupID, "admin")
	require.NoError(t, err)

	platform, err := store.GetUser(ctx, testPlatformID)
	require.NoError(t, err)
	assert.Equal(t, 0, platform.Balance)
	assert.Empty(t, notifier.userMessages(testPlatformID))
}

func TestCommissionFailureKeepsApproval(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	// Referrer id points at a user that does not exist.
	seedReferredUser(t, store, "spender", "ghost", 0)

	topupID := submitPendingTopup(t, svc, "spender", 20000)
	_, _, err := svc.ApproveTopup(ctx, topupID, "admin")
	require.NoError(t, err, "a failed commission credit must not fail the approval")

	spender, err := store.GetUser(ctx, "spender")
	require.NoError(t, err)
	assert.Equal(t, 20000, spender.Balance, "the approval credit stands")

	assert.NotEmpty(t, notifier.adminMessages(), "operators must hear about the failed credit")
}
