package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gametopup/models"
)

func TestTopupLifecycleApprove(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)

	topupID := submitPendingTopup(t, svc, "100", 10000)
	assert.True(t, svc.Locked("100"))

	user, err := store.GetUser(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 0, user.Balance, "no credit before approval")
	require.Len(t, user.Topups, 1)
	assert.Equal(t, models.TopupPending, user.Topups[0].Status)
	assert.Equal(t, "KPay", user.Topups[0].Channel)

	approved, userID, err := svc.ApproveTopup(ctx, topupID, "admin1")
	require.NoError(t, err)
	assert.Equal(t, "100", userID)
	assert.Equal(t, 10000, approved.Amount)
	assert.False(t, svc.Locked("100"))

	user, err = store.GetUser(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 10000, user.Balance)
	assert.Equal(t, models.TopupApproved, user.Topups[0].Status)
	assert.Equal(t, "admin1", user.Topups[0].ResolvedBy)
}

func TestTopupLifecycleReject(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 500)

	topupID := submitPendingTopup(t, svc, "100", 10000)

	rejected, userID, err := svc.RejectTopup(ctx, topupID, "admin1")
	require.NoError(t, err)
	assert.Equal(t, "100", userID)
	assert.Equal(t, 10000, rejected.Amount)
	assert.False(t, svc.Locked("100"))

	user, err := store.GetUser(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 500, user.Balance, "reject must not credit")
	assert.Equal(t, models.TopupRejected, user.Topups[0].Status)
}

func TestStartTopupBelowMinimum(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedUser(t, store, "100", 0)

	err := svc.StartTopup(context.Background(), "100", 500)

	var tooSmall *AmountTooSmallError
	require.ErrorAs(t, err, &tooSmall)
	assert.Equal(t, 1000, tooSmall.Min)
}

func TestStartTopupMaintenance(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)
	require.NoError(t, store.UpdateSetting(ctx, "maintenance.topups", false))

	err := svc.StartTopup(ctx, "100", 5000)
	assert.ErrorIs(t, err, ErrMaintenance)
}

func TestStartTopupBlockedWhilePending(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedUser(t, store, "100", 0)
	submitPendingTopup(t, svc, "100", 5000)

	err := svc.StartTopup(context.Background(), "100", 3000)
	assert.ErrorIs(t, err, ErrAwaitingReview)
}

func TestStartTopupDraftInProgress(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)

	require.NoError(t, svc.StartTopup(ctx, "100", 5000))
	err := svc.StartTopup(ctx, "100", 3000)
	assert.ErrorIs(t, err, ErrDraftInProgress)

	// Cancelling frees the slot.
	svc.CancelDraft("100")
	assert.NoError(t, svc.StartTopup(ctx, "100", 3000))
}

func TestSubmitTopupWithoutChannel(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)

	require.NoError(t, svc.StartTopup(ctx, "100", 5000))
	_, err := svc.SubmitTopup(ctx, "100", 1, "receipt")
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestSubmitTopupWithoutDraft(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedUser(t, store, "100", 0)

	_, err := svc.SubmitTopup(context.Background(), "100", 1, "receipt")
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestSubmitTopupSingleFlight(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)
	submitPendingTopup(t, svc, "100", 5000)

	// Force a second draft past the gate to hit the store guard directly.
	svc.Sessions().Unlock("100")
	require.True(t, svc.Sessions().StartDraft("100", 3000))
	require.True(t, svc.Sessions().SetChannel("100", "Wave"))

	_, err := svc.SubmitTopup(ctx, "100", 1, "receipt-2")
	assert.ErrorIs(t, err, ErrAwaitingReview)

	// The stale draft is gone and the lock is back.
	_, ok := svc.Draft("100")
	assert.False(t, ok)
	assert.True(t, svc.Locked("100"))

	user, err := store.GetUser(ctx, "100")
	require.NoError(t, err)
	assert.Len(t, user.Topups, 1, "guard must keep a single pending topup")
}

func TestApproveTopupTwiceCreditsOnce(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)
	topupID := submitPendingTopup(t, svc, "100", 10000)

	_, _, err := svc.ApproveTopup(ctx, topupID, "admin1")
	require.NoError(t, err)

	_, _, err = svc.ApproveTopup(ctx, topupID, "admin2")
	assert.ErrorIs(t, err, ErrAlreadyHandled)

	user, err := store.GetUser(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 10000, user.Balance)
}

func TestStaleApproveWithPendingSiblingTopup(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)

	firstID := submitPendingTopup(t, svc, "100", 10000)
	_, _, err := svc.ApproveTopup(ctx, firstID, "admin1")
	require.NoError(t, err)

	secondID := submitPendingTopup(t, svc, "100", 3000)

	// A duplicate approve of the resolved topup must not credit again and
	// must not touch the newly pending one.
	_, _, err = svc.ApproveTopup(ctx, firstID, "admin2")
	assert.ErrorIs(t, err, ErrAlreadyHandled)

	user, err := store.GetUser(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 10000, user.Balance)

	second, err := store.GetTopupByID(ctx, secondID)
	require.NoError(t, err)
	assert.Equal(t, models.TopupPending, second.Status)
}

func TestConcurrentApproveSingleCredit(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)
	topupID := submitPendingTopup(t, svc, "100", 10000)

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.ApproveTopup(ctx, topupID, "admin")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyHandled)
		}
	}
	assert.Equal(t, 1, wins)

	user, err := store.GetUser(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 10000, user.Balance, "exactly one credit despite the race")
}

func TestConcurrentApproveRejectSingleWinner(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)
	topupID := submitPendingTopup(t, svc, "100", 10000)

	var wg sync.WaitGroup
	var approveErr, rejectErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, approveErr = svc.ApproveTopup(ctx, topupID, "admin1")
	}()
	go func() {
		defer wg.Done()
		_, _, rejectErr = svc.RejectTopup(ctx, topupID, "admin2")
	}()
	wg.Wait()

	require.True(t, (approveErr == nil) != (rejectErr == nil),
		"exactly one of approve/reject must win: approve=%v reject=%v", approveErr, rejectErr)

	user, err := store.GetUser(ctx, "100")
	require.NoError(t, err)
	if approveErr == nil {
		assert.Equal(t, 10000, user.Balance)
		assert.Equal(t, models.TopupApproved, user.Topups[0].Status)
	} else {
		assert.Equal(t, 0, user.Balance)
		assert.Equal(t, models.TopupRejected, user.Topups[0].Status)
	}
}

func TestFindPendingTopup(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)
	topupID := submitPendingTopup(t, svc, "100", 5000)

	found, err := svc.FindPendingTopup(ctx, "100", 5000)
	require.NoError(t, err)
	assert.Equal(t, topupID, found.TopupID)

	_, err = svc.FindPendingTopup(ctx, "100", 7777)
	assert.ErrorIs(t, err, ErrAlreadyHandled)
}

func TestHasPendingTopupReconcilesLock(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedUser(t, store, "100", 0)
	topupID := submitPendingTopup(t, svc, "100", 5000)

	// Resolve directly at the store, as if another process handled it. The
	// stale in-memory lock must clear on the next authoritative check.
	_, _, err := store.RejectTopup(ctx, topupID, "admin1", time.Now())
	require.NoError(t, err)
	assert.True(t, svc.Locked("100"))

	pending, err := svc.HasPendingTopup(ctx, "100")
	require.NoError(t, err)
	assert.False(t, pending)
	assert.False(t, svc.Locked("100"))
}
