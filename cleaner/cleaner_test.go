package cleaner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gametopup/database"
	"gametopup/logging"
	"gametopup/models"
)

type fakeDeleter struct {
	deleted []int
	failOn  map[int]bool
}

func (f *fakeDeleter) DeleteMessage(chatID int64, messageID int) error {
	if f.failOn[messageID] {
		return errors.New("message to delete not found")
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func queue(t *testing.T, store *database.MemoryStore, messageID int, age time.Duration) {
	t.Helper()
	require.NoError(t, store.QueueMessageForDelete(context.Background(), models.QueuedMessage{
		MessageID: messageID,
		ChatID:    5,
		Timestamp: time.Now().Add(-age),
	}))
}

func TestSweepDeletesAgedMessages(t *testing.T) {
	store := database.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.UpdateSetting(ctx, "auto_delete.enabled", true))
	require.NoError(t, store.UpdateSetting(ctx, "auto_delete.hours", 1))

	queue(t, store, 1, 2*time.Hour)
	queue(t, store, 2, 90*time.Minute)
	queue(t, store, 3, time.Minute)

	deleter := &fakeDeleter{}
	New(store, deleter, logging.New()).Sweep()

	assert.ElementsMatch(t, []int{1, 2}, deleter.deleted)

	// The fresh message stays queued for a later sweep.
	due, err := store.DueMessages(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 3, due[0].MessageID)
}

func TestSweepDisabled(t *testing.T) {
	store := database.NewMemoryStore()
	queue(t, store, 1, 48*time.Hour)

	deleter := &fakeDeleter{}
	New(store, deleter, logging.New()).Sweep()

	assert.Empty(t, deleter.deleted)

	due, err := store.DueMessages(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, due, 1, "disabled sweep must leave the queue alone")
}

func TestSweepDropsUndeletableMessages(t *testing.T) {
	store := database.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.UpdateSetting(ctx, "auto_delete.enabled", true))
	require.NoError(t, store.UpdateSetting(ctx, "auto_delete.hours", 1))

	queue(t, store, 1, 72*time.Hour)

	deleter := &fakeDeleter{failOn: map[int]bool{1: true}}
	New(store, deleter, logging.New()).Sweep()

	// Deletion failed but the message is still dequeued, so a broken entry
	// cannot jam the sweep forever.
	due, err := store.DueMessages(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}
