package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gametopup/database"
	"gametopup/logging"
	"gametopup/session"
)

// fakeNotifier records outbound messages for assertions.
type fakeNotifier struct {
	mu        sync.Mutex
	userMsgs  map[string][]string
	adminMsgs []string
	groupMsgs []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{userMsgs: make(map[string][]string)}
}

func (f *fakeNotifier) NotifyUser(userID string, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userMsgs[userID] = append(f.userMsgs[userID], text)
}

func (f *fakeNotifier) NotifyAdmins(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminMsgs = append(f.adminMsgs, text)
}

func (f *fakeNotifier) NotifyGroup(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupMsgs = append(f.groupMsgs, text)
}

func (f *fakeNotifier) userMessages(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.userMsgs[userID]...)
}

func (f *fakeNotifier) adminMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.adminMsgs...)
}

const testPlatformID = "999"

func newTestService(t *testing.T) (*Service, *database.MemoryStore, *fakeNotifier) {
	t.Helper()

	store := database.NewMemoryStore()
	notifier := newFakeNotifier()
	svc := New(store, session.NewManager(time.Minute), notifier, logging.New(), testPlatformID, 1000)
	return svc, store, notifier
}

func seedUser(t *testing.T, store *database.MemoryStore, userID string, balance int) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, store.CreateUserIfAbsent(ctx, userID, "User "+userID, "user"+userID, nil))
	if balance > 0 {
		require.NoError(t, store.SetBalance(ctx, userID, balance))
	}
}

func seedReferredUser(t *testing.T, store *database.MemoryStore, userID, referrerID string, balance int) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, store.CreateUserIfAbsent(ctx, userID, "User "+userID, "user"+userID, &referrerID))
	if balance > 0 {
		require.NoError(t, store.SetBalance(ctx, userID, balance))
	}
}

// submitPendingTopup walks a user through draft, channel and receipt so tests
// start from a persisted pending topup.
func submitPendingTopup(t *testing.T, svc *Service, userID string, amount int) string {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, svc.StartTopup(ctx, userID, amount))
	require.NoError(t, svc.SelectChannel(userID, "KPay"))
	topup, err := svc.SubmitTopup(ctx, userID, 1, fmt.Sprintf("receipt-%s", userID))
	require.NoError(t, err)
	return topup.TopupID
}
