package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gametopup/database"
	"gametopup/models"
)

func seedActivity(t *testing.T, store *database.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	day1 := time.Date(2026, 8, 10, 14, 30, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 11, 9, 0, 0, 0, time.UTC)
	otherMonth := time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC)

	require.NoError(t, store.CreateUserIfAbsent(ctx, "100", "A", "a", nil))
	require.NoError(t, store.SetBalance(ctx, "100", 1000000))

	place := func(id string, price int) {
		require.NoError(t, store.PlaceOrder(ctx, "100", models.Order{
			OrderID: id, Product: "86", Price: price,
			Status: models.OrderPending, Timestamp: day1, UserID: "100",
		}))
	}
	place("ORD1", 5100)
	place("ORD2", 3000)
	place("ORD3", 2000)

	_, _, err := store.ResolveOrder(ctx, "ORD1", models.OrderConfirmed, "admin", day1)
	require.NoError(t, err)
	_, _, err = store.ResolveOrder(ctx, "ORD2", models.OrderConfirmed, "admin", day2)
	require.NoError(t, err)
	// ORD3 cancelled: never counted.
	_, _, err = store.ResolveOrder(ctx, "ORD3", models.OrderCancelled, "admin", day1)
	require.NoError(t, err)

	submit := func(id string, amount int, at time.Time) {
		require.NoError(t, store.SubmitTopup(ctx, "100", models.Topup{
			TopupID: id, Amount: amount,
			Status: models.TopupPending, Timestamp: at, UserID: "100",
		}))
		_, _, err := store.ApproveTopup(ctx, id, "admin", at)
		require.NoError(t, err)
	}
	submit("TOP1", 10000, day1)
	submit("TOP2", 20000, otherMonth)
}

func TestDaySummary(t *testing.T) {
	store := database.NewMemoryStore()
	seedActivity(t, store)

	day1 := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	sum, err := Day(context.Background(), store, day1)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.OrderCount)
	assert.Equal(t, 5100, sum.OrderTotal)
	assert.Equal(t, 1, sum.TopupCount)
	assert.Equal(t, 10000, sum.TopupTotal)
}

func TestDayCountsByResolutionDate(t *testing.T) {
	store := database.NewMemoryStore()
	seedActivity(t, store)

	// ORD2 was placed on the 10th but confirmed on the 11th.
	day2 := time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC)
	sum, err := Day(context.Background(), store, day2)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.OrderCount)
	assert.Equal(t, 3000, sum.OrderTotal)
	assert.Equal(t, 0, sum.TopupCount)
}

func TestMonthSummary(t *testing.T) {
	store := database.NewMemoryStore()
	seedActivity(t, store)

	aug := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	sum, err := Month(context.Background(), store, aug)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.OrderCount)
	assert.Equal(t, 8100, sum.OrderTotal)
	assert.Equal(t, 1, sum.TopupCount)
	assert.Equal(t, 10000, sum.TopupTotal)

	jul := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	sum, err = Month(context.Background(), store, jul)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.OrderCount)
	assert.Equal(t, 20000, sum.TopupTotal)
}

func TestEmptyRange(t *testing.T) {
	store := database.NewMemoryStore()
	seedActivity(t, store)

	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sum, err := Day(context.Background(), store, day)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}
