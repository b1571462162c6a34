package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gametopup/database"
)

func TestIsAuthorized(t *testing.T) {
	store := database.NewMemoryStore()
	checker := NewChecker(store, 7)
	ctx := context.Background()

	assert.True(t, checker.IsAuthorized(ctx, "7"), "owner is always authorized")
	assert.False(t, checker.IsAuthorized(ctx, "100"))

	require.NoError(t, store.AddAuthorizedUser(ctx, "100"))
	assert.True(t, checker.IsAuthorized(ctx, "100"))

	require.NoError(t, store.RemoveAuthorizedUser(ctx, "100"))
	assert.False(t, checker.IsAuthorized(ctx, "100"))
}

func TestIsAdmin(t *testing.T) {
	store := database.NewMemoryStore()
	checker := NewChecker(store, 7)
	ctx := context.Background()

	assert.True(t, checker.IsAdmin(ctx, "7"), "owner is always an admin")
	assert.False(t, checker.IsAdmin(ctx, "11"))
	assert.False(t, checker.IsAdmin(ctx, "not-a-number"))

	require.NoError(t, store.AddAdmin(ctx, 11))
	assert.True(t, checker.IsAdmin(ctx, "11"))
}

func TestIsOwner(t *testing.T) {
	checker := NewChecker(database.NewMemoryStore(), 7)

	assert.True(t, checker.IsOwner("7"))
	assert.False(t, checker.IsOwner("11"))
	assert.False(t, checker.IsOwner("garbage"))
	assert.Equal(t, int64(7), checker.Owner())
}
