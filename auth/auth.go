// Package auth answers authorization questions from the persisted lists.
// Answers are read fresh per check; a stale read between refreshes is
// acceptable for everything except owner-only destructive commands, which
// compare against the configured owner id directly.
package auth

import (
	"context"
	"strconv"

	"gametopup/database"
)

type Checker struct {
	store database.Store
	owner int64
}

func NewChecker(store database.Store, owner int64) *Checker {
	return &Checker{store: store, owner: owner}
}

// IsAuthorized reports whether the user may use the bot. The owner is
// always authorized.
func (c *Checker) IsAuthorized(ctx context.Context, userID string) bool {
	if c.IsOwner(userID) {
		return true
	}
	users, err := c.store.LoadAuthorizedUsers(ctx)
	if err != nil {
		return false
	}
	return users[userID]
}

func (c *Checker) IsAdmin(ctx context.Context, userID string) bool {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return false
	}
	admins, err := c.store.LoadAdminIDs(ctx, c.owner)
	if err != nil {
		return id == c.owner
	}
	for _, adminID := range admins {
		if adminID == id {
			return true
		}
	}
	return false
}

// IsOwner is a pure comparison against the configured owner id and never
// consults storage.
func (c *Checker) IsOwner(userID string) bool {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return false
	}
	return id == c.owner
}

func (c *Checker) Owner() int64 {
	return c.owner
}
