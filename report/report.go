// Package report aggregates confirmed sales and approved topups over date
// ranges for the owner's reporting commands.
package report

import (
	"context"
	"time"

	"gametopup/database"
	"gametopup/models"
)

type Summary struct {
	OrderTotal int
	OrderCount int
	TopupTotal int
	TopupCount int
}

// Range computes totals for [from, to], inclusive on both day boundaries.
// Orders count on their resolution date; topups likewise.
func Range(ctx context.Context, store database.Store, from, to time.Time) (Summary, error) {
	users, err := store.GetAllUsers(ctx)
	if err != nil {
		return Summary{}, err
	}

	start := truncateDay(from)
	end := truncateDay(to).AddDate(0, 0, 1)

	var sum Summary
	for i := range users {
		for _, order := range users[i].Orders {
			if order.Status != models.OrderConfirmed {
				continue
			}
			if within(resolvedAt(order.ResolvedAt, order.Timestamp), start, end) {
				sum.OrderTotal += order.Price
				sum.OrderCount++
			}
		}
		for _, topup := range users[i].Topups {
			if topup.Status != models.TopupApproved {
				continue
			}
			if within(resolvedAt(topup.ResolvedAt, topup.Timestamp), start, end) {
				sum.TopupTotal += topup.Amount
				sum.TopupCount++
			}
		}
	}
	return sum, nil
}

// Day is the single-day summary.
func Day(ctx context.Context, store database.Store, day time.Time) (Summary, error) {
	return Range(ctx, store, day, day)
}

// Month covers the whole calendar month containing the given day.
func Month(ctx context.Context, store database.Store, day time.Time) (Summary, error) {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	last := first.AddDate(0, 1, -1)
	return Range(ctx, store, first, last)
}

func resolvedAt(resolved, created time.Time) time.Time {
	if !resolved.IsZero() {
		return resolved
	}
	return created
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
