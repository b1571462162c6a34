package service

import (
	"errors"
	"fmt"

	"gametopup/database"
)

var (
	// ErrAlreadyHandled mirrors the store sentinel: the status predicate of a
	// match-and-update found nothing, so another actor resolved the item
	// first. Presented to users as "already processed", never as a failure.
	ErrAlreadyHandled = database.ErrAlreadyHandled

	ErrUserNotFound = database.ErrUserNotFound

	// ErrAwaitingReview blocks new orders and topups while a submitted topup
	// is pending admin review.
	ErrAwaitingReview = errors.New("awaiting admin review")

	// ErrDraftInProgress means the user already has an unsubmitted topup
	// draft and must finish or cancel it first.
	ErrDraftInProgress = errors.New("topup draft in progress")

	// ErrNoDraft means there is no live draft to act on.
	ErrNoDraft = errors.New("no topup draft")

	// ErrNoChannel means a receipt arrived before a payment channel was
	// chosen.
	ErrNoChannel = errors.New("no payment channel selected")

	ErrUnknownProduct = errors.New("unknown product code")

	// ErrMaintenance means the feature is switched off by an operator.
	ErrMaintenance = errors.New("feature under maintenance")
)

// InsufficientBalanceError carries the exact shortfall for display.
type InsufficientBalanceError struct {
	Need int
	Have int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d, have %d", e.Need, e.Have)
}

func (e *InsufficientBalanceError) Shortfall() int {
	return e.Need - e.Have
}

// AmountTooSmallError is returned when a topup amount is below the
// configured minimum.
type AmountTooSmallError struct {
	Min int
}

func (e *AmountTooSmallError) Error() string {
	return fmt.Sprintf("amount below minimum of %d", e.Min)
}

// LedgerInconsistencyError marks the one failure class that must reach an
// operator: a mutation committed but its coupled follow-up did not.
type LedgerInconsistencyError struct {
	Op     string
	UserID string
	Err    error
}

func (e *LedgerInconsistencyError) Error() string {
	return fmt.Sprintf("ledger inconsistency during %s for user %s: %v", e.Op, e.UserID, e.Err)
}

func (e *LedgerInconsistencyError) Unwrap() error {
	return e.Err
}
