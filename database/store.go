package database

import (
	"context"
	"errors"
	"time"

	"gametopup/models"
)

var (
	// ErrUserNotFound is returned when the user document does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrAlreadyHandled is returned by a match-and-update whose status
	// predicate matched nothing: the order/topup is absent or was already
	// resolved by a concurrent actor. Callers treat it as a benign outcome.
	ErrAlreadyHandled = errors.New("already handled")

	// ErrInsufficientBalance is returned by DebitBalance and PlaceOrder when
	// the balance guard fails.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrPendingTopupExists is returned by SubmitTopup when the user already
	// has a topup in pending status.
	ErrPendingTopupExists = errors.New("pending topup exists")
)

// Store is the ledger contract. Every balance or status mutation is a single
// conditional update at the storage layer; callers never read-modify-write.
type Store interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	CreateUserIfAbsent(ctx context.Context, userID, name, username string, referrerID *string) error
	UpdateProfile(ctx context.Context, userID, name, username string) error

	// CreditBalance applies a single atomic increment.
	CreditBalance(ctx context.Context, userID string, amount int) error
	// DebitBalance decrements only if the stored balance covers the amount,
	// so concurrent debits cannot overdraw.
	DebitBalance(ctx context.Context, userID string, amount int) error
	// SetBalance is an absolute administrative set, trusted paths only.
	SetBalance(ctx context.Context, userID string, amount int) error
	// CreditCommission increments balance and referral_earnings together.
	CreditCommission(ctx context.Context, userID string, amount int) error

	// PlaceOrder debits the price and appends the order in one document
	// update, guarded by balance >= price.
	PlaceOrder(ctx context.Context, userID string, order models.Order) error
	// SubmitTopup appends the topup guarded by "no pending topup embedded in
	// this user's history".
	SubmitTopup(ctx context.Context, userID string, topup models.Topup) error

	// ResolveOrder flips a pending order to the given terminal status and
	// returns the order as it was before the flip, plus the owner id.
	ResolveOrder(ctx context.Context, orderID, status, actor string, at time.Time) (*models.Order, string, error)
	// ApproveTopup flips a pending topup to approved and credits the owner's
	// balance by the topup amount in the same storage operation.
	ApproveTopup(ctx context.Context, topupID, actor string, at time.Time) (*models.Topup, string, error)
	// RejectTopup flips a pending topup to rejected; no balance change.
	RejectTopup(ctx context.Context, topupID, actor string, at time.Time) (*models.Topup, string, error)

	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	GetTopupByID(ctx context.Context, topupID string) (*models.Topup, error)
	ClearHistory(ctx context.Context, userID string) error

	LoadAuthorizedUsers(ctx context.Context) (map[string]bool, error)
	AddAuthorizedUser(ctx context.Context, userID string) error
	RemoveAuthorizedUser(ctx context.Context, userID string) error
	LoadAdminIDs(ctx context.Context, owner int64) ([]int64, error)
	AddAdmin(ctx context.Context, adminID int64) error
	RemoveAdmin(ctx context.Context, adminID int64) error

	LoadSettings(ctx context.Context) (models.Settings, error)
	UpdateSetting(ctx context.Context, key string, value interface{}) error

	LoadPrices(ctx context.Context) (map[string]int, error)
	SavePrices(ctx context.Context, prices map[string]int) error

	QueueMessageForDelete(ctx context.Context, msg models.QueuedMessage) error
	DueMessages(ctx context.Context, before time.Time) ([]models.QueuedMessage, error)
	// DequeueMessage is keyed on chat and message together; Telegram message
	// ids are only unique within one chat.
	DequeueMessage(ctx context.Context, chatID int64, messageID int) error
}
