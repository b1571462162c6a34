// Package service implements the order and topup lifecycles on top of the
// ledger store. All status transitions go through the store's conditional
// updates; this package never reads a balance and writes it back.
package service

import (
	"context"
	"fmt"
	"time"

	"gametopup/database"
	"gametopup/logging"
	"gametopup/models"
	"gametopup/session"
)

// Notifier delivers outbound messages. Every call is fire-and-forget: a
// failed delivery is logged by the implementation and never rolls back a
// ledger mutation.
type Notifier interface {
	NotifyUser(userID string, text string)
	NotifyAdmins(text string)
	NotifyGroup(text string)
}

type Service struct {
	store      database.Store
	sessions   *session.Manager
	notifier   Notifier
	log        *logging.Logger
	platformID string
	minTopup   int
	now        func() time.Time
}

func New(store database.Store, sessions *session.Manager, notifier Notifier, log *logging.Logger, platformID string, minTopup int) *Service {
	return &Service{
		store:      store,
		sessions:   sessions,
		notifier:   notifier,
		log:        log,
		platformID: platformID,
		minTopup:   minTopup,
		now:        time.Now,
	}
}

func (s *Service) Store() database.Store {
	return s.store
}

func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

func (s *Service) RegisterUser(ctx context.Context, userID, name, username string, referrerID *string) error {
	return s.store.CreateUserIfAbsent(ctx, userID, name, username, referrerID)
}

// HasPendingTopup checks the persisted history, which is authoritative, and
// reconciles the in-memory lock against it: the lock is dropped when the
// history shows no pending topup.
func (s *Service) HasPendingTopup(ctx context.Context, userID string) (bool, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if err == database.ErrUserNotFound {
			s.sessions.Unlock(userID)
			return false, nil
		}
		return false, err
	}

	if user.PendingTopup() != nil {
		return true, nil
	}
	s.sessions.Unlock(userID)
	return false, nil
}

// Locked is the fast in-memory check used to gate chat interactions while a
// topup awaits review. HasPendingTopup remains the authoritative answer.
func (s *Service) Locked(userID string) bool {
	return s.sessions.Locked(userID)
}

func (s *Service) Settings(ctx context.Context) (models.Settings, error) {
	return s.store.LoadSettings(ctx)
}

func (s *Service) MinTopup() int {
	return s.minTopup
}

func newOrderID(at time.Time) string {
	return "ORD" + at.Format("20060102150405")
}

func newTopupID(at time.Time, userID string) string {
	id := "TOP" + at.Format("20060102150405")
	if len(userID) >= 4 {
		return id + userID[len(userID)-4:]
	}
	return id + userID
}

func (s *Service) alertOperators(op, userID string, err error) {
	s.log.WithField("user_id", userID).Errorf("ledger inconsistency in %s: %v", op, err)
	s.notifier.NotifyAdmins(fmt.Sprintf(
		"🚨 LEDGER ALERT: %s failed for user %s: %v. Manual reconciliation required.", op, userID, err))
}
