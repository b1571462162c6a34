package service

import (
	"context"
	"errors"

	"gametopup/database"
	"gametopup/models"
	"gametopup/session"
)

// StartTopup opens a topup draft for the user. Nothing is persisted until a
// proof of payment is attached.
func (s *Service) StartTopup(ctx context.Context, userID string, amount int) error {
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	if !settings.Maintenance.Topups {
		return ErrMaintenance
	}

	if amount < s.minTopup {
		return &AmountTooSmallError{Min: s.minTopup}
	}

	pending, err := s.HasPendingTopup(ctx, userID)
	if err != nil {
		return err
	}
	if pending {
		return ErrAwaitingReview
	}

	if !s.sessions.StartDraft(userID, amount) {
		return ErrDraftInProgress
	}
	return nil
}

// SelectChannel records the payment channel on the live draft.
func (s *Service) SelectChannel(userID, channel string) error {
	if !s.sessions.SetChannel(userID, channel) {
		return ErrNoDraft
	}
	return nil
}

// CancelDraft drops the draft, if any. Always succeeds.
func (s *Service) CancelDraft(userID string) {
	s.sessions.ClearDraft(userID)
}

func (s *Service) Draft(userID string) (session.Draft, bool) {
	return s.sessions.Draft(userID)
}

// SubmitTopup turns the draft into a persisted pending topup once a receipt
// is attached. The store append is guarded against an existing pending
// topup, which closes the race between the gate check and a slow append.
// On success the draft is cleared and the interaction lock is set.
func (s *Service) SubmitTopup(ctx context.Context, userID string, chatID int64, receiptID string) (*models.Topup, error) {
	draft, ok := s.sessions.Draft(userID)
	if !ok {
		return nil, ErrNoDraft
	}
	if draft.Channel == "" {
		return nil, ErrNoChannel
	}

	now := s.now()
	topup := models.Topup{
		TopupID:   newTopupID(now, userID),
		Amount:    draft.Amount,
		Channel:   draft.Channel,
		Status:    models.TopupPending,
		Timestamp: now,
		UserID:    userID,
		ChatID:    chatID,
		ReceiptID: receiptID,
	}

	if err := s.store.SubmitTopup(ctx, userID, topup); err != nil {
		if errors.Is(err, database.ErrPendingTopupExists) {
			// History already holds a pending topup; the draft is stale.
			s.sessions.ClearDraft(userID)
			s.sessions.Lock(userID)
			return nil, ErrAwaitingReview
		}
		return nil, err
	}

	s.sessions.ClearDraft(userID)
	s.sessions.Lock(userID)

	s.log.WithField("topup_id", topup.TopupID).
		WithField("user_id", userID).
		Infof("topup submitted, amount %d via %s", topup.Amount, topup.Channel)

	return &topup, nil
}

// ApproveTopup resolves a pending topup to approved. Status flip and balance
// credit happen in one conditional store operation, so concurrent approvals
// of the same id credit at most once; the loser gets ErrAlreadyHandled and
// side effects of exactly zero. Only the winning branch reaches the
// commission fan-out, which keeps commissions at-most-once per topup without
// extra bookkeeping.
func (s *Service) ApproveTopup(ctx context.Context, topupID, actor string) (*models.Topup, string, error) {
	topup, userID, err := s.store.ApproveTopup(ctx, topupID, actor, s.now())
	if err != nil {
		return nil, "", err
	}

	s.sessions.Unlock(userID)

	s.log.WithField("topup_id", topupID).
		WithField("user_id", userID).
		Infof("topup approved by %s, credited %d", actor, topup.Amount)

	s.distributeCommissions(ctx, userID, topup)

	return topup, userID, nil
}

// RejectTopup resolves a pending topup to rejected. No balance change; the
// interaction lock clears regardless of outcome.
func (s *Service) RejectTopup(ctx context.Context, topupID, actor string) (*models.Topup, string, error) {
	topup, userID, err := s.store.RejectTopup(ctx, topupID, actor, s.now())
	if err != nil {
		return nil, "", err
	}

	s.sessions.Unlock(userID)

	s.log.WithField("topup_id", topupID).
		WithField("user_id", userID).
		Infof("topup rejected by %s", actor)

	return topup, userID, nil
}

// FindPendingTopup locates the user's pending topup matching the given
// amount, for the /approve admin command.
func (s *Service) FindPendingTopup(ctx context.Context, userID string, amount int) (*models.Topup, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range user.Topups {
		if user.Topups[i].Status == models.TopupPending && user.Topups[i].Amount == amount {
			return &user.Topups[i], nil
		}
	}
	return nil, ErrAlreadyHandled
}
