package service

import (
	"context"
	"errors"

	"gametopup/database"
	"gametopup/models"
	"gametopup/pricing"
)

// CreateOrder validates the product and balance, then debits and appends in
// one atomic store operation. The returned order carries the captured price;
// the balance shown to the user is the post-debit value.
func (s *Service) CreateOrder(ctx context.Context, userID string, chatID int64, gameID, serverID, product string) (*models.Order, int, error) {
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !settings.Maintenance.Orders {
		return nil, 0, ErrMaintenance
	}

	pending, err := s.HasPendingTopup(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if pending {
		return nil, 0, ErrAwaitingReview
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	custom, err := s.store.LoadPrices(ctx)
	if err != nil {
		s.log.Warnf("failed to load custom prices, using defaults: %v", err)
		custom = map[string]int{}
	}
	price := pricing.PriceFor(product, custom)
	if price <= 0 {
		return nil, 0, ErrUnknownProduct
	}

	if user.Balance < price {
		return nil, 0, &InsufficientBalanceError{Need: price, Have: user.Balance}
	}

	now := s.now()
	order := models.Order{
		OrderID:   newOrderID(now),
		GameID:    gameID,
		ServerID:  serverID,
		Product:   product,
		Price:     price,
		Status:    models.OrderPending,
		Timestamp: now,
		UserID:    userID,
		ChatID:    chatID,
	}

	if err := s.store.PlaceOrder(ctx, userID, order); err != nil {
		if errors.Is(err, database.ErrInsufficientBalance) {
			// A concurrent debit won between our check and the write.
			fresh, ferr := s.store.GetUser(ctx, userID)
			have := 0
			if ferr == nil {
				have = fresh.Balance
			}
			return nil, 0, &InsufficientBalanceError{Need: price, Have: have}
		}
		return nil, 0, err
	}

	s.log.WithField("order_id", order.OrderID).
		WithField("user_id", userID).
		Infof("order created, price %d", price)

	return &order, user.Balance - price, nil
}

// ConfirmOrder flips a pending order to confirmed. The diamonds were
// delivered out of band; no balance change. The first of a concurrent
// confirm/cancel pair wins; the loser gets ErrAlreadyHandled.
func (s *Service) ConfirmOrder(ctx context.Context, orderID, actor string) (*models.Order, string, error) {
	order, userID, err := s.store.ResolveOrder(ctx, orderID, models.OrderConfirmed, actor, s.now())
	if err != nil {
		return nil, "", err
	}

	s.log.WithField("order_id", orderID).
		WithField("user_id", userID).
		Infof("order confirmed by %s", actor)

	return order, userID, nil
}

// CancelOrder flips a pending order to cancelled and refunds the price
// captured in the order record (not re-priced). A refund failure after the
// won flip is a ledger inconsistency and escalates to the operator channel.
func (s *Service) CancelOrder(ctx context.Context, orderID, actor string) (*models.Order, string, error) {
	order, userID, err := s.store.ResolveOrder(ctx, orderID, models.OrderCancelled, actor, s.now())
	if err != nil {
		return nil, "", err
	}

	if err := s.store.CreditBalance(ctx, userID, order.Price); err != nil {
		inc := &LedgerInconsistencyError{Op: "order cancel refund", UserID: userID, Err: err}
		s.alertOperators(inc.Op, userID, err)
		return order, userID, inc
	}

	s.log.WithField("order_id", orderID).
		WithField("user_id", userID).
		Infof("order cancelled by %s, refunded %d", actor, order.Price)

	return order, userID, nil
}
