package service

import (
	"context"
	"fmt"

	"gametopup/models"
)

// distributeCommissions applies the referral and platform credits derived
// from an approved topup. It is only reachable from the branch that won the
// approval race, so each credit is applied at most once per topup. The
// approval is already committed when this runs: failures here are reported
// and logged, never rolled back into the approval.
func (s *Service) distributeCommissions(ctx context.Context, ownerID string, topup *models.Topup) {
	owner, err := s.store.GetUser(ctx, ownerID)
	if err != nil {
		s.log.WithField("topup_id", topup.TopupID).
			Errorf("commission skipped, owner lookup failed: %v", err)
		s.notifier.NotifyAdmins(fmt.Sprintf(
			"⚠️ Commission for topup %s not distributed: owner %s lookup failed", topup.TopupID, ownerID))
		return
	}

	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		s.log.Errorf("commission skipped, settings unavailable: %v", err)
		return
	}
	rate := settings.Affiliate.Percentage

	// floor(amount * rate); amounts are non-negative so truncation is floor.
	commission := int(float64(topup.Amount) * rate)
	if commission <= 0 {
		return
	}

	if owner.ReferredBy != "" {
		s.creditCommission(ctx, owner.ReferredBy, commission, owner.Name, topup, rate)
	}

	// The platform beneficiary earns on every topup except its own.
	if s.platformID != "" && ownerID != s.platformID {
		s.creditCommission(ctx, s.platformID, commission, owner.Name, topup, rate)
	}
}

func (s *Service) creditCommission(ctx context.Context, beneficiaryID string, commission int, spenderName string, topup *models.Topup, rate float64) {
	if err := s.store.CreditCommission(ctx, beneficiaryID, commission); err != nil {
		s.log.WithField("topup_id", topup.TopupID).
			WithField("beneficiary", beneficiaryID).
			Errorf("commission credit failed: %v", err)
		s.notifier.NotifyAdmins(fmt.Sprintf(
			"⚠️ Commission credit of %d MMK to %s for topup %s failed: %v",
			commission, beneficiaryID, topup.TopupID, err))
		return
	}

	s.log.WithField("topup_id", topup.TopupID).
		WithField("beneficiary", beneficiaryID).
		Infof("commission credited: %d", commission)

	s.notifier.NotifyUser(beneficiaryID, fmt.Sprintf(
		"🎉 Commission received!\n\n%s topped up %d MMK, earning you %d MMK (%.0f%%).",
		spenderName, topup.Amount, commission, rate*100))
}
