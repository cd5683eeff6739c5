package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/logging"
	"github.com/fullstackragab/wihngo-payments/internal/metrics"
)

// Claim attaches a confirmed anonymous manual payment to a user, exactly
// once. A second claim fails cleanly rather than silently succeeding, so
// ownership cannot be hijacked by racing claimants.
func (s *Service) Claim(ctx context.Context, paymentID, userID uuid.UUID) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("Claim: %w", err)
	}

	if !p.IsManual() {
		return nil, fmt.Errorf("Claim: provider %s: %w", p.Provider, domain.ErrUnsupportedOperation)
	}
	if p.Status != domain.PaymentStatusConfirmed {
		return nil, fmt.Errorf("Claim: payment is %s: %w", p.Status, domain.ErrInvalidState)
	}
	if p.IsClaimed() {
		return nil, fmt.Errorf("Claim: %w", domain.ErrAlreadyClaimed)
	}

	now := time.Now().UTC()
	if err := s.payments.Claim(ctx, p.ID, userID, now); err != nil {
		return nil, fmt.Errorf("Claim: %w", err)
	}

	p.ClaimedBy = &userID
	p.ClaimedAt = &now

	metrics.PaymentsClaimed.Inc()
	log.Info("payment claimed",
		"payment_id", p.ID,
		"user_id", userID,
	)

	// The effect was deferred while the payment was unattributable; apply
	// it now. Failures fall through to the orphan scan.
	if err := s.applyEffect(ctx, p); err != nil {
		log.Error("effect application failed after claim",
			"payment_id", p.ID,
			"error", err,
		)
	}

	return p, nil
}
