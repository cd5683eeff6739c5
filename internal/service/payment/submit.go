package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/logging"
	"github.com/fullstackragab/wihngo-payments/internal/metrics"
)

// Submit is the idempotency gate: it verifies a proof-of-payment reference
// and confirms the payment exactly once. A timed-out verification returns an
// error with the payment still pending, so a retry or the orphan scan can
// reconcile later.
func (s *Service) Submit(ctx context.Context, paymentID uuid.UUID, providerRef string) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, fmt.Errorf("Submit: payment is %s: %w", p.Status, domain.ErrInvalidState)
	}

	if err := s.checkProviderRefUnused(ctx, providerRef); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	prov, err := s.providers.Resolve(p.Provider)
	if err != nil {
		return nil, fmt.Errorf("Submit: %s: %w", p.Provider, err)
	}

	result, err := prov.Verify(ctx, p.ID, providerRef)
	if err != nil {
		// Transport failure: leave the payment pending for a retry.
		return nil, fmt.Errorf("Submit: verify: %w", err)
	}

	if !result.Valid {
		s.failPayment(ctx, p.ID, "verification_failed")
		return nil, fmt.Errorf("Submit: %s: %w", result.FailureReason, domain.ErrVerificationFailed)
	}

	// Only the manual rail may defer the amount: its structural confirm
	// reports zero and the deposit monitor supplies the real amount later
	// through ConfirmDeposit. Every other rail must match exactly.
	amountDeferred := p.IsManual() && result.VerifiedAmountCents == 0
	if !amountDeferred && result.VerifiedAmountCents != p.TotalAmountCents() {
		s.failPayment(ctx, p.ID, "amount_mismatch")
		return nil, fmt.Errorf("Submit: verified %d, expected %d: %w",
			result.VerifiedAmountCents, p.TotalAmountCents(), domain.ErrAmountMismatch)
	}

	now := time.Now().UTC()
	if err := s.payments.Confirm(ctx, p.ID, providerRef, now); err != nil {
		return nil, fmt.Errorf("Submit: %w", err)
	}

	p.Status = domain.PaymentStatusConfirmed
	p.ProviderRef = &providerRef
	p.ConfirmedAt = &now

	metrics.PaymentsConfirmed.WithLabelValues(string(p.Provider)).Inc()
	log.Info("payment confirmed",
		"payment_id", p.ID,
		"provider", p.Provider,
		"provider_ref", providerRef,
		"amount_cents", p.TotalAmountCents(),
	)

	// Effect failures never undo the confirmation; the orphan scan
	// re-drives them.
	if err := s.applyEffect(ctx, p); err != nil {
		log.Error("effect application failed, payment left for orphan scan",
			"payment_id", p.ID,
			"error", err,
		)
	}

	return p, nil
}

// ConfirmDeposit is the amount-bearing second phase for the manual rail,
// fed by the deposit monitor once funds are observed on the derived address.
func (s *Service) ConfirmDeposit(ctx context.Context, paymentID uuid.UUID, providerRef string, amountCents int64) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("ConfirmDeposit: %w", err)
	}
	if !p.IsManual() {
		return nil, fmt.Errorf("ConfirmDeposit: provider %s: %w", p.Provider, domain.ErrUnsupportedOperation)
	}
	if p.Status != domain.PaymentStatusPending {
		return nil, fmt.Errorf("ConfirmDeposit: payment is %s: %w", p.Status, domain.ErrInvalidState)
	}

	if amountCents != p.TotalAmountCents() {
		s.failPayment(ctx, p.ID, "amount_mismatch")
		return nil, fmt.Errorf("ConfirmDeposit: observed %d, expected %d: %w",
			amountCents, p.TotalAmountCents(), domain.ErrAmountMismatch)
	}

	if err := s.checkProviderRefUnused(ctx, providerRef); err != nil {
		return nil, fmt.Errorf("ConfirmDeposit: %w", err)
	}

	now := time.Now().UTC()
	if err := s.payments.Confirm(ctx, p.ID, providerRef, now); err != nil {
		return nil, fmt.Errorf("ConfirmDeposit: %w", err)
	}

	p.Status = domain.PaymentStatusConfirmed
	p.ProviderRef = &providerRef
	p.ConfirmedAt = &now

	metrics.PaymentsConfirmed.WithLabelValues(string(domain.ProviderManual)).Inc()
	log.Info("manual deposit confirmed",
		"payment_id", p.ID,
		"provider_ref", providerRef,
		"amount_cents", amountCents,
	)

	if err := s.applyEffect(ctx, p); err != nil {
		log.Error("effect application failed, payment left for orphan scan",
			"payment_id", p.ID,
			"error", err,
		)
	}

	return p, nil
}

func (s *Service) checkProviderRefUnused(ctx context.Context, providerRef string) error {
	existing, err := s.payments.GetByProviderRef(ctx, providerRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("checkProviderRefUnused: %w", err)
	}
	return fmt.Errorf("checkProviderRefUnused: ref on payment %s: %w", existing.ID, domain.ErrAlreadyProcessed)
}

func (s *Service) failPayment(ctx context.Context, paymentID uuid.UUID, reason string) {
	if err := s.payments.Fail(ctx, paymentID); err != nil {
		logging.FromContext(ctx).Error("failed to mark payment failed",
			"payment_id", paymentID,
			"error", err,
		)
		return
	}
	metrics.PaymentsFailed.WithLabelValues(reason).Inc()
}

// applyEffect creates the support record and the paired ledger entries in
// one transaction. The support record's payment_id uniqueness makes this
// idempotent: a replay inserts nothing and writes no entries.
func (s *Service) applyEffect(ctx context.Context, p *domain.Payment) error {
	payerID := p.PayerID()
	if payerID == nil || p.BeneficiaryID == nil {
		// Anonymous and unclaimed, or no beneficiary: nothing to attribute yet.
		return nil
	}

	fee, err := s.fees.FeeForPayment(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("applyEffect: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("applyEffect: begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted, err := s.supports.Create(ctx, tx, &domain.Support{
		ID:            uuid.New(),
		PaymentID:     p.ID,
		SupporterID:   *payerID,
		BeneficiaryID: *p.BeneficiaryID,
		Purpose:       p.Purpose,
		AmountCents:   p.AmountCents,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("applyEffect: %w", err)
	}
	if !inserted {
		return nil
	}

	if err := s.ledger.RecordPaymentTx(ctx, tx, p, fee); err != nil {
		return fmt.Errorf("applyEffect: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("applyEffect: commit: %w", err)
	}
	return nil
}
