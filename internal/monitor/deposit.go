// Package monitor watches derived deposit addresses for the manual rail and
// feeds observed amounts into the orchestrator's second confirmation phase.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/logging"
)

type paymentSource interface {
	GetPendingManual(ctx context.Context, now time.Time, limit int) ([]domain.Payment, error)
	ExpirePendingManual(ctx context.Context, now time.Time) (int64, error)
}

type balanceReader interface {
	GetNativeBalance(ctx context.Context, address string) (uint64, error)
}

type depositConfirmer interface {
	ConfirmDeposit(ctx context.Context, paymentID uuid.UUID, providerRef string, amountCents int64) (*domain.Payment, error)
}

type DepositMonitor struct {
	payments  paymentSource
	balances  balanceReader
	confirmer depositConfirmer
	batchSize int
}

func NewDepositMonitor(payments paymentSource, balances balanceReader, confirmer depositConfirmer, batchSize int) *DepositMonitor {
	return &DepositMonitor{
		payments:  payments,
		balances:  balances,
		confirmer: confirmer,
		batchSize: batchSize,
	}
}

// Poll reads the balance of every unexpired pending deposit address and
// confirms payments whose observed balance covers the expected total. A
// partial deposit leaves the payment pending so the remainder can arrive
// within the expiry window; the expiry sweep owns never-funded intents.
// The synthesized provider ref is bound to the address, which is never
// reused, so it stays unique; a chain scanner can later replace it with the
// real signature.
func (m *DepositMonitor) Poll(ctx context.Context) error {
	log := logging.FromContext(ctx)

	pending, err := m.payments.GetPendingManual(ctx, time.Now().UTC(), m.batchSize)
	if err != nil {
		return fmt.Errorf("Poll: %w", err)
	}

	for i := range pending {
		p := &pending[i]
		if p.DepositAddress == nil {
			continue
		}

		balance, err := m.balances.GetNativeBalance(ctx, *p.DepositAddress)
		if err != nil {
			log.Warn("deposit balance read failed",
				"payment_id", p.ID,
				"address", *p.DepositAddress,
				"error", err,
			)
			continue
		}
		if balance < uint64(p.TotalAmountCents()) {
			continue
		}

		ref := "deposit:" + *p.DepositAddress
		if _, err := m.confirmer.ConfirmDeposit(ctx, p.ID, ref, int64(balance)); err != nil {
			log.Warn("deposit confirmation rejected",
				"payment_id", p.ID,
				"observed", balance,
				"error", err,
			)
		}
	}

	return nil
}

// ExpireStale fails pending manual payments whose window lapsed.
func (m *DepositMonitor) ExpireStale(ctx context.Context) error {
	expired, err := m.payments.ExpirePendingManual(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ExpireStale: %w", err)
	}
	if expired > 0 {
		logging.FromContext(ctx).Info("expired stale manual payments", "count", expired)
	}
	return nil
}
