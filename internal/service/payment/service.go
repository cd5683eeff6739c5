// Package payment is the coordination point for payment intents,
// verification, confirmation, claiming and orphan recovery.
package payment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/provider"
)

type paymentRepo interface {
	Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByProviderRef(ctx context.Context, ref string) (*domain.Payment, error)
	Confirm(ctx context.Context, id uuid.UUID, providerRef string, confirmedAt time.Time) error
	Fail(ctx context.Context, id uuid.UUID) error
	Claim(ctx context.Context, id, userID uuid.UUID, claimedAt time.Time) error
	GetOrphanedConfirmed(ctx context.Context, limit int) ([]domain.Payment, error)
}

type supportRepo interface {
	Create(ctx context.Context, tx *sql.Tx, s *domain.Support) (bool, error)
}

type counterRepo interface {
	NextIndex(ctx context.Context, tx *sql.Tx) (int64, error)
}

type providerFactory interface {
	Resolve(variant domain.PaymentProvider) (provider.Provider, error)
}

type addressDeriver interface {
	IsConfigured() bool
	DeriveAddress(index int64) (string, error)
}

type ledgerService interface {
	RecordPaymentTx(ctx context.Context, tx *sql.Tx, p *domain.Payment, feeCents int64) error
}

type feeSource interface {
	FeeForPayment(ctx context.Context, paymentID uuid.UUID) (int64, error)
}

type Service struct {
	payments  paymentRepo
	supports  supportRepo
	counter   counterRepo
	providers providerFactory
	deriver   addressDeriver
	ledger    ledgerService
	fees      feeSource
	db        *sql.DB

	manualExpiry time.Duration
}

func NewService(
	payments paymentRepo,
	supports supportRepo,
	counter counterRepo,
	providers providerFactory,
	deriver addressDeriver,
	ledgerSvc ledgerService,
	fees feeSource,
	db *sql.DB,
	manualExpiry time.Duration,
) *Service {
	return &Service{
		payments:     payments,
		supports:     supports,
		counter:      counter,
		providers:    providers,
		deriver:      deriver,
		ledger:       ledgerSvc,
		fees:         fees,
		db:           db,
		manualExpiry: manualExpiry,
	}
}

// StatusView is the caller-facing payment state. ClaimRequired nudges
// anonymous buyers to attach a confirmed manual payment to an account
// without the confirmation path enforcing it.
type StatusView struct {
	PaymentID          uuid.UUID
	Status             domain.PaymentStatus
	Provider           domain.PaymentProvider
	AmountCents        int64
	SupportAmountCents int64
	DepositAddress     *string
	ExpiresAt          *time.Time
	ConfirmedAt        *time.Time
	ClaimRequired      bool
}

func (s *Service) GetStatus(ctx context.Context, paymentID uuid.UUID) (*StatusView, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("GetStatus: %w", err)
	}

	return &StatusView{
		PaymentID:          p.ID,
		Status:             p.Status,
		Provider:           p.Provider,
		AmountCents:        p.AmountCents,
		SupportAmountCents: p.SupportAmountCents,
		DepositAddress:     p.DepositAddress,
		ExpiresAt:          p.ExpiresAt,
		ConfirmedAt:        p.ConfirmedAt,
		ClaimRequired:      p.IsManual() && p.Status == domain.PaymentStatusConfirmed && !p.IsClaimed(),
	}, nil
}
