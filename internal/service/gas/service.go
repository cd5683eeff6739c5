// Package gas decides whether the platform advances network fees for a
// sender and records the advances it makes.
package gas

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

type balanceReader interface {
	GetNativeBalance(ctx context.Context, address string) (uint64, error)
}

type sponsorshipRepo interface {
	Create(ctx context.Context, s *domain.GasSponsorship) error
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*domain.GasSponsorship, error)
}

type Config struct {
	Enabled            bool
	MinBalanceLamports uint64
	FlatFeeCents       int64
	SponsorWallet      string
}

type Service struct {
	cfg          Config
	balances     balanceReader
	sponsorships sponsorshipRepo
}

func NewService(cfg Config, balances balanceReader, sponsorships sponsorshipRepo) *Service {
	return &Service{cfg: cfg, balances: balances, sponsorships: sponsorships}
}

// ShouldSponsor sponsors senders whose native balance sits below the
// configured minimum. When the balance cannot be read, the decision fails
// open: the transaction going through matters more than fee recovery.
func (s *Service) ShouldSponsor(ctx context.Context, senderAddress string) bool {
	if !s.cfg.Enabled {
		return false
	}

	balance, err := s.balances.GetNativeBalance(ctx, senderAddress)
	if err != nil {
		logging.FromContext(ctx).Warn("balance read failed, sponsoring by default",
			"sender", senderAddress,
			"error", err,
		)
		return true
	}

	return balance < s.cfg.MinBalanceLamports
}

// RecordSponsorship persists the fee advance for a payment exactly once and
// charges the flat platform fee regardless of the sponsored amount.
func (s *Service) RecordSponsorship(ctx context.Context, paymentID uuid.UUID, sponsoredLamports uint64, ataCreated bool, ataAddress *string) (*domain.GasSponsorship, error) {
	record := &domain.GasSponsorship{
		ID:                uuid.New(),
		PaymentID:         paymentID,
		SponsoredLamports: sponsoredLamports,
		FeeCents:          s.cfg.FlatFeeCents,
		SponsorWallet:     s.cfg.SponsorWallet,
		ATACreated:        ataCreated,
		ATAAddress:        ataAddress,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.sponsorships.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("RecordSponsorship: %w", err)
	}

	metrics.SponsorshipsRecorded.Inc()
	return record, nil
}

// FeeForPayment is the ledger fee attributable to a payment: the flat fee if
// a sponsorship exists, zero otherwise.
func (s *Service) FeeForPayment(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	record, err := s.sponsorships.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("FeeForPayment: %w", err)
	}
	return record.FeeCents, nil
}
