package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/logging"
	"github.com/fullstackragab/wihngo-payments/internal/metrics"
	"github.com/fullstackragab/wihngo-payments/internal/provider"
)

type CreateIntentRequest struct {
	UserID             *uuid.UUID
	BeneficiaryID      *uuid.UUID
	Purpose            string
	AmountCents        int64
	SupportAmountCents int64
	Provider           domain.PaymentProvider
	Currency           string
}

type Intent struct {
	PaymentID          uuid.UUID
	CheckoutRef        string
	DestinationAddress string
}

type ManualIntentRequest struct {
	BeneficiaryID      *uuid.UUID
	Purpose            string
	AmountCents        int64
	SupportAmountCents int64
	BuyerContact       string
}

type ManualIntent struct {
	PaymentID      uuid.UUID
	DepositAddress string
	ExpiresAt      time.Time
}

// CreateIntent persists a pending payment before touching the provider, so a
// payment ID exists even if the provider call fails, then asks the resolved
// provider for its intent data.
func (s *Service) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	if req.AmountCents <= 0 || req.SupportAmountCents < 0 {
		return nil, fmt.Errorf("CreateIntent: %w", domain.ErrInvalidAmount)
	}

	prov, err := s.providers.Resolve(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: %s: %w", req.Provider, err)
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:                 uuid.New(),
		UserID:             req.UserID,
		BeneficiaryID:      req.BeneficiaryID,
		Purpose:            req.Purpose,
		AmountCents:        req.AmountCents,
		SupportAmountCents: req.SupportAmountCents,
		Provider:           req.Provider,
		Status:             domain.PaymentStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.insertPayment(ctx, p); err != nil {
		return nil, fmt.Errorf("CreateIntent: %w", err)
	}

	result, err := prov.CreateIntent(ctx, provider.CreateIntentCommand{
		PaymentID:   p.ID,
		UserID:      req.UserID,
		Purpose:     req.Purpose,
		AmountCents: p.TotalAmountCents(),
		Currency:    req.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: provider: %w", err)
	}

	metrics.IntentsCreated.WithLabelValues(string(req.Provider)).Inc()
	logging.FromContext(ctx).Info("payment intent created",
		"payment_id", p.ID,
		"provider", req.Provider,
		"amount_cents", req.AmountCents,
	)

	return &Intent{
		PaymentID:          p.ID,
		CheckoutRef:        result.CheckoutRef,
		DestinationAddress: result.DestinationAddress,
	}, nil
}

// CreateManualIntent allocates the next derivation index, derives the
// deposit address from it and persists an anonymous pending payment with a
// fixed expiry window, all in one transaction.
func (s *Service) CreateManualIntent(ctx context.Context, req ManualIntentRequest) (*ManualIntent, error) {
	if !s.deriver.IsConfigured() {
		return nil, fmt.Errorf("CreateManualIntent: deriver seed missing: %w", domain.ErrNotConfigured)
	}
	if req.AmountCents <= 0 || req.SupportAmountCents < 0 {
		return nil, fmt.Errorf("CreateManualIntent: %w", domain.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateManualIntent: begin tx: %w", err)
	}
	defer tx.Rollback()

	index, err := s.counter.NextIndex(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("CreateManualIntent: %w", err)
	}

	address, err := s.deriver.DeriveAddress(index)
	if err != nil {
		return nil, fmt.Errorf("CreateManualIntent: %w", err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.manualExpiry)
	contact := req.BuyerContact

	p := &domain.Payment{
		ID:                 uuid.New(),
		BeneficiaryID:      req.BeneficiaryID,
		Purpose:            req.Purpose,
		AmountCents:        req.AmountCents,
		SupportAmountCents: req.SupportAmountCents,
		Provider:           domain.ProviderManual,
		Status:             domain.PaymentStatusPending,
		DerivationIndex:    &index,
		DepositAddress:     &address,
		BuyerContact:       &contact,
		ExpiresAt:          &expiresAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return nil, fmt.Errorf("CreateManualIntent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CreateManualIntent: commit: %w", err)
	}

	metrics.IntentsCreated.WithLabelValues(string(domain.ProviderManual)).Inc()
	logging.FromContext(ctx).Info("manual intent created",
		"payment_id", p.ID,
		"derivation_index", index,
		"expires_at", expiresAt,
	)

	return &ManualIntent{
		PaymentID:      p.ID,
		DepositAddress: address,
		ExpiresAt:      expiresAt,
	}, nil
}

func (s *Service) insertPayment(ctx context.Context, p *domain.Payment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insertPayment: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.payments.Create(ctx, tx, p); err != nil {
		return fmt.Errorf("insertPayment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insertPayment: commit: %w", err)
	}
	return nil
}
