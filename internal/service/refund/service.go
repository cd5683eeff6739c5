// Package refund runs the reversal state machine. The paypal rail
// auto-advances requested -> processing -> completed/failed; the crypto rail
// is approval-gated and completes out-of-band once the external transfer is
// observed.
package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/logging"
	"github.com/fullstackragab/wihngo-payments/internal/metrics"
	"github.com/fullstackragab/wihngo-payments/internal/paypal"
)

type refundRepo interface {
	Create(ctx context.Context, req *domain.RefundRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RefundRequest, error)
	GetActiveByPaymentID(ctx context.Context, paymentID uuid.UUID) (*domain.RefundRequest, error)
	SetProcessing(ctx context.Context, id uuid.UUID, approvedBy *uuid.UUID, approvedAt *time.Time) error
	SetCompleted(ctx context.Context, id uuid.UUID, providerRefundID *string, completedAt time.Time) error
	SetFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
}

type paymentRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

type payoutClient interface {
	RefundOrder(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (*paypal.Refund, error)
}

type Service struct {
	refunds  refundRepo
	payments paymentRepo
	payout   payoutClient

	processTimeout time.Duration
}

func NewService(refunds refundRepo, payments paymentRepo, payout payoutClient) *Service {
	return &Service{
		refunds:        refunds,
		payments:       payments,
		payout:         payout,
		processTimeout: 30 * time.Second,
	}
}

type RequestInput struct {
	PaymentID uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Reason    string
}

// RequestRefund opens a reversal for a payment. At most one non-failed
// refund may exist per payment; re-requesting after a failure is allowed.
// Instant-rail requests start processing asynchronously right after the
// request commits.
func (s *Service) RequestRefund(ctx context.Context, in RequestInput) (*domain.RefundRequest, error) {
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("RequestRefund: %w", domain.ErrInvalidAmount)
	}

	p, err := s.payments.GetByID(ctx, in.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("RequestRefund: %w", err)
	}

	if _, err := s.refunds.GetActiveByPaymentID(ctx, p.ID); err == nil {
		return nil, fmt.Errorf("RequestRefund: %w", domain.ErrRefundExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("RequestRefund: %w", err)
	}

	rail := railForProvider(p.Provider)
	now := time.Now().UTC()
	req := &domain.RefundRequest{
		ID:               uuid.New(),
		PaymentID:        p.ID,
		Amount:           in.Amount,
		Currency:         in.Currency,
		Reason:           in.Reason,
		State:            domain.RefundStateRequested,
		Rail:             rail,
		RequiresApproval: rail != domain.RefundRailPayPal,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.refunds.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("RequestRefund: %w", err)
	}

	metrics.RefundsTransitioned.WithLabelValues(string(domain.RefundStateRequested)).Inc()
	logging.FromContext(ctx).Info("refund requested",
		"refund_id", req.ID,
		"payment_id", p.ID,
		"rail", rail,
		"amount", in.Amount,
	)

	if rail == domain.RefundRailPayPal {
		go s.processDetached(ctx, req.ID)
	}

	return req, nil
}

// ProcessInstantRefund drives a paypal-rail refund to completion. Any
// failure marks the request failed with the error retained for operator
// follow-up, then propagates to the caller, who owns retry policy.
func (s *Service) ProcessInstantRefund(ctx context.Context, id uuid.UUID) error {
	req, err := s.refunds.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ProcessInstantRefund: %w", err)
	}

	if req.Rail != domain.RefundRailPayPal {
		return fmt.Errorf("ProcessInstantRefund: rail %s: %w", req.Rail, domain.ErrUnsupportedOperation)
	}

	if req.State == domain.RefundStateRequested {
		if err := s.refunds.SetProcessing(ctx, id, nil, nil); err != nil {
			return fmt.Errorf("ProcessInstantRefund: %w", err)
		}
		metrics.RefundsTransitioned.WithLabelValues(string(domain.RefundStateProcessing)).Inc()
	} else if req.State != domain.RefundStateProcessing {
		return fmt.Errorf("ProcessInstantRefund: state %s: %w", req.State, domain.ErrInvalidState)
	}

	p, err := s.payments.GetByID(ctx, req.PaymentID)
	if err != nil {
		return s.failWith(ctx, id, fmt.Errorf("ProcessInstantRefund: %w", err))
	}
	if p.ProviderRef == nil {
		return s.failWith(ctx, id, fmt.Errorf("ProcessInstantRefund: payment %s has no provider ref: %w", p.ID, domain.ErrInvalidState))
	}

	refund, err := s.payout.RefundOrder(ctx, *p.ProviderRef, req.Amount, req.Currency)
	if err != nil {
		return s.failWith(ctx, id, fmt.Errorf("ProcessInstantRefund: payout: %w", err))
	}

	if err := s.refunds.SetCompleted(ctx, id, &refund.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("ProcessInstantRefund: %w", err)
	}

	metrics.RefundsTransitioned.WithLabelValues(string(domain.RefundStateCompleted)).Inc()
	logging.FromContext(ctx).Info("refund completed",
		"refund_id", id,
		"provider_refund_id", refund.ID,
	)
	return nil
}

// ApproveManualRefund records the approver and moves a crypto-rail refund to
// processing. The fund movement itself happens with an external signer;
// completion is recorded separately via MarkCompleted.
func (s *Service) ApproveManualRefund(ctx context.Context, id, approver uuid.UUID) error {
	req, err := s.refunds.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ApproveManualRefund: %w", err)
	}

	if !req.RequiresApproval {
		return fmt.Errorf("ApproveManualRefund: refund does not require approval: %w", domain.ErrUnsupportedOperation)
	}
	if req.State != domain.RefundStateRequested {
		return fmt.Errorf("ApproveManualRefund: state %s: %w", req.State, domain.ErrInvalidState)
	}

	now := time.Now().UTC()
	if err := s.refunds.SetProcessing(ctx, id, &approver, &now); err != nil {
		return fmt.Errorf("ApproveManualRefund: %w", err)
	}

	metrics.RefundsTransitioned.WithLabelValues(string(domain.RefundStateProcessing)).Inc()
	logging.FromContext(ctx).Info("refund approved",
		"refund_id", id,
		"approver", approver,
	)
	return nil
}

// MarkCompleted closes a processing crypto-rail refund once the external
// transfer was observed.
func (s *Service) MarkCompleted(ctx context.Context, id uuid.UUID, externalRef string) error {
	if err := s.refunds.SetCompleted(ctx, id, &externalRef, time.Now().UTC()); err != nil {
		return fmt.Errorf("MarkCompleted: %w", err)
	}
	metrics.RefundsTransitioned.WithLabelValues(string(domain.RefundStateCompleted)).Inc()
	return nil
}

func (s *Service) failWith(ctx context.Context, id uuid.UUID, cause error) error {
	if err := s.refunds.SetFailed(ctx, id, cause.Error()); err != nil {
		logging.FromContext(ctx).Error("failed to mark refund failed",
			"refund_id", id,
			"error", err,
		)
	} else {
		metrics.RefundsTransitioned.WithLabelValues(string(domain.RefundStateFailed)).Inc()
	}
	return cause
}

// processDetached runs instant processing past the request's own lifetime.
func (s *Service) processDetached(ctx context.Context, id uuid.UUID) {
	log := logging.FromContext(ctx)

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.processTimeout)
	defer cancel()

	if err := s.ProcessInstantRefund(detached, id); err != nil {
		log.Error("instant refund processing failed",
			"refund_id", id,
			"error", err,
		)
	}
}

func railForProvider(p domain.PaymentProvider) domain.RefundRail {
	if p == domain.ProviderPayPal {
		return domain.RefundRailPayPal
	}
	return domain.RefundRailCrypto
}
