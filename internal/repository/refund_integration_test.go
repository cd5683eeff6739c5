package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/repository"
	"github.com/fullstackragab/wihngo-payments/internal/testutil"
)

func newRefund(paymentID uuid.UUID) *domain.RefundRequest {
	now := time.Now().UTC()
	return &domain.RefundRequest{
		ID:               uuid.New(),
		PaymentID:        paymentID,
		Amount:           decimal.NewFromInt(25),
		Currency:         "USD",
		Reason:           "buyer request",
		State:            domain.RefundStateRequested,
		Rail:             domain.RefundRailCrypto,
		RequiresApproval: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestRefundRepository_SingleActivePerPayment(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewRefundRepository(db)
	ctx := context.Background()

	p := &domain.Payment{
		Purpose:     "support",
		AmountCents: 2500,
		Provider:    domain.ProviderSolana,
		Status:      domain.PaymentStatusConfirmed,
	}
	testutil.InsertPayment(t, db, p)

	first := newRefund(p.ID)
	require.NoError(t, repo.Create(ctx, first))

	// The partial unique index blocks a second live request.
	err := repo.Create(ctx, newRefund(p.ID))
	assert.ErrorIs(t, err, domain.ErrRefundExists)

	active, err := repo.GetActiveByPaymentID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	// Failing the live request frees the slot.
	require.NoError(t, repo.SetFailed(ctx, first.ID, "wallet unreachable"))

	_, err = repo.GetActiveByPaymentID(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Create(ctx, newRefund(p.ID)))
}

func TestRefundRepository_StateTransitions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewRefundRepository(db)
	ctx := context.Background()

	p := &domain.Payment{
		Purpose:     "support",
		AmountCents: 2500,
		Provider:    domain.ProviderSolana,
		Status:      domain.PaymentStatusConfirmed,
	}
	testutil.InsertPayment(t, db, p)

	req := newRefund(p.ID)
	require.NoError(t, repo.Create(ctx, req))

	// Completion straight from requested skips processing and is rejected.
	ref := "5sig111"
	err := repo.SetCompleted(ctx, req.ID, &ref, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	approver := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, repo.SetProcessing(ctx, req.ID, &approver, &now))

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundStateProcessing, got.State)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, approver, *got.ApprovedBy)

	// Processing twice finds the request already past requested.
	err = repo.SetProcessing(ctx, req.ID, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, repo.SetCompleted(ctx, req.ID, &ref, time.Now().UTC()))

	got, err = repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundStateCompleted, got.State)
	require.NotNil(t, got.ProviderRefundID)
	assert.Equal(t, ref, *got.ProviderRefundID)

	// Terminal states cannot be failed afterwards.
	err = repo.SetFailed(ctx, req.ID, "late failure")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
