package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

const refundColumns = `id, payment_id, amount, currency, reason, state, rail,
	requires_approval, approved_by, approved_at, provider_refund_id,
	completed_at, error_message, created_at, updated_at`

type RefundRepository struct {
	db *sql.DB
}

func NewRefundRepository(db *sql.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// Create inserts a refund request. The partial unique index on
// (payment_id) WHERE state <> 'failed' enforces the single-active-refund
// invariant even under concurrent requests.
func (r *RefundRepository) Create(ctx context.Context, req *domain.RefundRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refund_requests (
			id, payment_id, amount, currency, reason, state, rail,
			requires_approval, approved_by, approved_at, provider_refund_id,
			completed_at, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		req.ID, req.PaymentID, req.Amount, req.Currency, req.Reason, req.State, req.Rail,
		req.RequiresApproval, req.ApprovedBy, req.ApprovedAt, req.ProviderRefundID,
		req.CompletedAt, req.ErrorMessage, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrRefundExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *RefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.RefundRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+refundColumns+` FROM refund_requests WHERE id = $1`, id,
	)
	req, err := scanRefund(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return req, nil
}

func (r *RefundRepository) GetActiveByPaymentID(ctx context.Context, paymentID uuid.UUID) (*domain.RefundRequest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+refundColumns+` FROM refund_requests
		WHERE payment_id = $1 AND state <> $2`,
		paymentID, domain.RefundStateFailed,
	)
	req, err := scanRefund(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetActiveByPaymentID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetActiveByPaymentID: %w", err)
	}
	return req, nil
}

func (r *RefundRepository) SetProcessing(ctx context.Context, id uuid.UUID, approvedBy *uuid.UUID, approvedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refund_requests
		SET state = $1, approved_by = COALESCE($2, approved_by),
		    approved_at = COALESCE($3, approved_at), updated_at = now()
		WHERE id = $4 AND state = $5`,
		domain.RefundStateProcessing, approvedBy, approvedAt, id, domain.RefundStateRequested,
	)
	if err != nil {
		return fmt.Errorf("SetProcessing: %w", err)
	}
	return checkRefundUpdated(res, "SetProcessing")
}

func (r *RefundRepository) SetCompleted(ctx context.Context, id uuid.UUID, providerRefundID *string, completedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refund_requests
		SET state = $1, provider_refund_id = $2, completed_at = $3, updated_at = now()
		WHERE id = $4 AND state = $5`,
		domain.RefundStateCompleted, providerRefundID, completedAt, id, domain.RefundStateProcessing,
	)
	if err != nil {
		return fmt.Errorf("SetCompleted: %w", err)
	}
	return checkRefundUpdated(res, "SetCompleted")
}

func (r *RefundRepository) SetFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refund_requests SET state = $1, error_message = $2, updated_at = now()
		WHERE id = $3 AND state IN ($4, $5)`,
		domain.RefundStateFailed, errorMessage, id,
		domain.RefundStateRequested, domain.RefundStateProcessing,
	)
	if err != nil {
		return fmt.Errorf("SetFailed: %w", err)
	}
	return checkRefundUpdated(res, "SetFailed")
}

func checkRefundUpdated(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrInvalidState)
	}
	return nil
}

func scanRefund(s scanner) (*domain.RefundRequest, error) {
	var req domain.RefundRequest
	var approvedBy uuid.NullUUID

	err := s.Scan(
		&req.ID, &req.PaymentID, &req.Amount, &req.Currency, &req.Reason, &req.State, &req.Rail,
		&req.RequiresApproval, &approvedBy, &req.ApprovedAt, &req.ProviderRefundID,
		&req.CompletedAt, &req.ErrorMessage, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvedBy.Valid {
		req.ApprovedBy = &approvedBy.UUID
	}

	return &req, nil
}
