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

const paymentColumns = `id, user_id, beneficiary_id, purpose, amount_cents,
	support_amount_cents, provider, provider_ref, status, derivation_index,
	deposit_address, buyer_contact, expires_at, claimed_by, claimed_at,
	confirmed_at, created_at, updated_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (
			id, user_id, beneficiary_id, purpose, amount_cents,
			support_amount_cents, provider, provider_ref, status, derivation_index,
			deposit_address, buyer_contact, expires_at, claimed_by, claimed_at,
			confirmed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)`,
		p.ID, p.UserID, p.BeneficiaryID, p.Purpose, p.AmountCents,
		p.SupportAmountCents, p.Provider, p.ProviderRef, p.Status, p.DerivationIndex,
		p.DepositAddress, p.BuyerContact, p.ExpiresAt, p.ClaimedBy, p.ClaimedAt,
		p.ConfirmedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) GetByProviderRef(ctx context.Context, ref string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_ref = $1`, ref,
	)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByProviderRef: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByProviderRef: %w", err)
	}
	return p, nil
}

// Confirm transitions a pending payment to confirmed and stamps the provider
// reference. The partial unique index on provider_ref is the last line of
// defense against two payments confirming with the same reference.
func (r *PaymentRepository) Confirm(ctx context.Context, id uuid.UUID, providerRef string, confirmedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, provider_ref = $2, confirmed_at = $3, updated_at = now()
		WHERE id = $4 AND status = $5`,
		domain.PaymentStatusConfirmed, providerRef, confirmedAt, id, domain.PaymentStatusPending,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Confirm: %w", domain.ErrAlreadyProcessed)
		}
		return fmt.Errorf("Confirm: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Confirm: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Confirm: %w", domain.ErrInvalidState)
	}
	return nil
}

func (r *PaymentRepository) Fail(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		domain.PaymentStatusFailed, id, domain.PaymentStatusPending,
	)
	if err != nil {
		return fmt.Errorf("Fail: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Fail: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Fail: %w", domain.ErrInvalidState)
	}
	return nil
}

// Claim attaches an anonymous manual payment to a user. The WHERE clause
// makes concurrent claims race-safe: exactly one update wins.
func (r *PaymentRepository) Claim(ctx context.Context, id, userID uuid.UUID, claimedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET claimed_by = $1, claimed_at = $2, updated_at = now()
		WHERE id = $3 AND status = $4 AND claimed_by IS NULL AND derivation_index IS NOT NULL`,
		userID, claimedAt, id, domain.PaymentStatusConfirmed,
	)
	if err != nil {
		return fmt.Errorf("Claim: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Claim: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Claim: %w", domain.ErrAlreadyClaimed)
	}
	return nil
}

// GetOrphanedConfirmed returns confirmed payments with no support record.
// Anonymous payments that were never claimed are excluded: their effect
// cannot be attributed to anyone yet.
func (r *PaymentRepository) GetOrphanedConfirmed(ctx context.Context, limit int) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments p
		WHERE p.status = $1
		  AND p.beneficiary_id IS NOT NULL
		  AND (p.user_id IS NOT NULL OR p.claimed_by IS NOT NULL)
		  AND NOT EXISTS (SELECT 1 FROM supports s WHERE s.payment_id = p.id)
		ORDER BY p.confirmed_at
		LIMIT $2`,
		domain.PaymentStatusConfirmed, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetOrphanedConfirmed: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows, "GetOrphanedConfirmed")
}

// GetPendingManual returns unexpired pending manual payments for the deposit
// monitor to poll.
func (r *PaymentRepository) GetPendingManual(ctx context.Context, now time.Time, limit int) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments
		WHERE status = $1 AND provider = $2 AND expires_at > $3
		ORDER BY created_at
		LIMIT $4`,
		domain.PaymentStatusPending, domain.ProviderManual, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetPendingManual: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows, "GetPendingManual")
}

// ExpirePendingManual fails pending manual payments past their expiry window.
func (r *PaymentRepository) ExpirePendingManual(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = now()
		WHERE status = $2 AND provider = $3 AND expires_at <= $4`,
		domain.PaymentStatusFailed, domain.PaymentStatusPending, domain.ProviderManual, now,
	)
	if err != nil {
		return 0, fmt.Errorf("ExpirePendingManual: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ExpirePendingManual: rows affected: %w", err)
	}
	return rows, nil
}

func collectPayments(rows *sql.Rows, op string) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return payments, nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var userID, beneficiaryID, claimedBy uuid.NullUUID

	err := s.Scan(
		&p.ID, &userID, &beneficiaryID, &p.Purpose, &p.AmountCents,
		&p.SupportAmountCents, &p.Provider, &p.ProviderRef, &p.Status, &p.DerivationIndex,
		&p.DepositAddress, &p.BuyerContact, &p.ExpiresAt, &claimedBy, &p.ClaimedAt,
		&p.ConfirmedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		p.UserID = &userID.UUID
	}
	if beneficiaryID.Valid {
		p.BeneficiaryID = &beneficiaryID.UUID
	}
	if claimedBy.Valid {
		p.ClaimedBy = &claimedBy.UUID
	}

	return &p, nil
}
