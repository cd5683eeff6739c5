package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

type SupportRepository struct {
	db *sql.DB
}

func NewSupportRepository(db *sql.DB) *SupportRepository {
	return &SupportRepository{db: db}
}

// Create inserts the support record for a payment. The payment_id unique
// constraint makes effect application idempotent: a second attempt reports
// inserted=false and the caller skips the paired ledger write.
func (r *SupportRepository) Create(ctx context.Context, tx *sql.Tx, s *domain.Support) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO supports (
			id, payment_id, supporter_id, beneficiary_id, purpose, amount_cents, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (payment_id) DO NOTHING`,
		s.ID, s.PaymentID, s.SupporterID, s.BeneficiaryID, s.Purpose, s.AmountCents, s.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("Create: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Create: rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *SupportRepository) ExistsForPayment(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM supports WHERE payment_id = $1)`, paymentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ExistsForPayment: %w", err)
	}
	return exists, nil
}
