package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

const sponsorshipColumns = `id, payment_id, sponsored_lamports, fee_cents,
	sponsor_wallet, ata_created, ata_address, created_at`

type SponsorshipRepository struct {
	db *sql.DB
}

func NewSponsorshipRepository(db *sql.DB) *SponsorshipRepository {
	return &SponsorshipRepository{db: db}
}

func (r *SponsorshipRepository) Create(ctx context.Context, s *domain.GasSponsorship) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gas_sponsorships (
			id, payment_id, sponsored_lamports, fee_cents,
			sponsor_wallet, ata_created, ata_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.PaymentID, s.SponsoredLamports, s.FeeCents,
		s.SponsorWallet, s.ATACreated, s.ATAAddress, s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrSponsorshipExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *SponsorshipRepository) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*domain.GasSponsorship, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sponsorshipColumns+` FROM gas_sponsorships WHERE payment_id = $1`,
		paymentID,
	)

	var s domain.GasSponsorship
	err := row.Scan(
		&s.ID, &s.PaymentID, &s.SponsoredLamports, &s.FeeCents,
		&s.SponsorWallet, &s.ATACreated, &s.ATAAddress, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByPaymentID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByPaymentID: %w", err)
	}
	return &s, nil
}
