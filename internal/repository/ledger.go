package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

const ledgerColumns = `id, user_id, amount, entry_type, reference_type,
	reference_id, balance_after, description, created_at`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (
			id, user_id, amount, entry_type, reference_type,
			reference_id, balance_after, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.UserID, entry.Amount, entry.EntryType, entry.ReferenceType,
		entry.ReferenceID, entry.BalanceAfter, entry.Description, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// LatestBalance reads the running balance as of the most recent entry. Pass
// the transaction that holds the user's advisory lock when the result feeds
// a write; the bare read is only a snapshot.
func (r *LedgerRepository) LatestBalance(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (int64, error) {
	q := `SELECT balance_after FROM ledger_entries
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`

	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, q, userID)
	} else {
		row = r.db.QueryRowContext(ctx, q, userID)
	}

	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("LatestBalance: %w", err)
	}
	return balance, nil
}

func (r *LedgerRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByUserID: %w", err)
	}
	defer rows.Close()

	return collectLedgerEntries(rows, "GetByUserID")
}

func (r *LedgerRepository) GetByReference(ctx context.Context, refType domain.ReferenceType, refID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE reference_type = $1 AND reference_id = $2 ORDER BY created_at, id`,
		refType, refID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	defer rows.Close()

	return collectLedgerEntries(rows, "GetByReference")
}

func collectLedgerEntries(rows *sql.Rows, op string) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return entries, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := s.Scan(
		&e.ID, &e.UserID, &e.Amount, &e.EntryType, &e.ReferenceType,
		&e.ReferenceID, &e.BalanceAfter, &e.Description, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
