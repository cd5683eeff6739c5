package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const manualDepositCounter = "manual_deposit"

// CounterRepository owns the derivation-index counter. Allocation is a single
// increment-and-return statement, never read-then-write, so two concurrent
// manual intents can never receive the same index.
type CounterRepository struct {
	db *sql.DB
}

func NewCounterRepository(db *sql.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

func (r *CounterRepository) NextIndex(ctx context.Context, tx *sql.Tx) (int64, error) {
	row := tx.QueryRowContext(ctx,
		`UPDATE derivation_counters SET next_index = next_index + 1
		WHERE name = $1 RETURNING next_index`,
		manualDepositCounter,
	)

	var index int64
	if err := row.Scan(&index); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("NextIndex: counter row missing: %w", err)
		}
		return 0, fmt.Errorf("NextIndex: %w", err)
	}
	return index, nil
}
