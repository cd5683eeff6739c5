// Package ledger owns authoritative balance state. Entries are append-only;
// a user's balance is the balance_after of their latest entry, so concurrent
// writers for the same user serialize on a per-user advisory lock for the
// duration of the transaction.
package ledger

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/metrics"
)

type entryRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	LatestBalance(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (int64, error)
}

type Service struct {
	entries entryRepo
	db      *sql.DB
}

func NewService(entries entryRepo, db *sql.DB) *Service {
	return &Service{entries: entries, db: db}
}

// GetBalance is a snapshot read. Callers that act on it must recheck under
// the transaction's advisory lock; no lock is held between check and use.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, err := s.entries.LatestBalance(ctx, nil, userID)
	if err != nil {
		return 0, fmt.Errorf("GetBalance: %w", err)
	}
	return balance, nil
}

func (s *Service) HasSufficientBalance(ctx context.Context, userID uuid.UUID, amountCents int64) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("HasSufficientBalance: %w", err)
	}
	return balance >= amountCents, nil
}

// RecordPayment writes the paired entries for a confirmed peer transfer: a
// debit of amount+fee against the payer and a credit of amount to the
// beneficiary. Both commit together or neither does.
func (s *Service) RecordPayment(ctx context.Context, p *domain.Payment, feeCents int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("RecordPayment: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.RecordPaymentTx(ctx, tx, p, feeCents); err != nil {
		return fmt.Errorf("RecordPayment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("RecordPayment: commit: %w", err)
	}
	return nil
}

// RecordPaymentTx is RecordPayment inside a caller-owned transaction, so the
// entries can commit atomically with the caller's own writes (the support
// record during effect application).
func (s *Service) RecordPaymentTx(ctx context.Context, tx *sql.Tx, p *domain.Payment, feeCents int64) error {
	if p.Status != domain.PaymentStatusConfirmed {
		return fmt.Errorf("RecordPaymentTx: payment %s is %s: %w", p.ID, p.Status, domain.ErrInvalidState)
	}

	payerID := p.PayerID()
	if payerID == nil || p.BeneficiaryID == nil {
		return fmt.Errorf("RecordPaymentTx: payment %s lacks payer or beneficiary: %w", p.ID, domain.ErrInvalidState)
	}

	if err := lockUsersInOrder(ctx, tx, *payerID, *p.BeneficiaryID); err != nil {
		return fmt.Errorf("RecordPaymentTx: %w", err)
	}

	now := time.Now().UTC()

	debit := p.AmountCents + feeCents
	if err := s.appendEntry(ctx, tx, &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        *payerID,
		Amount:        -debit,
		EntryType:     domain.EntryTypePaymentDebit,
		ReferenceType: domain.ReferenceTypePayment,
		ReferenceID:   p.ID,
		Description:   fmt.Sprintf("payment %s to beneficiary %s", p.ID, p.BeneficiaryID),
		CreatedAt:     now,
	}); err != nil {
		return fmt.Errorf("RecordPaymentTx: debit: %w", err)
	}

	if err := s.appendEntry(ctx, tx, &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        *p.BeneficiaryID,
		Amount:        p.AmountCents,
		EntryType:     domain.EntryTypePaymentCredit,
		ReferenceType: domain.ReferenceTypePayment,
		ReferenceID:   p.ID,
		Description:   fmt.Sprintf("payment %s from supporter %s", p.ID, payerID),
		CreatedAt:     now,
	}); err != nil {
		return fmt.Errorf("RecordPaymentTx: credit: %w", err)
	}

	return nil
}

// RecordAdjustment writes a manual correction entry with the same
// balance-chaining rule as payment entries.
func (s *Service) RecordAdjustment(ctx context.Context, userID uuid.UUID, amountCents int64, reason string) (*domain.LedgerEntry, error) {
	if amountCents == 0 {
		return nil, fmt.Errorf("RecordAdjustment: %w", domain.ErrInvalidAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("RecordAdjustment: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := lockUsersInOrder(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("RecordAdjustment: %w", err)
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        amountCents,
		EntryType:     domain.EntryTypeAdjustment,
		ReferenceType: domain.ReferenceTypeAdjustment,
		Description:   reason,
		CreatedAt:     time.Now().UTC(),
	}
	entry.ReferenceID = entry.ID

	if err := s.appendEntry(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("RecordAdjustment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("RecordAdjustment: commit: %w", err)
	}
	return entry, nil
}

// appendEntry chains balance_after off the latest entry under the caller's
// advisory lock.
func (s *Service) appendEntry(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	balance, err := s.entries.LatestBalance(ctx, tx, entry.UserID)
	if err != nil {
		return fmt.Errorf("appendEntry: %w", err)
	}

	entry.BalanceAfter = balance + entry.Amount
	if err := s.entries.Create(ctx, tx, entry); err != nil {
		return fmt.Errorf("appendEntry: %w", err)
	}

	metrics.LedgerEntriesWritten.WithLabelValues(string(entry.EntryType)).Inc()
	return nil
}

// lockUsersInOrder takes per-user advisory locks in sorted UUID order so two
// transfers touching the same pair of users cannot deadlock.
func lockUsersInOrder(ctx context.Context, tx *sql.Tx, ids ...uuid.UUID) error {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	for _, id := range sorted {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(id)); err != nil {
			return fmt.Errorf("lockUsersInOrder: %s: %w", id, err)
		}
	}
	return nil
}

func lockKey(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]))
}
