package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

// TestSeedHex is a fixed 32-byte master seed so derived addresses are stable
// across test runs.
const TestSeedHex = "7f3a1c9e5b2d8f04a6c1e7903d5b8a2f4e6c0d1b3a5978e2c4f6081a3b5d7e9f"

func InsertPayment(t *testing.T, db *sql.DB, p *domain.Payment) {
	t.Helper()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = domain.PaymentStatusPending
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	_, err := db.Exec(
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
		t.Fatalf("insert payment %s: %v", p.ID, err)
	}
}

func GetPaymentStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.PaymentStatus {
	t.Helper()

	var status domain.PaymentStatus
	if err := db.QueryRow(`SELECT status FROM payments WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("get payment status %s: %v", id, err)
	}
	return status
}

// GetUserBalance reads the balance_after of the user's latest ledger entry,
// zero when no entries exist.
func GetUserBalance(t *testing.T, db *sql.DB, userID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(
		`SELECT balance_after FROM ledger_entries
		 WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0
	}
	if err != nil {
		t.Fatalf("get user balance %s: %v", userID, err)
	}
	return balance
}

func CountLedgerEntries(t *testing.T, db *sql.DB, paymentID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM ledger_entries WHERE reference_type = 'payment' AND reference_id = $1`,
		paymentID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for payment %s: %v", paymentID, err)
	}
	return count
}

func GetLedgerEntries(t *testing.T, db *sql.DB, paymentID uuid.UUID) []domain.LedgerEntry {
	t.Helper()

	rows, err := db.Query(
		`SELECT id, user_id, amount, entry_type, reference_type,
			reference_id, balance_after, description, created_at
		 FROM ledger_entries
		 WHERE reference_type = 'payment' AND reference_id = $1
		 ORDER BY created_at, id`,
		paymentID,
	)
	if err != nil {
		t.Fatalf("get ledger entries for payment %s: %v", paymentID, err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Amount, &e.EntryType, &e.ReferenceType,
			&e.ReferenceID, &e.BalanceAfter, &e.Description, &e.CreatedAt,
		); err != nil {
			t.Fatalf("scan ledger entry: %v", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate ledger entries: %v", err)
	}
	return entries
}

func FindEntry(entries []domain.LedgerEntry, entryType domain.EntryType) *domain.LedgerEntry {
	for i := range entries {
		if entries[i].EntryType == entryType {
			return &entries[i]
		}
	}
	return nil
}

func SupportExists(t *testing.T, db *sql.DB, paymentID uuid.UUID) bool {
	t.Helper()

	var exists bool
	err := db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM supports WHERE payment_id = $1)`, paymentID,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("check support for payment %s: %v", paymentID, err)
	}
	return exists
}
