package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntryType string

const (
	EntryTypePaymentDebit  EntryType = "payment_debit"
	EntryTypePaymentCredit EntryType = "payment_credit"
	EntryTypeAdjustment    EntryType = "adjustment"
)

type ReferenceType string

const (
	ReferenceTypePayment    ReferenceType = "payment"
	ReferenceTypeAdjustment ReferenceType = "adjustment"
)

// LedgerEntry is an immutable balance movement. Amount is signed: debits are
// negative, credits positive. BalanceAfter snapshots the user's running
// balance immediately after this entry; the latest entry's BalanceAfter is
// the user's current balance.
type LedgerEntry struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Amount        int64
	EntryType     EntryType
	ReferenceType ReferenceType
	ReferenceID   uuid.UUID
	BalanceAfter  int64
	Description   string
	CreatedAt     time.Time
}
