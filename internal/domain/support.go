package domain

import (
	"time"

	"github.com/google/uuid"
)

// Support is the downstream domain effect of a confirmed payment: the record
// that a supporter backed a beneficiary. A confirmed payment without one is an
// orphan and gets re-driven by the recovery scan.
type Support struct {
	ID            uuid.UUID
	PaymentID     uuid.UUID
	SupporterID   uuid.UUID
	BeneficiaryID uuid.UUID
	Purpose       string
	AmountCents   int64
	CreatedAt     time.Time
}
