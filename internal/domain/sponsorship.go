package domain

import (
	"time"

	"github.com/google/uuid"
)

// GasSponsorship records a network-fee advance made on a sender's behalf.
// At most one exists per payment.
type GasSponsorship struct {
	ID                uuid.UUID
	PaymentID         uuid.UUID
	SponsoredLamports uint64
	FeeCents          int64
	SponsorWallet     string
	ATACreated        bool
	ATAAddress        *string
	CreatedAt         time.Time
}
